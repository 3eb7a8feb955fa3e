package obscache

import (
	"bytes"
	"image"
	"image/png"

	xdraw "golang.org/x/image/draw"
)

// Similarity scores two PNG-encoded screenshots on a 0-100 scale:
// 100 minus the percentage of differing pixels.
//
// Mismatched dimensions (rotation, resolution change) are reconciled by
// rescaling both images to the smaller common dimensions before comparing,
// so a score of 100 is only reachable for identically-sized captures with
// zero pixel delta. Undecodable input scores 0.
func Similarity(a, b []byte) float64 {
	if bytes.Equal(a, b) {
		return 100
	}

	imgA, err := png.Decode(bytes.NewReader(a))
	if err != nil {
		return 0
	}
	imgB, err := png.Decode(bytes.NewReader(b))
	if err != nil {
		return 0
	}

	boundsA, boundsB := imgA.Bounds(), imgB.Bounds()
	w := min(boundsA.Dx(), boundsB.Dx())
	h := min(boundsA.Dy(), boundsB.Dy())
	if w <= 0 || h <= 0 {
		return 0
	}

	sameDims := boundsA.Dx() == boundsB.Dx() && boundsA.Dy() == boundsB.Dy()

	rgbaA := toRGBA(imgA, w, h)
	rgbaB := toRGBA(imgB, w, h)

	total := w * h
	differing := 0
	for y := 0; y < h; y++ {
		rowA := rgbaA.Pix[y*rgbaA.Stride : y*rgbaA.Stride+w*4]
		rowB := rgbaB.Pix[y*rgbaB.Stride : y*rgbaB.Stride+w*4]
		for x := 0; x < w*4; x += 4 {
			if rowA[x] != rowB[x] || rowA[x+1] != rowB[x+1] || rowA[x+2] != rowB[x+2] || rowA[x+3] != rowB[x+3] {
				differing++
			}
		}
	}

	score := 100 - 100*float64(differing)/float64(total)

	// Rescaled comparisons can never claim perfect identity
	if !sameDims && score >= 100 {
		return 99.999
	}
	return score
}

// toRGBA converts img to RGBA at the target size, rescaling when needed.
func toRGBA(img image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if img.Bounds().Dx() == w && img.Bounds().Dy() == h {
		xdraw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, xdraw.Src)
		return dst
	}
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	return dst
}
