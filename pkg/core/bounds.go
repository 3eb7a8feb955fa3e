// Package core provides the observation model types for screenstate.
package core

// Bounds represents element position and size in screen pixels.
type Bounds struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Center returns the center point of the bounds.
func (b Bounds) Center() (int, int) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// Contains checks if a point is within the bounds.
func (b Bounds) Contains(x, y int) bool {
	return x >= b.X && x < b.X+b.Width && y >= b.Y && y < b.Y+b.Height
}

// Area returns the covered area in square pixels. Negative dimensions count as zero.
func (b Bounds) Area() int {
	if b.Width <= 0 || b.Height <= 0 {
		return 0
	}
	return b.Width * b.Height
}

// Intersect returns the overlapping region of two bounds.
// The zero Bounds is returned when they do not overlap.
func (b Bounds) Intersect(o Bounds) Bounds {
	x1 := max(b.X, o.X)
	y1 := max(b.Y, o.Y)
	x2 := min(b.X+b.Width, o.X+o.Width)
	y2 := min(b.Y+b.Height, o.Y+o.Height)
	if x2 <= x1 || y2 <= y1 {
		return Bounds{}
	}
	return Bounds{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

// Size represents screen dimensions in pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Insets represents system UI insets (status bar, navigation bar) in pixels.
type Insets struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}
