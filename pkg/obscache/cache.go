// Package obscache caches screen observations keyed by capture token and
// by perceptual screenshot similarity.
//
// The cache is a performance optimization only: every disk fault is logged
// and degraded to a miss or no-op, never propagated.
package obscache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/devicelab-dev/screenstate/pkg/core"
	"github.com/devicelab-dev/screenstate/pkg/logger"
)

const (
	hierarchyDir  = "view_hierarchy"
	screenshotDir = "screenshots"
)

// Options configures a Cache.
type Options struct {
	Root             string        // Cache root directory
	TTL              time.Duration // Entry time-to-live
	MaxDiskBytes     int64         // Aggregate on-disk budget
	MemoryCandidates int           // Fuzzy candidates scanned in the memory tier
	DiskCandidates   int           // Fuzzy candidates scanned in the disk tier
}

// memEntry is one in-memory cache slot. The entry owns its observation;
// lookups hand out clones.
type memEntry struct {
	insertedAt  time.Time
	observation *core.Observation
	screenshot  []byte
}

// Cache is the two-tier fuzzy observation cache.
type Cache struct {
	opts Options

	mu      sync.Mutex
	entries map[string]memEntry

	persist sync.WaitGroup
	now     func() time.Time
}

// New creates a Cache and its on-disk layout.
func New(opts Options) (*Cache, error) {
	for _, dir := range []string{
		filepath.Join(opts.Root, hierarchyDir),
		filepath.Join(opts.Root, screenshotDir),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}

	return &Cache{
		opts:    opts,
		entries: make(map[string]memEntry),
		now:     time.Now,
	}, nil
}

// Store inserts an observation under its token, persists it to disk in the
// background, and sweeps expired and over-budget entries.
func (c *Cache) Store(obs *core.Observation, screenshot []byte) {
	if obs == nil {
		return
	}
	token := obs.Token()

	c.mu.Lock()
	c.entries[token] = memEntry{
		insertedAt:  c.now(),
		observation: obs.Clone(),
		screenshot:  screenshot,
	}
	c.mu.Unlock()

	c.EvictExpired()

	c.persist.Add(1)
	go func() {
		defer c.persist.Done()
		c.persistEntry(token, obs, screenshot)
		c.evictBySize()
	}()
}

// Flush blocks until all background persists have completed.
func (c *Cache) Flush() {
	c.persist.Wait()
}

// LookupExact returns a clone of the observation stored under token,
// probing memory first and the disk tier second. Expired entries are
// deleted and reported as a miss.
func (c *Cache) LookupExact(token string) *core.Observation {
	c.mu.Lock()
	entry, ok := c.entries[token]
	if ok {
		if c.now().Sub(entry.insertedAt) >= c.opts.TTL {
			delete(c.entries, token)
			ok = false
		}
	}
	c.mu.Unlock()

	if ok {
		return entry.observation.Clone()
	}
	return c.loadFromDisk(token)
}

// Latest returns a clone of the most recently inserted live observation,
// or nil when the memory tier is empty.
func (c *Cache) Latest() *core.Observation {
	c.EvictExpired()

	c.mu.Lock()
	defer c.mu.Unlock()

	var best memEntry
	for _, entry := range c.entries {
		if best.observation == nil || entry.insertedAt.After(best.insertedAt) {
			best = entry
		}
	}
	if best.observation == nil {
		return nil
	}
	return best.observation.Clone()
}

// LookupFuzzy returns a clone of a cached observation whose screenshot is
// visually equivalent to the given one, within tolerancePct percent of
// differing pixels. The memory tier is probed before the disk tier; each
// tier scans its own bounded number of most-recent candidates. An empty or
// unreadable cache yields nil, never an error.
func (c *Cache) LookupFuzzy(screenshot []byte, tolerancePct float64) *core.Observation {
	if len(screenshot) == 0 {
		return nil
	}
	required := 100 - tolerancePct

	if obs := c.fuzzyMemory(screenshot, required); obs != nil {
		return obs
	}
	return c.fuzzyDisk(screenshot, required)
}

func (c *Cache) fuzzyMemory(screenshot []byte, required float64) *core.Observation {
	c.mu.Lock()
	type cand struct {
		insertedAt time.Time
		obs        *core.Observation
		png        []byte
	}
	var cands []cand
	for _, entry := range c.entries {
		if c.now().Sub(entry.insertedAt) >= c.opts.TTL || len(entry.screenshot) == 0 {
			continue
		}
		cands = append(cands, cand{entry.insertedAt, entry.observation, entry.screenshot})
	}
	c.mu.Unlock()

	sort.Slice(cands, func(i, j int) bool { return cands[i].insertedAt.After(cands[j].insertedAt) })
	if max := c.opts.MemoryCandidates; max > 0 && len(cands) > max {
		cands = cands[:max]
	}

	for _, cd := range cands {
		if Similarity(screenshot, cd.png) >= required {
			return cd.obs.Clone()
		}
	}
	return nil
}

func (c *Cache) fuzzyDisk(screenshot []byte, required float64) *core.Observation {
	dir := filepath.Join(c.opts.Root, screenshotDir)
	names, err := filesByModTime(dir, false)
	if err != nil {
		logger.Debug("fuzzy disk scan unavailable: %v", err)
		return nil
	}

	scanned := 0
	for _, name := range names {
		if max := c.opts.DiskCandidates; max > 0 && scanned >= max {
			break
		}
		token := tokenFromScreenshot(name)
		if token == "" {
			continue
		}
		scanned++

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.Debug("read cached screenshot %s: %v", name, err)
			continue
		}
		if Similarity(screenshot, data) >= required {
			if obs := c.loadFromDisk(token); obs != nil {
				return obs
			}
		}
	}
	return nil
}

// EvictExpired removes memory entries older than the TTL.
func (c *Cache) EvictExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for token, entry := range c.entries {
		if c.now().Sub(entry.insertedAt) >= c.opts.TTL {
			delete(c.entries, token)
		}
	}
}

// Stats reports entry counts and disk usage for diagnostics.
func (c *Cache) Stats() (memEntries int, diskFiles int, diskBytes int64) {
	c.mu.Lock()
	memEntries = len(c.entries)
	c.mu.Unlock()

	for _, sub := range []string{hierarchyDir, screenshotDir} {
		dir := filepath.Join(c.opts.Root, sub)
		infos, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, de := range infos {
			if info, err := de.Info(); err == nil && !info.IsDir() {
				diskFiles++
				diskBytes += info.Size()
			}
		}
	}
	return
}

// Clear drops the memory tier and deletes all cache files.
func (c *Cache) Clear() {
	c.Flush()

	c.mu.Lock()
	c.entries = make(map[string]memEntry)
	c.mu.Unlock()

	for _, sub := range []string{hierarchyDir, screenshotDir} {
		dir := filepath.Join(c.opts.Root, sub)
		names, err := filesByModTime(dir, true)
		if err != nil {
			continue
		}
		for _, name := range names {
			if err := os.Remove(filepath.Join(dir, name)); err != nil {
				logger.Warn("clear cache file %s: %v", name, err)
			}
		}
	}
}

// ScreenshotPath returns where the screenshot for the given capture token
// lives (or will live) on disk.
func (c *Cache) ScreenshotPath(token string) string {
	return filepath.Join(c.opts.Root, screenshotDir, "screenshot_"+token+".png")
}

// persistEntry writes the observation JSON and screenshot to disk.
// Failures are logged and swallowed; the memory tier stays authoritative.
func (c *Cache) persistEntry(token string, obs *core.Observation, screenshot []byte) {
	data, err := json.MarshalIndent(obs, "", "  ")
	if err != nil {
		logger.Warn("marshal observation %s: %v", token, err)
		return
	}

	hPath := filepath.Join(c.opts.Root, hierarchyDir, "hierarchy_"+token+".json")
	if err := os.WriteFile(hPath, data, 0644); err != nil {
		logger.Warn("persist hierarchy %s: %v", token, err)
		return
	}

	if len(screenshot) > 0 {
		sPath := filepath.Join(c.opts.Root, screenshotDir, "screenshot_"+token+".png")
		if err := os.WriteFile(sPath, screenshot, 0644); err != nil {
			logger.Warn("persist screenshot %s: %v", token, err)
		}
	}
}

// loadFromDisk reads the persisted observation for token, enforcing the TTL
// by file modification time. Any fault is a miss.
func (c *Cache) loadFromDisk(token string) *core.Observation {
	hPath := filepath.Join(c.opts.Root, hierarchyDir, "hierarchy_"+token+".json")

	info, err := os.Stat(hPath)
	if err != nil {
		return nil
	}
	if c.now().Sub(info.ModTime()) >= c.opts.TTL {
		c.removeEntryFiles(token)
		return nil
	}

	data, err := os.ReadFile(hPath)
	if err != nil {
		logger.Debug("read cached hierarchy %s: %v", token, err)
		return nil
	}

	var obs core.Observation
	if err := json.Unmarshal(data, &obs); err != nil {
		logger.Warn("corrupt cache entry %s, dropping: %v", token, err)
		c.removeEntryFiles(token)
		return nil
	}
	return &obs
}

// removeEntryFiles deletes both files of a cache entry, ignoring errors.
func (c *Cache) removeEntryFiles(token string) {
	os.Remove(filepath.Join(c.opts.Root, hierarchyDir, "hierarchy_"+token+".json"))
	os.Remove(filepath.Join(c.opts.Root, screenshotDir, "screenshot_"+token+".png"))
}

// evictBySize deletes oldest-by-modification-time cache files until the
// aggregate size fits the budget.
func (c *Cache) evictBySize() {
	if c.opts.MaxDiskBytes <= 0 {
		return
	}

	type file struct {
		path    string
		size    int64
		modTime time.Time
	}
	var files []file
	var total int64

	for _, sub := range []string{hierarchyDir, screenshotDir} {
		dir := filepath.Join(c.opts.Root, sub)
		des, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, de := range des {
			info, err := de.Info()
			if err != nil || info.IsDir() {
				continue
			}
			files = append(files, file{filepath.Join(dir, de.Name()), info.Size(), info.ModTime()})
			total += info.Size()
		}
	}

	if total <= c.opts.MaxDiskBytes {
		return
	}

	sort.Slice(files, func(i, j int) bool { return files[i].modTime.Before(files[j].modTime) })
	for _, f := range files {
		if total <= c.opts.MaxDiskBytes {
			break
		}
		if err := os.Remove(f.path); err != nil {
			logger.Warn("evict %s: %v", f.path, err)
			continue
		}
		total -= f.size
	}
}

// filesByModTime lists the plain files of dir; newest first unless asc.
func filesByModTime(dir string, asc bool) ([]string, error) {
	des, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	type nf struct {
		name    string
		modTime time.Time
	}
	var files []nf
	for _, de := range des {
		info, err := de.Info()
		if err != nil || info.IsDir() {
			continue
		}
		files = append(files, nf{de.Name(), info.ModTime()})
	}

	sort.Slice(files, func(i, j int) bool {
		if asc {
			return files[i].modTime.Before(files[j].modTime)
		}
		return files[i].modTime.After(files[j].modTime)
	})

	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.name
	}
	return names, nil
}

// tokenFromScreenshot extracts the capture token from a screenshot filename.
func tokenFromScreenshot(name string) string {
	if !strings.HasPrefix(name, "screenshot_") || !strings.HasSuffix(name, ".png") {
		return ""
	}
	return strings.TrimSuffix(strings.TrimPrefix(name, "screenshot_"), ".png")
}
