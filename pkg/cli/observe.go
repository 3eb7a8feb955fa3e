package cli

import (
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/screenstate/pkg/stability"
)

var observeCommand = &cli.Command{
	Name:  "observe",
	Usage: "Capture and print the current screen observation",
	Description: `Capture the device's view hierarchy and screenshot as one observation.
Visually equivalent captures are served from the observation cache unless
--fresh is given.

Examples:
  screenstate observe
  screenstate observe --fresh
  screenstate observe --tolerance 0`,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "fresh",
			Usage: "Bypass the cache and capture from the device",
		},
		&cli.Float64Flag{
			Name:  "tolerance",
			Usage: "Fuzzy match tolerance in percent of differing pixels",
			Value: -1,
		},
	},
	Action: runObserve,
}

func runObserve(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}

	tolerance := c.Float64("tolerance")
	if tolerance < 0 {
		tolerance = e.cfg.FuzzyTolerancePercent
	}

	obs := e.obs.Capture(tolerance)
	if c.Bool("fresh") {
		obs = e.obs.CaptureFresh(tolerance)
	}
	e.cache.Flush()

	if !obs.Valid() {
		return fmt.Errorf("observation capture failed: %s", obs.HierarchyErr)
	}

	data, err := json.MarshalIndent(obs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode observation: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

var stableCommand = &cli.Command{
	Name:  "stable",
	Usage: "Wait until the package's rendering goes quiet",
	Description: `Poll the package's frame render counters until no counter has moved
for the stability threshold, or the timeout elapses.

Examples:
  screenstate stable --package com.example.app
  screenstate stable --timeout-ms 3000`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "package",
			Usage: "Package to watch (default: the focused window's package)",
		},
		&cli.IntFlag{
			Name:  "timeout-ms",
			Usage: "Wait budget in milliseconds",
			Value: 10_000,
		},
	},
	Action: runStable,
}

func runStable(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}

	detector := stability.New(e.dev, stability.Options{
		PollInterval: e.cfg.PollInterval(),
		Threshold:    e.cfg.StabilityThreshold(),
	})

	state := detector.WaitSpeculative(c.String("package"), e.dev, msToDuration(c.Int("timeout-ms")))
	fmt.Println(state)

	if state == stability.TimedOut {
		return cli.Exit("", 1)
	}
	return nil
}

var cacheCommand = &cli.Command{
	Name:  "cache",
	Usage: "Inspect or clear the observation cache",
	Subcommands: []*cli.Command{
		{
			Name:   "stats",
			Usage:  "Print cache entry counts and disk usage",
			Action: runCacheStats,
		},
		{
			Name:   "clear",
			Usage:  "Drop all cached observations and screenshots",
			Action: runCacheClear,
		},
	},
}

func runCacheStats(c *cli.Context) error {
	e, err := setupCacheOnly(c)
	if err != nil {
		return err
	}

	mem, files, bytes := e.cache.Stats()
	fmt.Printf("memory entries: %d\n", mem)
	fmt.Printf("disk files:     %d\n", files)
	fmt.Printf("disk usage:     %.1f MiB (budget %.1f MiB)\n",
		float64(bytes)/(1024*1024), float64(e.cfg.MaxDiskCacheBytes)/(1024*1024))
	return nil
}

func runCacheClear(c *cli.Context) error {
	e, err := setupCacheOnly(c)
	if err != nil {
		return err
	}

	e.cache.Clear()
	fmt.Println("cache cleared")
	return nil
}
