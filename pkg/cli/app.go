package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/screenstate/pkg/actions"
	"github.com/devicelab-dev/screenstate/pkg/config"
	"github.com/devicelab-dev/screenstate/pkg/core"
	"github.com/devicelab-dev/screenstate/pkg/device"
	"github.com/devicelab-dev/screenstate/pkg/logger"
	"github.com/devicelab-dev/screenstate/pkg/obscache"
	"github.com/devicelab-dev/screenstate/pkg/observer"
	"github.com/devicelab-dev/screenstate/pkg/script"
)

// env holds everything a command needs to run against one device.
type env struct {
	cfg    *config.Config
	dev    *device.AndroidDevice
	cache  *obscache.Cache
	obs    *observer.Observer
	runner *actions.Runner
}

// setup loads configuration, initializes logging and connects the device.
func setup(c *cli.Context) (*env, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}

	if err := logger.Init(cfg.LogPath); err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}
	logger.SetVerbose(c.Bool("verbose"))

	serial := c.String("device")
	if serial == "" {
		serial = cfg.Device
	}
	dev, err := device.New(serial)
	if err != nil {
		return nil, err
	}

	cache, err := obscache.New(obscache.Options{
		Root:             cfg.CacheRoot,
		TTL:              cfg.CacheTTL(),
		MaxDiskBytes:     cfg.MaxDiskCacheBytes,
		MemoryCandidates: cfg.MemoryFuzzyCandidates,
		DiskCandidates:   cfg.DiskFuzzyCandidates,
	})
	if err != nil {
		return nil, fmt.Errorf("open observation cache: %w", err)
	}

	obs := observer.New(dev, cache, cfg)
	return &env{
		cfg:    cfg,
		dev:    dev,
		cache:  cache,
		obs:    obs,
		runner: actions.NewRunner(dev, obs),
	}, nil
}

// setupCacheOnly prepares config, logging and the cache without requiring
// a connected device. Used by the cache subcommands.
func setupCacheOnly(c *cli.Context) (*env, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}

	if err := logger.Init(cfg.LogPath); err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}
	logger.SetVerbose(c.Bool("verbose"))

	cache, err := obscache.New(obscache.Options{
		Root:             cfg.CacheRoot,
		TTL:              cfg.CacheTTL(),
		MaxDiskBytes:     cfg.MaxDiskCacheBytes,
		MemoryCandidates: cfg.MemoryFuzzyCandidates,
		DiskCandidates:   cfg.DiskFuzzyCandidates,
	})
	if err != nil {
		return nil, fmt.Errorf("open observation cache: %w", err)
	}

	return &env{cfg: cfg, cache: cache}, nil
}

func msToDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	if path := c.String("config"); path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
		return cfg, nil
	}
	return config.LoadFromDir(config.GetHome())
}

// observerOptions builds the per-action observation options from the
// command's shared flags.
func observerOptions(c *cli.Context) observer.Options {
	return observer.Options{
		ChangeExpected: c.Bool("expect-change"),
		Timeout:        time.Duration(c.Int("timeout-ms")) * time.Millisecond,
		PackageHint:    c.String("package"),
		TolerancePct:   -1,
	}
}

// actionFlags are the flags every observed action command shares.
var actionFlags = []cli.Flag{
	&cli.BoolFlag{
		Name:  "expect-change",
		Usage: "Fail unless the UI hierarchy changed",
	},
	&cli.IntFlag{
		Name:  "timeout-ms",
		Usage: "Stability wait budget in milliseconds",
	},
	&cli.StringFlag{
		Name:  "package",
		Usage: "Package to watch for render stability",
	},
	&cli.StringFlag{
		Name:  "assert",
		Usage: "JavaScript assertion evaluated against the result",
	},
	&cli.BoolFlag{
		Name:  "json",
		Usage: "Print the full result as JSON",
	},
}

// finish asserts, prints and exits on an action result.
func finish(c *cli.Context, e *env, result *core.ActionResult) error {
	e.cache.Flush()

	if expr := c.String("assert"); expr != "" {
		if err := runAssertion(expr, result); err != nil {
			return err
		}
	}

	if c.Bool("json") {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		fmt.Println(string(data))
	} else {
		printSummary(result)
	}

	if !result.Success {
		return cli.Exit("", 1)
	}
	return nil
}

func runAssertion(expr string, result *core.ActionResult) error {
	eng := script.New()
	if err := eng.Bind(result); err != nil {
		return fmt.Errorf("bind assertion context: %w", err)
	}
	ok, err := eng.EvalBool(expr)
	if err != nil {
		return err
	}
	if !ok {
		result.Fail(fmt.Sprintf("assertion failed: %s", expr))
	}
	return nil
}

func printSummary(result *core.ActionResult) {
	status := "OK"
	if !result.Success {
		status = "FAILED"
	}
	fmt.Printf("%s  %s (%.0fms, changed=%v)\n", status, result.Command,
		float64(result.Duration)/float64(time.Millisecond), result.Changed)
	if result.Error != "" {
		fmt.Printf("  reason: %s\n", result.Error)
	}
	if result.Message != "" {
		fmt.Printf("  %s\n", result.Message)
	}
	if obs := result.Observation; obs != nil && obs.ScreenshotPath != "" {
		fmt.Printf("  screenshot: %s\n", filepath.Clean(obs.ScreenshotPath))
	}
	if obs := result.Observation; obs != nil && obs.HierarchyErr != "" {
		fmt.Fprintf(os.Stderr, "  hierarchy capture failed: %s\n", obs.HierarchyErr)
	}
}
