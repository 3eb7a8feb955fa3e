// Package cli provides the command-line interface for screenstate.
package cli

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "device",
		Aliases: []string{"serial"},
		Usage:   "Device serial to target (default: the single connected device)",
		EnvVars: []string{"SCREENSTATE_DEVICE"},
	},
	&cli.StringFlag{
		Name:  "config",
		Usage: "Path to config.yaml (default: <home>/config.yaml)",
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Enable verbose logging",
		EnvVars: []string{"SCREENSTATE_VERBOSE"},
	},
}

// Execute runs the CLI.
func Execute() {
	app := &cli.App{
		Name:    "screenstate",
		Usage:   "Observe and act on Android UI state",
		Version: Version,
		Description: `Screenstate captures device UI observations (view hierarchy plus
screenshot), caches them by visual similarity, and runs input actions
with before/after observation and render-stability waits.

Examples:
  screenstate observe
  screenstate tap --text "Sign in" --expect-change
  screenstate launch com.example.app
  screenstate stable --package com.example.app
  screenstate cache stats`,
		Flags: GlobalFlags,
		Commands: []*cli.Command{
			observeCommand,
			tapCommand,
			swipeCommand,
			inputCommand,
			backCommand,
			launchCommand,
			stopCommand,
			rotateCommand,
			stableCommand,
			cacheCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
