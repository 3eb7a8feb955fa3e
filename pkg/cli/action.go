package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/screenstate/pkg/actions"
)

var tapCommand = &cli.Command{
	Name:  "tap",
	Usage: "Tap an element or a screen point",
	Description: `Tap an element resolved by selector, or absolute coordinates.
When several elements match, the one most visible by z-order wins.

Examples:
  screenstate tap --text "Sign in"
  screenstate tap --id submit --expect-change
  screenstate tap --point 540,1200
  screenstate tap --contains password --index 1`,
	Flags: append([]cli.Flag{
		&cli.StringFlag{
			Name:  "text",
			Usage: "Exact text or content-desc to match",
		},
		&cli.StringFlag{
			Name:  "id",
			Usage: "resource-id to match (short form allowed)",
		},
		&cli.StringFlag{
			Name:  "contains",
			Usage: "Substring of the element text",
		},
		&cli.IntFlag{
			Name:  "index",
			Usage: "Pick the Nth match in document order",
			Value: -1,
		},
		&cli.StringFlag{
			Name:  "point",
			Usage: "Absolute coordinates x,y",
		},
	}, actionFlags...),
	Action: runTap,
}

func runTap(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}

	if pt := c.String("point"); pt != "" {
		x, y, err := parsePoint(pt)
		if err != nil {
			return err
		}
		result, err := e.runner.TapPoint(x, y, observerOptions(c))
		if err != nil {
			return err
		}
		return finish(c, e, result)
	}

	sel := actions.Selector{
		Text:         c.String("text"),
		ID:           c.String("id"),
		ContainsText: c.String("contains"),
	}
	if idx := c.Int("index"); idx >= 0 {
		sel.UseIndex = true
		sel.Index = idx
	}

	result, err := e.runner.Tap(sel, observerOptions(c))
	if err != nil {
		return err
	}
	return finish(c, e, result)
}

var swipeCommand = &cli.Command{
	Name:  "swipe",
	Usage: "Swipe in a direction or between two points",
	Description: `Examples:
  screenstate swipe --direction up
  screenstate swipe --from 540,1600 --to 540,400 --duration-ms 300`,
	Flags: append([]cli.Flag{
		&cli.StringFlag{
			Name:  "direction",
			Usage: "up, down, left or right",
		},
		&cli.StringFlag{
			Name:  "from",
			Usage: "Start coordinates x,y",
		},
		&cli.StringFlag{
			Name:  "to",
			Usage: "End coordinates x,y",
		},
		&cli.IntFlag{
			Name:  "duration-ms",
			Usage: "Gesture duration in milliseconds",
			Value: 300,
		},
	}, actionFlags...),
	Action: runSwipe,
}

func runSwipe(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}

	if dir := c.String("direction"); dir != "" {
		result, err := e.runner.SwipeDirection(dir, c.Int("duration-ms"), observerOptions(c))
		if err != nil {
			return err
		}
		return finish(c, e, result)
	}

	x1, y1, err := parsePoint(c.String("from"))
	if err != nil {
		return fmt.Errorf("--from: %w", err)
	}
	x2, y2, err := parsePoint(c.String("to"))
	if err != nil {
		return fmt.Errorf("--to: %w", err)
	}

	result, err := e.runner.Swipe(x1, y1, x2, y2, c.Int("duration-ms"), observerOptions(c))
	if err != nil {
		return err
	}
	return finish(c, e, result)
}

var inputCommand = &cli.Command{
	Name:      "input",
	Usage:     "Type text into the focused element",
	ArgsUsage: "<text>",
	Flags:     actionFlags,
	Action: func(c *cli.Context) error {
		if c.NArg() < 1 {
			return fmt.Errorf("input requires the text to type")
		}
		e, err := setup(c)
		if err != nil {
			return err
		}
		result, err := e.runner.InputText(strings.Join(c.Args().Slice(), " "), observerOptions(c))
		if err != nil {
			return err
		}
		return finish(c, e, result)
	},
}

var backCommand = &cli.Command{
	Name:  "back",
	Usage: "Press the back button",
	Flags: actionFlags,
	Action: func(c *cli.Context) error {
		e, err := setup(c)
		if err != nil {
			return err
		}
		result, err := e.runner.Back(observerOptions(c))
		if err != nil {
			return err
		}
		return finish(c, e, result)
	},
}

var launchCommand = &cli.Command{
	Name:      "launch",
	Usage:     "Launch an app by package name",
	ArgsUsage: "<package>",
	Flags:     actionFlags,
	Action: func(c *cli.Context) error {
		e, err := setup(c)
		if err != nil {
			return err
		}
		result, err := e.runner.Launch(c.Args().First(), observerOptions(c))
		if err != nil {
			return err
		}
		return finish(c, e, result)
	},
}

var stopCommand = &cli.Command{
	Name:      "stop",
	Usage:     "Force-stop an app by package name",
	ArgsUsage: "<package>",
	Flags:     actionFlags,
	Action: func(c *cli.Context) error {
		e, err := setup(c)
		if err != nil {
			return err
		}
		result, err := e.runner.Stop(c.Args().First(), observerOptions(c))
		if err != nil {
			return err
		}
		return finish(c, e, result)
	},
}

var rotateCommand = &cli.Command{
	Name:      "rotate",
	Usage:     "Set the display rotation (0-3)",
	ArgsUsage: "<rotation>",
	Flags:     actionFlags,
	Action: func(c *cli.Context) error {
		rotation, err := strconv.Atoi(c.Args().First())
		if err != nil {
			return fmt.Errorf("rotation must be 0-3: %w", err)
		}
		e, err := setup(c)
		if err != nil {
			return err
		}
		result, err := e.runner.Rotate(rotation, observerOptions(c))
		if err != nil {
			return err
		}
		return finish(c, e, result)
	},
}

// parsePoint parses "x,y" coordinates.
func parsePoint(s string) (int, int, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected coordinates as x,y, got %q", s)
	}
	x, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid x coordinate %q", parts[0])
	}
	y, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid y coordinate %q", parts[1])
	}
	return x, y, nil
}
