package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"

	"github.com/dokzlo13/lamplighter/internal/brightness"
	"github.com/dokzlo13/lamplighter/internal/command"
)

const version = "0.1"

// errHelp is returned when help or version output was requested.
var errHelp = errors.New("help requested")

// invocation is the fully parsed command line.
type invocation struct {
	ConfigPath  string
	SessionPath string
	Verbose     bool

	// Request is set for on/off/dim.
	Request *command.Request
	// HistoryLimit is set for history.
	HistoryLimit int
	History      bool
}

// usageError is a command line that does not fit the grammar.
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

const rootUsage = `lamplighter %s - controls Philips Hue lights from the command line

Usage:
  lamplighter [global flags] <command> [args]

Commands:
  on   (LAMP | -g GROUP)    turns on a light or room
  off  (LAMP | -g GROUP)    turns off a light or room
  dim  LAMP BRIGHTNESS      change brightness (0-255 or 0-100%%)
  history [-n N]            show recent invocations

Global flags:
`

// parseArgs parses args (without the program name). Help and usage text
// is written to stderr.
func parseArgs(args []string, stderr io.Writer) (*invocation, error) {
	inv := &invocation{}

	global := pflag.NewFlagSet("lamplighter", pflag.ContinueOnError)
	global.SetOutput(stderr)
	global.SetInterspersed(false)
	global.StringVarP(&inv.ConfigPath, "config", "c", "", "path to settings file (default: XDG config dir)")
	global.StringVar(&inv.SessionPath, "session", "", "path to bridge session file (default: XDG config dir)")
	global.BoolVarP(&inv.Verbose, "verbose", "v", false, "enable debug logging")
	showVersion := global.Bool("version", false, "print version and exit")
	global.Usage = func() {
		fmt.Fprintf(stderr, rootUsage, version)
		global.PrintDefaults()
	}

	if err := global.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, errHelp
		}
		return nil, &usageError{msg: err.Error()}
	}
	if *showVersion {
		fmt.Fprintf(stderr, "lamplighter %s\n", version)
		return nil, errHelp
	}

	rest := global.Args()
	if len(rest) == 0 {
		global.Usage()
		return nil, usagef("a subcommand is required")
	}

	name, subArgs := rest[0], rest[1:]
	var err error
	switch name {
	case "on", "off":
		inv.Request, err = parseSwitch(command.Action(name), subArgs, stderr)
	case "dim":
		inv.Request, err = parseDim(subArgs, stderr)
	case "history":
		inv.History = true
		inv.HistoryLimit, err = parseHistory(subArgs, stderr)
	default:
		global.Usage()
		return nil, usagef("unknown subcommand %q", name)
	}
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func parseSwitch(action command.Action, args []string, stderr io.Writer) (*command.Request, error) {
	fs := pflag.NewFlagSet(string(action), pflag.ContinueOnError)
	fs.SetOutput(stderr)
	group := fs.StringP("group", "g", "", fmt.Sprintf("group to turn %s all lamps within", action))
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: lamplighter %s (LAMP | -g GROUP)\n", action)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, errHelp
		}
		return nil, &usageError{msg: err.Error()}
	}

	lamps := fs.Args()
	groupSet := fs.Changed("group")
	switch {
	case len(lamps) > 1:
		return nil, usagef("%s: expected one lamp name, got %d (quote names containing spaces)", action, len(lamps))
	case len(lamps) == 1 && groupSet:
		return nil, usagef("%s: LAMP cannot be used with --group", action)
	case len(lamps) == 0 && !groupSet:
		return nil, usagef("%s: either LAMP or --group is required", action)
	case groupSet && strings.TrimSpace(*group) == "":
		return nil, usagef("%s: --group needs a name", action)
	}

	req := &command.Request{Action: action, Group: *group}
	if len(lamps) == 1 {
		req.Lamp = lamps[0]
	}
	return req, nil
}

func parseDim(args []string, stderr io.Writer) (*command.Request, error) {
	fs := pflag.NewFlagSet("dim", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: lamplighter dim LAMP BRIGHTNESS")
		fmt.Fprintln(stderr, "  BRIGHTNESS is 0-255 or 0-100%")
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, errHelp
		}
		return nil, &usageError{msg: err.Error()}
	}

	pos := fs.Args()
	if len(pos) != 2 {
		return nil, usagef("dim: expected LAMP and BRIGHTNESS")
	}
	if err := brightness.Validate(pos[1]); err != nil {
		return nil, usagef("dim: %v", err)
	}

	return &command.Request{Action: command.ActionDim, Lamp: pos[0], Brightness: pos[1]}, nil
}

func parseHistory(args []string, stderr io.Writer) (int, error) {
	fs := pflag.NewFlagSet("history", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	limit := fs.IntP("limit", "n", 20, "number of entries to show")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0, errHelp
		}
		return 0, &usageError{msg: err.Error()}
	}
	if fs.NArg() != 0 {
		return 0, usagef("history: unexpected argument %q", fs.Arg(0))
	}
	if *limit <= 0 {
		return 0, usagef("history: --limit must be positive")
	}
	return *limit, nil
}
