package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lamplighter/internal/app"
	"github.com/dokzlo13/lamplighter/internal/config"
	"github.com/dokzlo13/lamplighter/internal/pairing"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	inv, err := parseArgs(args, stderr)
	if errors.Is(err, errHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	}

	paths := config.DefaultPaths()
	if inv.ConfigPath != "" {
		paths.Config = inv.ConfigPath
	}
	if inv.SessionPath != "" {
		paths.Session = inv.SessionPath
	}

	cfg, err := config.Load(paths.Config)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load configuration: %v\n", err)
		return 1
	}

	level := cfg.Log.Level
	if inv.Verbose {
		level = "debug"
	}
	setupLogging(stderr, level, cfg.Log.JSON, cfg.Log.Colors)

	application, err := app.New(cfg, paths, stdout)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create application")
		return 1
	}
	defer application.Close()

	ctx := app.SignalContext()

	if inv.History {
		return printHistory(ctx, application, inv.HistoryLimit, stdout, stderr)
	}

	outcome, err := application.Run(ctx, *inv.Request)
	if err != nil {
		reportPairingError(stdout, err)
		return 1
	}

	// Command outcomes are reported but never change the exit status.
	if failure := outcome.Failure(); failure != nil {
		log.Warn().Err(failure).Stringer("outcome", outcome.Kind).Msg("Command not applied")
	}
	return 0
}

func reportPairingError(out io.Writer, err error) {
	switch {
	case errors.Is(err, pairing.ErrNoBridge):
		fmt.Fprintf(out, "Didn't find a bridge: %v\n", err)
	case errors.Is(err, app.ErrPersist):
		fmt.Fprintf(out, "Error saving config %v\n", err)
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(out, "Interrupted before pairing completed")
	default:
		fmt.Fprintf(out, "Unexpected error occurred: %v\n", err)
	}
}

func printHistory(ctx context.Context, application *app.App, limit int, stdout, stderr io.Writer) int {
	entries, err := application.History(ctx, limit)
	if err != nil {
		fmt.Fprintf(stderr, "Cannot read history: %v\n", err)
		return 1
	}

	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tKIND\tTARGET\tOUTCOME\tDETAIL")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			e.Timestamp.Local().Format(time.DateTime), e.Kind, e.Target, e.Outcome, e.Detail)
	}
	if err := w.Flush(); err != nil {
		return 1
	}
	return 0
}

func setupLogging(out io.Writer, level string, useJSON bool, colors bool) {
	// ISO 8601 format with timezone
	zerolog.TimeFieldFormat = time.RFC3339

	if useJSON {
		log.Logger = zerolog.New(out).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: "15:04:05",
			NoColor:    !colors,
		})
	}

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}
}
