package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lamplighter/internal/command"
	"github.com/dokzlo13/lamplighter/internal/config"
	"github.com/dokzlo13/lamplighter/internal/ledger"
	"github.com/dokzlo13/lamplighter/internal/pairing"
	"github.com/dokzlo13/lamplighter/internal/session"
)

// ErrPersist means a freshly paired session could not be saved.
var ErrPersist = errors.New("could not save bridge session")

// ErrLedgerDisabled is returned by History when no ledger is available.
var ErrLedgerDisabled = errors.New("ledger is disabled")

// App ties session handling, pairing and command execution together
// for a single invocation.
type App struct {
	cfg      *config.Config
	services *Services
	out      io.Writer
}

// New creates an App backed by the production services.
func New(cfg *config.Config, paths config.Paths, out io.Writer) (*App, error) {
	services, err := NewServices(cfg, paths)
	if err != nil {
		return nil, err
	}
	return NewWithServices(cfg, services, out), nil
}

// NewWithServices creates an App over explicit services.
func NewWithServices(cfg *config.Config, services *Services, out io.Writer) *App {
	if out == nil {
		out = io.Discard
	}
	return &App{cfg: cfg, services: services, out: out}
}

// Close releases the app's resources.
func (a *App) Close() error {
	return a.services.Close()
}

// Session returns the persisted session, pairing with a bridge first when
// none can be loaded. Pairing and persistence errors are fatal for the
// invocation and are returned.
func (a *App) Session(ctx context.Context) (session.Session, error) {
	sess, err := a.services.Store.Load()
	if err == nil {
		log.Debug().Str("bridge", sess.BridgeAddress).Msg("Loaded session")
		return sess, nil
	}

	fmt.Fprintf(a.out, "Couldn't load configuration: %v\n", err)
	fmt.Fprintln(a.out, "Starting bridge finding process...")

	orchestrator := pairing.New(
		a.services.Discoverer,
		a.services.Registrar,
		a.services.Waiter,
		a.out,
		pairing.Config{
			DeviceType:    a.cfg.Hue.DeviceType,
			RetryInterval: a.cfg.Pairing.RetryInterval.Duration(),
		},
	)

	sess, err = orchestrator.Pair(ctx)
	if err != nil {
		a.record(ctx, ledger.Entry{Kind: ledger.KindPairing, Outcome: "failed", Detail: err.Error()})
		return session.Session{}, err
	}

	fmt.Fprintln(a.out, "Found a bridge")
	fmt.Fprintf(a.out, "Username %s\n", sess.Credential)
	fmt.Fprintf(a.out, "IP %s\n", sess.BridgeAddress)

	if err := a.services.Store.Save(sess); err != nil {
		a.record(ctx, ledger.Entry{Kind: ledger.KindPairing, Target: sess.BridgeAddress, Outcome: "not_persisted", Detail: err.Error()})
		return session.Session{}, fmt.Errorf("%w to %s: %w", ErrPersist, a.services.Store.Path(), err)
	}
	fmt.Fprintln(a.out, "Saved config")

	a.record(ctx, ledger.Entry{Kind: ledger.KindPairing, Target: sess.BridgeAddress, Outcome: "registered"})
	return sess, nil
}

// Run obtains a session and executes req. The returned error covers the
// pairing phase only; what happened to the command itself is in the
// Outcome.
func (a *App) Run(ctx context.Context, req command.Request) (command.Outcome, error) {
	sess, err := a.Session(ctx)
	if err != nil {
		return command.Outcome{}, err
	}

	executor := command.NewExecutor(a.services.NewBridge(sess), a.out)
	outcome := executor.Execute(ctx, req)

	entry := ledger.Entry{
		Kind:    ledger.KindCommand,
		Target:  fmt.Sprintf("%s %s", req.Action, outcome.Target),
		Outcome: outcome.Kind.String(),
	}
	if failure := outcome.Failure(); failure != nil {
		entry.Detail = failure.Error()
	} else {
		entry.Detail = outcome.State.String()
	}
	a.record(ctx, entry)

	return outcome, nil
}

// History returns the most recent ledger entries, newest first.
func (a *App) History(ctx context.Context, limit int) ([]ledger.Entry, error) {
	if a.services.Ledger == nil {
		return nil, ErrLedgerDisabled
	}
	return a.services.Ledger.Recent(ctx, limit)
}

func (a *App) record(ctx context.Context, e ledger.Entry) {
	if a.services.Recorder == nil {
		return
	}
	// Record even after an interrupt.
	if err := a.services.Recorder.Append(context.WithoutCancel(ctx), e); err != nil {
		log.Warn().Err(err).Msg("Failed to record ledger entry")
	}
}

// SignalContext creates a context that is cancelled when SIGINT or SIGTERM is received.
func SignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Warn().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	return ctx
}
