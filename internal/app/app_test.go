package app

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dokzlo13/lamplighter/internal/command"
	"github.com/dokzlo13/lamplighter/internal/config"
	"github.com/dokzlo13/lamplighter/internal/db"
	"github.com/dokzlo13/lamplighter/internal/hue"
	"github.com/dokzlo13/lamplighter/internal/ledger"
	"github.com/dokzlo13/lamplighter/internal/pairing"
	"github.com/dokzlo13/lamplighter/internal/session"
)

// countingStore wraps a real store and counts saves.
type countingStore struct {
	*session.Store
	saves   int
	saveErr error
}

func (s *countingStore) Save(sess session.Session) error {
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	return s.Store.Save(sess)
}

type stubDiscoverer struct {
	bridges []hue.BridgeInfo
	calls   int
}

func (s *stubDiscoverer) Discover(ctx context.Context) ([]hue.BridgeInfo, error) {
	s.calls++
	return s.bridges, nil
}

type scriptedRegistrar struct {
	linkFailures int
	credential   string
}

func (r *scriptedRegistrar) Register(ctx context.Context, address, deviceType string) (string, error) {
	if r.linkFailures > 0 {
		r.linkFailures--
		return "", &hue.APIError{Type: hue.ErrorTypeLinkButtonNotSet}
	}
	return r.credential, nil
}

type submission struct {
	id    int
	state hue.LightState
}

type fakeBridge struct {
	lights      []hue.Light
	submissions []submission
}

func (f *fakeBridge) GetLights(ctx context.Context) ([]hue.Light, error) {
	return f.lights, nil
}

func (f *fakeBridge) SetLightState(ctx context.Context, id int, state hue.LightState) error {
	f.submissions = append(f.submissions, submission{id, state})
	return nil
}

type harness struct {
	app        *App
	store      *countingStore
	discoverer *stubDiscoverer
	registrar  *scriptedRegistrar
	waits      int
	bridge     *fakeBridge
	sessions   []session.Session
	out        *bytes.Buffer
	ledger     *ledger.Ledger
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()

	database, err := db.Open(filepath.Join(dir, "ledger.sqlite"))
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}

	h := &harness{
		store:      &countingStore{Store: session.NewStore(filepath.Join(dir, session.FileName))},
		discoverer: &stubDiscoverer{bridges: []hue.BridgeInfo{{Address: "10.0.0.2"}}},
		registrar:  &scriptedRegistrar{credential: "new-credential"},
		bridge:     &fakeBridge{lights: []hue.Light{{ID: 1, Name: "Desk"}, {ID: 2, Name: "Lamp"}}},
		out:        &bytes.Buffer{},
		ledger:     ledger.New(database.DB),
	}

	services := &Services{
		Store:      h.store,
		Discoverer: h.discoverer,
		Registrar:  h.registrar,
		Waiter: pairing.WaitFunc(func(ctx context.Context, d time.Duration) error {
			h.waits++
			return nil
		}),
		NewBridge: func(sess session.Session) command.Bridge {
			h.sessions = append(h.sessions, sess)
			return h.bridge
		},
		DB:       database,
		Ledger:   h.ledger,
		Recorder: h.ledger,
	}
	h.app = NewWithServices(config.Default(), services, h.out)
	t.Cleanup(func() { h.app.Close() })
	return h
}

func (h *harness) persist(t *testing.T, sess session.Session) {
	t.Helper()
	if err := h.store.Store.Save(sess); err != nil {
		t.Fatal(err)
	}
}

func TestRun_OnWithPersistedSession(t *testing.T) {
	h := newHarness(t)
	h.persist(t, session.Session{Credential: "cred", BridgeAddress: "10.0.0.9"})

	outcome, err := h.app.Run(context.Background(), command.Request{Action: command.ActionOn, Lamp: "Lamp"})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if outcome.Kind != command.OutcomeApplied {
		t.Fatalf("outcome = %+v", outcome)
	}
	if len(h.bridge.submissions) != 1 {
		t.Fatalf("submissions = %d, want exactly 1", len(h.bridge.submissions))
	}
	if sub := h.bridge.submissions[0]; sub.id != 2 || !sub.state.On {
		t.Errorf("submission = %+v", sub)
	}
	if h.discoverer.calls != 0 || h.store.saves != 0 {
		t.Error("a persisted session must skip pairing")
	}
	if len(h.sessions) != 1 || h.sessions[0].Credential != "cred" {
		t.Errorf("bridge built for %+v", h.sessions)
	}
}

func TestRun_Dim50Percent(t *testing.T) {
	h := newHarness(t)
	h.persist(t, session.Session{Credential: "cred", BridgeAddress: "10.0.0.9"})

	_, err := h.app.Run(context.Background(), command.Request{Action: command.ActionDim, Lamp: "Lamp", Brightness: "50%"})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(h.bridge.submissions) != 1 {
		t.Fatalf("submissions = %d", len(h.bridge.submissions))
	}
	state := h.bridge.submissions[0].state
	if bri, ok := state.Brightness(); !state.On || !ok || bri != 127 {
		t.Errorf("state = %s, want on=true bri=127", state)
	}
}

func TestRun_PairsAfterLinkPresses(t *testing.T) {
	h := newHarness(t)
	h.registrar.linkFailures = 2

	outcome, err := h.app.Run(context.Background(), command.Request{Action: command.ActionOff, Lamp: "desk"})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if h.waits != 2 {
		t.Errorf("waits = %d, want 2", h.waits)
	}
	if h.store.saves != 1 {
		t.Errorf("saves = %d, want 1", h.store.saves)
	}

	saved, err := h.store.Load()
	if err != nil {
		t.Fatalf("saved session unreadable: %v", err)
	}
	if saved != (session.Session{Credential: "new-credential", BridgeAddress: "10.0.0.2"}) {
		t.Errorf("saved = %+v", saved)
	}
	if outcome.Kind != command.OutcomeApplied {
		t.Errorf("command should run right after pairing, outcome = %+v", outcome)
	}

	out := h.out.String()
	for _, want := range []string{"Starting bridge finding process...", "Found a bridge", "Username new-credential", "IP 10.0.0.2", "Saved config"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRun_MalformedSessionTriggersPairing(t *testing.T) {
	h := newHarness(t)
	if err := writeFile(h.store.Path(), "only-one-line"); err != nil {
		t.Fatal(err)
	}

	if _, err := h.app.Run(context.Background(), command.Request{Action: command.ActionOn, Lamp: "Lamp"}); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if h.discoverer.calls != 1 || h.store.saves != 1 {
		t.Errorf("discover calls = %d saves = %d, want 1 and 1", h.discoverer.calls, h.store.saves)
	}
}

func TestRun_NoBridgeIsFatal(t *testing.T) {
	h := newHarness(t)
	h.discoverer.bridges = nil

	_, err := h.app.Run(context.Background(), command.Request{Action: command.ActionOn, Lamp: "Lamp"})
	if !errors.Is(err, pairing.ErrNoBridge) {
		t.Fatalf("expected ErrNoBridge, got %v", err)
	}
	if h.store.saves != 0 {
		t.Errorf("saves = %d, want 0", h.store.saves)
	}
	if len(h.bridge.submissions) != 0 {
		t.Error("no command may run without a session")
	}
}

func TestRun_PersistFailureIsFatal(t *testing.T) {
	h := newHarness(t)
	h.store.saveErr = errors.New("disk full")

	_, err := h.app.Run(context.Background(), command.Request{Action: command.ActionOn, Lamp: "Lamp"})
	if !errors.Is(err, ErrPersist) {
		t.Fatalf("expected ErrPersist, got %v", err)
	}
	if len(h.bridge.submissions) != 0 {
		t.Error("command must abort when the session was not persisted")
	}
}

func TestRun_NotFoundIsNotAnError(t *testing.T) {
	h := newHarness(t)
	h.persist(t, session.Session{Credential: "cred", BridgeAddress: "10.0.0.9"})

	outcome, err := h.app.Run(context.Background(), command.Request{Action: command.ActionOn, Lamp: "Sofa"})
	if err != nil {
		t.Fatalf("device-not-found must not be a run error, got %v", err)
	}
	if outcome.Kind != command.OutcomeDeviceNotFound {
		t.Errorf("kind = %v", outcome.Kind)
	}
}

func TestHistory_RecordsInvocations(t *testing.T) {
	h := newHarness(t)

	ctx := context.Background()
	if _, err := h.app.Run(ctx, command.Request{Action: command.ActionOn, Lamp: "Lamp"}); err != nil {
		t.Fatal(err)
	}
	if _, err := h.app.Run(ctx, command.Request{Action: command.ActionOn, Group: "Kitchen"}); err != nil {
		t.Fatal(err)
	}

	entries, err := h.app.History(ctx, 10)
	if err != nil {
		t.Fatalf("History error: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3 (pairing + 2 commands)", len(entries))
	}

	kinds := map[ledger.Kind]int{}
	outcomes := map[string]bool{}
	for _, e := range entries {
		kinds[e.Kind]++
		outcomes[e.Outcome] = true
	}
	if kinds[ledger.KindPairing] != 1 || kinds[ledger.KindCommand] != 2 {
		t.Errorf("kinds = %v", kinds)
	}
	for _, want := range []string{"registered", "applied", "group_unsupported"} {
		if !outcomes[want] {
			t.Errorf("missing outcome %q in %v", want, outcomes)
		}
	}
}

func TestHistory_Disabled(t *testing.T) {
	a := NewWithServices(config.Default(), &Services{}, nil)
	if _, err := a.History(context.Background(), 5); !errors.Is(err, ErrLedgerDisabled) {
		t.Errorf("expected ErrLedgerDisabled, got %v", err)
	}
}
