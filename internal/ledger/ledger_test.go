package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/dokzlo13/lamplighter/internal/db"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "ledger.sqlite"))
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return New(database.DB)
}

func TestAppendAndRecent(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	for i, target := range []string{"Lamp", "Desk", "Hall"} {
		e := Entry{Kind: KindCommand, Target: target, Outcome: "applied", Timestamp: base.Add(time.Duration(i) * time.Minute)}
		if err := l.Append(ctx, e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, err := l.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	if got[0].Target != "Hall" || got[1].Target != "Desk" {
		t.Errorf("order = %s, %s; want Hall, Desk", got[0].Target, got[1].Target)
	}
	if got[0].ID == "" || got[0].ID == got[1].ID {
		t.Errorf("ids should be unique and non-empty: %q %q", got[0].ID, got[1].ID)
	}
	if !got[0].Timestamp.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("timestamp = %s", got[0].Timestamp)
	}
}

func TestDeleteOlderThan(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	l.Append(ctx, Entry{Kind: KindPairing, Outcome: "registered", Timestamp: now.Add(-48 * time.Hour)})
	l.Append(ctx, Entry{Kind: KindCommand, Outcome: "applied"})

	n, err := l.DeleteOlderThan(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("DeleteOlderThan: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted %d, want 1", n)
	}

	got, _ := l.Recent(ctx, 10)
	if len(got) != 1 || got[0].Kind != KindCommand {
		t.Errorf("remaining = %+v", got)
	}
}

func TestNop(t *testing.T) {
	var r Recorder = Nop{}
	if err := r.Append(context.Background(), Entry{}); err != nil {
		t.Errorf("Nop.Append: %v", err)
	}
}
