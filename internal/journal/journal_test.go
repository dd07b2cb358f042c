package journal

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"device-protect/agent/internal/localdb"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	db, err := localdb.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open localdb: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	provider := sdklog.NewLoggerProvider()
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return New(db, provider, zerolog.Nop())
}

func TestRecordAndList(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	j.Record(ctx, Entry{
		Source:    "push",
		Verb:      "LOCK_DEVICE",
		LockState: "FROZEN",
		Actions:   []string{"show_lock_screen"},
	})
	j.Record(ctx, Entry{Source: "internal", Verb: "BREAK_EXPIRED", LockState: "FROZEN"})

	entries, err := j.List(0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Verb != "LOCK_DEVICE" || entries[1].Verb != "BREAK_EXPIRED" {
		t.Errorf("order = %q, %q", entries[0].Verb, entries[1].Verb)
	}
	if entries[0].ID == "" {
		t.Error("ID not assigned")
	}
	if entries[0].Time.IsZero() {
		t.Error("Time not assigned")
	}
}

func TestList_Limit(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		j.Record(ctx, Entry{Verb: "SYNC", Time: base.Add(time.Duration(i) * time.Second)})
	}
	entries, err := j.List(3)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("entries = %d, want 3", len(entries))
	}
}
