package main

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/unfoldedlabs/sheetmail/internal/campaign"
	"github.com/unfoldedlabs/sheetmail/internal/credstore"
	"github.com/unfoldedlabs/sheetmail/internal/engine"
	"github.com/unfoldedlabs/sheetmail/internal/schedule"
	"github.com/unfoldedlabs/sheetmail/internal/session"
)

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunDeferredWaitsForRestoredJobs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.json")
	jobStore := schedule.NewFile(path)
	if err := jobStore.Put(schedule.Job{
		ID: "j1", Type: schedule.TypeOneTime,
		FireAt: time.Now().Add(-time.Minute),
		Params: campaign.Params{SpreadsheetID: "old-sheet"},
	}); err != nil {
		t.Fatal(err)
	}

	log := slogDiscard()
	eng := engine.New(session.New(credstore.NewMemory(), log), jobStore, log)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	at := time.Now().Add(100 * time.Millisecond).Format(time.RFC3339)
	if err := runDeferred(ctx, eng, campaign.Params{SpreadsheetID: "new-sheet"}, at); err != nil {
		t.Fatalf("run deferred: %v", err)
	}

	// Both the restored job and the new one fired before return.
	if pending := eng.ListScheduled(); len(pending) != 0 {
		t.Fatalf("jobs still pending after return: %+v", pending)
	}
	jobs, err := jobStore.List()
	if err != nil {
		t.Fatalf("list store: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("fired jobs still persisted: %+v", jobs)
	}
}

func TestRunDeferredRejectsBadTime(t *testing.T) {
	log := slogDiscard()
	eng := engine.New(session.New(credstore.NewMemory(), log), nil, log)
	if err := runDeferred(context.Background(), eng, campaign.Params{}, "tomorrow"); err == nil {
		t.Fatalf("expected error for unparseable -at")
	}
}
