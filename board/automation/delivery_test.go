// ABOUTME: Tests for the gorm delivery log: insert, per-workspace listing, and ordering.
package automation_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/2389-research/funnel/board/automation"
	"github.com/google/uuid"
)

func openLog(t *testing.T) *automation.DeliveryLog {
	t.Helper()
	log, err := automation.OpenDeliveryLog(filepath.Join(t.TempDir(), "deliveries.db"))
	if err != nil {
		t.Fatalf("OpenDeliveryLog: %v", err)
	}
	t.Cleanup(func() { _ = log.Close() })
	return log
}

func TestDeliveryLogListsNewestFirst(t *testing.T) {
	log := openLog(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, status := range []int{200, 500, 204} {
		d := automation.Delivery{
			ID:          uuid.NewString(),
			WorkspaceID: "ws-a",
			Trigger:     "card_moved",
			Method:      "POST",
			URL:         "https://x.test",
			Status:      status,
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}
		if status >= 300 {
			d.Error = "500 Internal Server Error"
		}
		if err := log.Record(ctx, d); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	if err := log.Record(ctx, automation.Delivery{ID: uuid.NewString(), WorkspaceID: "ws-b", CreatedAt: base}); err != nil {
		t.Fatalf("Record other workspace: %v", err)
	}

	got, err := log.List(ctx, "ws-a", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("List: got %d deliveries, want 3", len(got))
	}
	statuses := []int{got[0].Status, got[1].Status, got[2].Status}
	if statuses[0] != 204 || statuses[1] != 500 || statuses[2] != 200 {
		t.Errorf("order: got statuses %v, want [204 500 200]", statuses)
	}
	if got[1].Succeeded() || !got[0].Succeeded() {
		t.Errorf("Succeeded flags wrong: %+v", got)
	}

	limited, err := log.List(ctx, "ws-a", 1)
	if err != nil {
		t.Fatalf("List limited: %v", err)
	}
	if len(limited) != 1 || limited[0].Status != 204 {
		t.Errorf("limited: %+v", limited)
	}
}

func TestDeliveryLogRejectsDuplicateID(t *testing.T) {
	log := openLog(t)
	d := automation.Delivery{ID: uuid.NewString(), WorkspaceID: "ws", CreatedAt: time.Now().UTC()}
	if err := log.Record(context.Background(), d); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := log.Record(context.Background(), d); err == nil {
		t.Error("second Record with the same id: want error")
	}
}
