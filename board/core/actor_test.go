// ABOUTME: Tests for the workspace actor: sequential command processing, saving, broadcasting, and shutdown.
// ABOUTME: A failing saver must surface its error while the in-memory mutation stands.
package core_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/2389-research/funnel/board/core"
	"go.uber.org/goleak"
)

type recordingSaver struct {
	mu    sync.Mutex
	saved []*core.Workspace
	err   error
}

func (r *recordingSaver) SaveWorkspace(_ context.Context, ws *core.Workspace) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, ws)
	return r.err
}

func (r *recordingSaver) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.saved)
}

func spawn(t *testing.T, saver core.WorkspaceSaver) *core.WorkspaceActorHandle {
	t.Helper()
	h := core.SpawnActor(core.NewWorkspace(core.NewULID(), "Acme"), saver)
	t.Cleanup(h.Stop)
	return h
}

func send(t *testing.T, h *core.WorkspaceActorHandle, cmd core.Command) []core.Event {
	t.Helper()
	events, err := h.SendCommand(context.Background(), cmd)
	if err != nil {
		t.Fatalf("SendCommand(%s): %v", cmd.CommandType(), err)
	}
	return events
}

func TestActorAppliesAndSaves(t *testing.T) {
	defer goleak.VerifyNone(t)
	saver := &recordingSaver{}
	h := core.SpawnActor(core.NewWorkspace(core.NewULID(), "Acme"), saver)
	defer h.Stop()

	events := send(t, h, core.CreateBoardCommand{Name: "Sales"})
	if len(events) != 1 || events[0].EventID != 1 {
		t.Fatalf("events: got %+v", events)
	}
	if events[0].WorkspaceID != h.WorkspaceID {
		t.Errorf("workspaceId: got %s, want %s", events[0].WorkspaceID, h.WorkspaceID)
	}
	boardID := *events[0].BoardID

	events = send(t, h, core.CreateListCommand{BoardID: boardID, Title: "Todo"})
	if events[0].EventID != 2 {
		t.Errorf("second event id: got %d, want 2", events[0].EventID)
	}

	var lists int
	h.ReadState(func(ws *core.Workspace) {
		b, _ := ws.Board(boardID)
		lists = len(b.Lists)
	})
	if lists != 1 {
		t.Errorf("lists: got %d, want 1", lists)
	}
	if saver.count() != 2 {
		t.Errorf("saves: got %d, want 2", saver.count())
	}
	if h.Snapshot().Version != 2 {
		t.Errorf("version: got %d, want 2", h.Snapshot().Version)
	}
}

func TestActorRejectsInvalidCommandWithoutSaving(t *testing.T) {
	saver := &recordingSaver{}
	h := spawn(t, saver)

	before := h.Snapshot()
	_, err := h.SendCommand(context.Background(), core.CreateBoardCommand{Name: " "})
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if h.Snapshot() != before {
		t.Error("state replaced after failed command")
	}
	if saver.count() != 0 {
		t.Errorf("saves: got %d, want 0", saver.count())
	}
}

func TestActorSaveFailureKeepsMutation(t *testing.T) {
	saver := &recordingSaver{err: errors.New("disk full")}
	h := spawn(t, saver)

	events, err := h.SendCommand(context.Background(), core.CreateBoardCommand{Name: "Sales"})
	if err == nil {
		t.Fatal("expected save error")
	}
	if len(events) != 1 {
		t.Errorf("events: got %d, want 1", len(events))
	}
	if n := len(h.Snapshot().Boards); n != 1 {
		t.Errorf("boards after failed save: got %d, want 1", n)
	}
}

func TestActorBroadcastsToSubscribers(t *testing.T) {
	h := spawn(t, nil)
	ch := h.Subscribe()

	send(t, h, core.CreateTagCommand{Name: "hot"})

	select {
	case ev := <-ch:
		if _, ok := ev.Payload.(core.TagSavedPayload); !ok {
			t.Errorf("payload: got %T, want TagSavedPayload", ev.Payload)
		}
		if ev.BoardID != nil {
			t.Errorf("boardId: got %v, want nil for workspace-level event", ev.BoardID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for broadcast")
	}

	h.Unsubscribe(ch)
	if _, open := <-ch; open {
		t.Error("channel still open after Unsubscribe")
	}
}

func TestActorTracksDragSessions(t *testing.T) {
	h := spawn(t, nil)
	boardID := *send(t, h, core.CreateBoardCommand{Name: "Sales"})[0].BoardID
	todo := send(t, h, core.CreateListCommand{BoardID: boardID, Title: "Todo"})[0].Payload.(core.ListCreatedPayload).ListID
	done := send(t, h, core.CreateListCommand{BoardID: boardID, Title: "Done"})[0].Payload.(core.ListCreatedPayload).ListID
	card := send(t, h, core.CreateCardCommand{BoardID: boardID, ListID: todo, Card: core.CardInput{Title: "X"}})[0].Payload.(core.CardCreatedPayload).Card

	send(t, h, core.DragStartCommand{BoardID: boardID, CardID: card.ID})
	if s := h.DragSession(boardID); s.State != core.DragDragging || s.CardID != card.ID {
		t.Fatalf("session after start: %+v", s)
	}
	send(t, h, core.DragOverCommand{BoardID: boardID, Target: core.DragTarget{ListID: &done}})
	if s := h.DragSession(boardID); s.SourceListID != done {
		t.Errorf("source after over: got %s, want %s", s.SourceListID, done)
	}
	events := send(t, h, core.DragEndCommand{BoardID: boardID, Target: &core.DragTarget{ListID: &done}})
	if s := h.DragSession(boardID); s.State != core.DragIdle {
		t.Errorf("session after end: %+v", s)
	}
	moved, ok := events[0].Payload.(core.CardMovedPayload)
	if !ok || moved.Provisional || moved.FromListID != todo {
		t.Errorf("end event: %+v", events[0].Payload)
	}
}

func TestActorStop(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := core.SpawnActor(core.NewWorkspace(core.NewULID(), "Acme"), nil)
	ch := h.Subscribe()
	h.Stop()
	h.Stop()

	if _, err := h.SendCommand(context.Background(), core.CreateBoardCommand{Name: "x"}); !errors.Is(err, core.ErrActorStopped) {
		t.Errorf("expected ErrActorStopped, got %v", err)
	}
	if _, open := <-ch; open {
		t.Error("subscriber channel still open after Stop")
	}
}
