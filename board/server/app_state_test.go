// ABOUTME: Tests for AppState: workspace creation, event log persistence, hub forwarding, and recovery.
package server_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/2389-research/funnel/board/core"
	"github.com/2389-research/funnel/board/server"
	"github.com/2389-research/funnel/board/store"
)

func newAppState(t *testing.T, home string) (*server.AppState, store.Persister) {
	t.Helper()
	mgr, err := store.NewStorageManager(home)
	if err != nil {
		t.Fatalf("NewStorageManager: %v", err)
	}
	p, err := mgr.Open(context.Background(), store.BackendConfig{Backend: store.BackendFile})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	state := server.NewAppState(context.Background(), server.Deps{
		Manager: mgr,
		Repo:    store.NewRepository(p),
	})
	return state, p
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestCreateWorkspaceRejectsBlankName(t *testing.T) {
	state, _ := newAppState(t, t.TempDir())
	defer state.Shutdown()
	_, err := state.CreateWorkspace(context.Background(), "   ")
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("CreateWorkspace = %v, want validation error", err)
	}
}

func TestAppStatePersistsAndRecovers(t *testing.T) {
	home := t.TempDir()
	ctx := context.Background()
	state, _ := newAppState(t, home)

	handle, err := state.CreateWorkspace(ctx, "Sales")
	if err != nil {
		t.Fatalf("CreateWorkspace: %v", err)
	}
	if got := state.GetActor(handle.WorkspaceID); got != handle {
		t.Fatal("GetActor did not return the attached actor")
	}
	again, err := state.Attach(handle.Snapshot())
	if err != nil || again != handle {
		t.Fatalf("re-Attach returned a different actor: %v", err)
	}

	events, err := handle.SendCommand(ctx, core.CreateBoardCommand{Name: "Pipeline"})
	if err != nil {
		t.Fatalf("CreateBoard: %v", err)
	}
	boardID := events[0].Payload.(core.BoardCreatedPayload).BoardID

	mgr, _ := store.NewStorageManager(home)
	logPath := mgr.EventLogPath(handle.WorkspaceID)
	eventually(t, "event log append", func() bool {
		got, err := store.ReplayJsonl(logPath)
		return err == nil && len(got) == 1
	})
	state.Shutdown()
	if len(state.ListActorIDs()) != 0 {
		t.Fatal("Shutdown left actors attached")
	}

	restarted, p := newAppState(t, home)
	defer restarted.Shutdown()
	n, err := restarted.Recover(ctx, p)
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if n != 1 {
		t.Fatalf("recovered %d workspaces, want 1", n)
	}
	recovered := restarted.GetActor(handle.WorkspaceID)
	if recovered == nil {
		t.Fatal("recovered workspace not attached")
	}
	b, ok := recovered.Snapshot().Board(boardID)
	if !ok || b.Name != "Pipeline" {
		t.Fatalf("recovered board = %+v, %v", b, ok)
	}
}

func TestProvisionalMovesAreNotLogged(t *testing.T) {
	home := t.TempDir()
	ctx := context.Background()
	state, _ := newAppState(t, home)
	defer state.Shutdown()

	handle, err := state.CreateWorkspace(ctx, "Sales")
	if err != nil {
		t.Fatalf("CreateWorkspace: %v", err)
	}
	evs, err := handle.SendCommand(ctx, core.CreateBoardCommand{Name: "Pipeline"})
	if err != nil {
		t.Fatalf("CreateBoard: %v", err)
	}
	boardID := evs[0].Payload.(core.BoardCreatedPayload).BoardID
	var lists []core.ListCreatedPayload
	for _, title := range []string{"Todo", "Done"} {
		evs, err := handle.SendCommand(ctx, core.CreateListCommand{BoardID: boardID, Title: title})
		if err != nil {
			t.Fatalf("CreateList: %v", err)
		}
		lists = append(lists, evs[0].Payload.(core.ListCreatedPayload))
	}
	evs, err = handle.SendCommand(ctx, core.CreateCardCommand{BoardID: boardID, ListID: lists[0].ListID, Card: core.CardInput{Title: "Lead"}})
	if err != nil {
		t.Fatalf("CreateCard: %v", err)
	}
	cardID := evs[0].Payload.(core.CardCreatedPayload).Card.ID

	cmds := []core.Command{
		core.DragStartCommand{BoardID: boardID, CardID: cardID},
		core.DragOverCommand{BoardID: boardID, Target: core.DragTarget{ListID: &lists[1].ListID}},
		core.DragEndCommand{BoardID: boardID, Target: &core.DragTarget{ListID: &lists[1].ListID}},
	}
	for _, cmd := range cmds {
		if _, err := handle.SendCommand(ctx, cmd); err != nil {
			t.Fatalf("%s: %v", cmd.CommandType(), err)
		}
	}

	mgr, _ := store.NewStorageManager(home)
	logPath := mgr.EventLogPath(handle.WorkspaceID)
	var logged []core.Event
	eventually(t, "committed move logged", func() bool {
		logged, _ = store.ReplayJsonl(logPath)
		for _, ev := range logged {
			if m, ok := ev.Payload.(core.CardMovedPayload); ok && !m.Provisional {
				return true
			}
		}
		return false
	})
	for _, ev := range logged {
		if m, ok := ev.Payload.(core.CardMovedPayload); ok && m.Provisional {
			t.Fatalf("provisional move logged: %+v", m)
		}
	}
}
