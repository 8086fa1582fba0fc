// ABOUTME: Tests for workspace-level operations: boards, tags by id, automations, and integrations.
// ABOUTME: Verifies cascades such as tag deletion stripping cards and integration deletion clearing automations.
package core_test

import (
	"errors"
	"testing"

	"github.com/2389-research/funnel/board/core"
	"github.com/google/go-cmp/cmp"
	"github.com/oklog/ulid/v2"
)

// workspaceWithBoard returns a workspace holding one board with the given lists.
func workspaceWithBoard(t *testing.T, titles ...string) (*core.Workspace, ulid.ULID, []ulid.ULID) {
	t.Helper()
	ws := core.NewWorkspace(core.NewULID(), "Acme")
	ws, b, err := ws.CreateBoard("Sales", "")
	if err != nil {
		t.Fatalf("CreateBoard: %v", err)
	}
	ids := make([]ulid.ULID, 0, len(titles))
	for _, title := range titles {
		var id ulid.ULID
		ws, err = ws.MutateBoard(b.ID, func(b *core.Board) (*core.Board, error) {
			nb, lid, err := core.CreateList(b, title, "")
			id = lid
			return nb, err
		})
		if err != nil {
			t.Fatalf("CreateList(%q): %v", title, err)
		}
		ids = append(ids, id)
	}
	return ws, b.ID, ids
}

func mustBoard(t *testing.T, ws *core.Workspace, id ulid.ULID) *core.Board {
	t.Helper()
	b, ok := ws.Board(id)
	if !ok {
		t.Fatalf("board %s not found", id)
	}
	return b
}

func TestCreateBoardDefaults(t *testing.T) {
	ws := core.NewWorkspace(core.NewULID(), "Acme")
	nw, b, err := ws.CreateBoard("  Sales ", "")
	if err != nil {
		t.Fatalf("CreateBoard: %v", err)
	}
	if b.Name != "Sales" || b.Visibility != core.VisibilityEveryone {
		t.Errorf("board: got %q/%q", b.Name, b.Visibility)
	}
	if len(ws.Boards) != 0 || len(nw.Boards) != 1 {
		t.Errorf("boards: old=%d new=%d, want 0/1", len(ws.Boards), len(nw.Boards))
	}
	if _, _, err := ws.CreateBoard("x", core.Visibility("friends")); !errors.Is(err, core.ErrValidation) {
		t.Errorf("bad visibility: expected ErrValidation, got %v", err)
	}
}

func TestUpdateBoardCompletedList(t *testing.T) {
	ws, boardID, ids := workspaceWithBoard(t, "Todo", "Won")

	ws, err := ws.UpdateBoard(boardID, core.BoardPatch{CompletedListID: core.Present(ids[1])})
	if err != nil {
		t.Fatalf("UpdateBoard: %v", err)
	}
	b := mustBoard(t, ws, boardID)
	if b.CompletedListID == nil || *b.CompletedListID != ids[1] {
		t.Fatalf("completedListId: got %v, want %s", b.CompletedListID, ids[1])
	}

	name := "Renamed"
	ws, err = ws.UpdateBoard(boardID, core.BoardPatch{Name: &name})
	if err != nil {
		t.Fatalf("UpdateBoard name: %v", err)
	}
	if b := mustBoard(t, ws, boardID); b.CompletedListID == nil || b.Name != "Renamed" {
		t.Errorf("absent completedListId was cleared or name not set: %+v", b)
	}

	ws, err = ws.UpdateBoard(boardID, core.BoardPatch{CompletedListID: core.Null[ulid.ULID]()})
	if err != nil {
		t.Fatalf("UpdateBoard clear: %v", err)
	}
	if b := mustBoard(t, ws, boardID); b.CompletedListID != nil {
		t.Errorf("completedListId: got %v, want nil", b.CompletedListID)
	}

	if _, err := ws.UpdateBoard(boardID, core.BoardPatch{CompletedListID: core.Present(core.NewULID())}); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("unknown list: expected ErrNotFound, got %v", err)
	}
	if _, err := ws.UpdateBoard(core.NewULID(), core.BoardPatch{Name: &name}); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("unknown board: expected ErrNotFound, got %v", err)
	}
}

func TestDeleteBoard(t *testing.T) {
	ws, boardID, _ := workspaceWithBoard(t, "Todo")
	nw, err := ws.DeleteBoard(boardID)
	if err != nil {
		t.Fatalf("DeleteBoard: %v", err)
	}
	if _, ok := nw.Board(boardID); ok {
		t.Error("board still present")
	}
	if _, ok := ws.Board(boardID); !ok {
		t.Error("input workspace was modified")
	}
	if _, err := nw.DeleteBoard(boardID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestTagRenameNeedsNoCascade(t *testing.T) {
	ws, boardID, ids := workspaceWithBoard(t, "Todo")
	ws, tag, err := ws.CreateTag("hot", "#FF0000")
	if err != nil {
		t.Fatalf("CreateTag: %v", err)
	}
	if tag.Color != "#ff0000" {
		t.Errorf("color: got %q, want lowercased", tag.Color)
	}
	var cardID ulid.ULID
	ws, err = ws.MutateBoard(boardID, func(b *core.Board) (*core.Board, error) {
		nb, id, err := core.CreateCard(b, ids[0], core.CardInput{Title: "deal", TagIDs: []ulid.ULID{tag.ID, tag.ID}})
		cardID = id
		return nb, err
	})
	if err != nil {
		t.Fatalf("CreateCard: %v", err)
	}

	name := "warm"
	ws, err = ws.UpdateTag(tag.ID, core.TagPatch{Name: &name})
	if err != nil {
		t.Fatalf("UpdateTag: %v", err)
	}
	card, _, _, _ := mustBoard(t, ws, boardID).FindCard(cardID)
	resolved := ws.ResolveTags(card)
	if len(resolved) != 1 || resolved[0].Name != "warm" {
		t.Errorf("resolved tags: got %+v, want [warm]", resolved)
	}
}

func TestDeleteTagStripsCards(t *testing.T) {
	ws, boardID, ids := workspaceWithBoard(t, "Todo")
	ws, hot, _ := ws.CreateTag("hot", "")
	ws, cold, _ := ws.CreateTag("cold", "")
	var cardID ulid.ULID
	ws, _ = ws.MutateBoard(boardID, func(b *core.Board) (*core.Board, error) {
		nb, id, err := core.CreateCard(b, ids[0], core.CardInput{Title: "deal", TagIDs: []ulid.ULID{hot.ID, cold.ID}})
		cardID = id
		return nb, err
	})

	nw, err := ws.DeleteTag(hot.ID)
	if err != nil {
		t.Fatalf("DeleteTag: %v", err)
	}
	card, _, _, _ := mustBoard(t, nw, boardID).FindCard(cardID)
	if diff := cmp.Diff([]ulid.ULID{cold.ID}, card.TagIDs); diff != "" {
		t.Errorf("card tags (-want +got):\n%s", diff)
	}
	old, _, _, _ := mustBoard(t, ws, boardID).FindCard(cardID)
	if len(old.TagIDs) != 2 {
		t.Error("input workspace card was modified")
	}
	if _, err := nw.DeleteTag(hot.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestTagValidation(t *testing.T) {
	ws := core.NewWorkspace(core.NewULID(), "Acme")
	if _, _, err := ws.CreateTag("", "#fff"); !errors.Is(err, core.ErrValidation) {
		t.Errorf("empty name: expected ErrValidation, got %v", err)
	}
	if _, _, err := ws.CreateTag("x", "fff"); !errors.Is(err, core.ErrValidation) {
		t.Errorf("bad color: expected ErrValidation, got %v", err)
	}
	if err := ws.CheckTagIDs([]ulid.ULID{core.NewULID()}); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("CheckTagIDs: expected ErrNotFound, got %v", err)
	}
}

func TestSaveAutomationValidation(t *testing.T) {
	ws, boardID, ids := workspaceWithBoard(t, "Todo", "Done")
	todo, done := ids[0], ids[1]

	tests := []struct {
		name string
		in   core.AutomationInput
		want error
	}{
		{"unknown trigger", core.AutomationInput{Trigger: "card_archived", WebhookURL: "https://example.com"}, core.ErrValidation},
		{"relative url", core.AutomationInput{Trigger: core.TriggerCardCreated, WebhookURL: "/hook"}, core.ErrValidation},
		{"ftp url", core.AutomationInput{Trigger: core.TriggerCardCreated, WebhookURL: "ftp://example.com"}, core.ErrValidation},
		{"missing source", core.AutomationInput{Trigger: core.TriggerCardCreatedInList, WebhookURL: "https://example.com"}, core.ErrValidation},
		{"missing target", core.AutomationInput{Trigger: core.TriggerCardMoved, SourceListID: &todo, WebhookURL: "https://example.com"}, core.ErrValidation},
		{"unknown source", core.AutomationInput{Trigger: core.TriggerCardMoved, SourceListID: ptr(core.NewULID()), TargetListID: &done, WebhookURL: "https://example.com"}, core.ErrNotFound},
		{"unknown integration", core.AutomationInput{Trigger: core.TriggerCardCreated, WebhookURL: "https://example.com", IntegrationID: ptr(core.NewULID())}, core.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := ws.SaveAutomation(boardID, nil, tt.in); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestSaveAutomationDropsUnusedLists(t *testing.T) {
	ws, boardID, ids := workspaceWithBoard(t, "Todo", "Done")
	_, a, err := ws.SaveAutomation(boardID, nil, core.AutomationInput{
		Trigger:      core.TriggerCardCreated,
		SourceListID: &ids[0],
		TargetListID: &ids[1],
		WebhookURL:   " https://example.com/hook ",
	})
	if err != nil {
		t.Fatalf("SaveAutomation: %v", err)
	}
	if a.SourceListID != nil || a.TargetListID != nil {
		t.Errorf("lists kept for card_created: %+v", a)
	}
	if !a.Active || a.WebhookURL != "https://example.com/hook" {
		t.Errorf("automation: got %+v", a)
	}
}

func TestAutomationLifecycle(t *testing.T) {
	ws, boardID, ids := workspaceWithBoard(t, "Todo", "Done")
	ws, a, err := ws.SaveAutomation(boardID, nil, core.AutomationInput{
		Trigger:      core.TriggerCardMoved,
		SourceListID: &ids[0],
		TargetListID: &ids[1],
		WebhookURL:   "https://example.com/moved",
	})
	if err != nil {
		t.Fatalf("SaveAutomation: %v", err)
	}

	ws, err = ws.SetAutomationActive(boardID, a.ID, false)
	if err != nil {
		t.Fatalf("SetAutomationActive: %v", err)
	}
	got, ok := mustBoard(t, ws, boardID).Automation(a.ID)
	if !ok || got.Active {
		t.Fatalf("automation after deactivate: %+v", got)
	}

	same, err := ws.SetAutomationActive(boardID, a.ID, false)
	if err != nil || same != ws {
		t.Errorf("repeated deactivate: err=%v same=%v", err, same == ws)
	}

	ws, updated, err := ws.SaveAutomation(boardID, &a.ID, core.AutomationInput{
		Trigger:    core.TriggerCardCreated,
		WebhookURL: "https://example.com/created",
	})
	if err != nil {
		t.Fatalf("SaveAutomation replace: %v", err)
	}
	if updated.ID != a.ID || len(mustBoard(t, ws, boardID).Automations) != 1 {
		t.Errorf("replace created a second automation")
	}

	ws, err = ws.DeleteAutomation(boardID, a.ID)
	if err != nil {
		t.Fatalf("DeleteAutomation: %v", err)
	}
	if len(mustBoard(t, ws, boardID).Automations) != 0 {
		t.Error("automation still present")
	}
	if _, err := ws.DeleteAutomation(boardID, a.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestDeleteListKeepsAutomations(t *testing.T) {
	ws, boardID, ids := workspaceWithBoard(t, "Todo", "Done")
	ws, _, err := ws.SaveAutomation(boardID, nil, core.AutomationInput{
		Trigger:      core.TriggerCardCreatedInList,
		SourceListID: &ids[0],
		WebhookURL:   "https://example.com",
	})
	if err != nil {
		t.Fatalf("SaveAutomation: %v", err)
	}
	ws, err = ws.MutateBoard(boardID, func(b *core.Board) (*core.Board, error) {
		return core.DeleteList(b, ids[0])
	})
	if err != nil {
		t.Fatalf("DeleteList: %v", err)
	}
	if n := len(mustBoard(t, ws, boardID).Automations); n != 1 {
		t.Errorf("automations after list delete: got %d, want 1", n)
	}
}

func TestDeleteIntegrationClearsReferences(t *testing.T) {
	ws, boardID, _ := workspaceWithBoard(t, "Todo")
	ws, h, err := ws.CreateIntegration(core.IntegrationInput{Name: "CRM", URL: "https://crm.example.com/hook"})
	if err != nil {
		t.Fatalf("CreateIntegration: %v", err)
	}
	ws, a, err := ws.SaveAutomation(boardID, nil, core.AutomationInput{
		Trigger:       core.TriggerCardCreated,
		WebhookURL:    "https://example.com",
		IntegrationID: &h.ID,
	})
	if err != nil {
		t.Fatalf("SaveAutomation: %v", err)
	}

	nw, err := ws.DeleteIntegration(h.ID)
	if err != nil {
		t.Fatalf("DeleteIntegration: %v", err)
	}
	got, _ := mustBoard(t, nw, boardID).Automation(a.ID)
	if got.IntegrationID != nil {
		t.Errorf("integrationId: got %v, want nil", got.IntegrationID)
	}
	if _, ok := nw.Integration(h.ID); ok {
		t.Error("integration still present")
	}
	old, _ := mustBoard(t, ws, boardID).Automation(a.ID)
	if old.IntegrationID == nil {
		t.Error("input workspace automation was modified")
	}
}
