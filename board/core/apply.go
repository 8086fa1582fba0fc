// ABOUTME: Execute turns one command into a new workspace snapshot plus the events describing the change.
// ABOUTME: Drag commands go through ExecuteDrag because they also advance a per-board drag session.
package core

import (
	"fmt"

	"github.com/oklog/ulid/v2"
)

// Outcome is the result of executing a command. Workspace is the input
// workspace itself when nothing changed.
type Outcome struct {
	Workspace *Workspace
	BoardID   *ulid.ULID
	Events    []EventPayload
}

func unchanged(ws *Workspace, boardID *ulid.ULID) Outcome {
	return Outcome{Workspace: ws, BoardID: boardID}
}

func changed(old, nw *Workspace, boardID *ulid.ULID, events ...EventPayload) Outcome {
	if nw == old {
		return unchanged(old, boardID)
	}
	nw.Version = old.Version + 1
	return Outcome{Workspace: nw, BoardID: boardID, Events: events}
}

// Execute applies a non-drag command. On error the returned outcome is
// unchanged and ws is untouched.
func Execute(ws *Workspace, cmd Command) (Outcome, error) {
	switch c := cmd.(type) {
	case CreateBoardCommand:
		nw, b, err := ws.CreateBoard(c.Name, c.Visibility)
		if err != nil {
			return unchanged(ws, nil), err
		}
		return changed(ws, nw, &b.ID, BoardCreatedPayload{BoardID: b.ID, Name: b.Name, Visibility: b.Visibility}), nil

	case UpdateBoardCommand:
		nw, err := ws.UpdateBoard(c.BoardID, c.Patch)
		return result(ws, nw, &c.BoardID, err, BoardUpdatedPayload{BoardID: c.BoardID, Patch: c.Patch})

	case DeleteBoardCommand:
		nw, err := ws.DeleteBoard(c.BoardID)
		return result(ws, nw, &c.BoardID, err, BoardDeletedPayload{BoardID: c.BoardID})

	case CreateListCommand:
		var listID ulid.ULID
		nw, err := ws.MutateBoard(c.BoardID, func(b *Board) (*Board, error) {
			nb, id, err := CreateList(b, c.Title, c.Color)
			listID = id
			return nb, err
		})
		if err != nil {
			return unchanged(ws, &c.BoardID), err
		}
		b, _ := nw.Board(c.BoardID)
		l, _ := b.List(listID)
		return changed(ws, nw, &c.BoardID, ListCreatedPayload{ListID: listID, Title: l.Title, Color: l.Color}), nil

	case UpdateListCommand:
		nw, err := ws.MutateBoard(c.BoardID, func(b *Board) (*Board, error) {
			return UpdateList(b, c.ListID, c.Patch)
		})
		return result(ws, nw, &c.BoardID, err, ListUpdatedPayload{ListID: c.ListID, Patch: c.Patch})

	case DeleteListCommand:
		var cards int
		nw, err := ws.MutateBoard(c.BoardID, func(b *Board) (*Board, error) {
			if l, ok := b.List(c.ListID); ok {
				cards = len(l.Cards)
			}
			return DeleteList(b, c.ListID)
		})
		return result(ws, nw, &c.BoardID, err, ListDeletedPayload{ListID: c.ListID, Cards: cards})

	case ReorderListsCommand:
		nw, err := ws.MutateBoard(c.BoardID, func(b *Board) (*Board, error) {
			return ReorderLists(b, c.From, c.To)
		})
		return result(ws, nw, &c.BoardID, err, ListsReorderedPayload{From: c.From, To: c.To})

	case CreateCardCommand:
		if err := ws.CheckTagIDs(c.Card.TagIDs); err != nil {
			return unchanged(ws, &c.BoardID), err
		}
		var cardID ulid.ULID
		nw, err := ws.MutateBoard(c.BoardID, func(b *Board) (*Board, error) {
			nb, id, err := CreateCard(b, c.ListID, c.Card)
			cardID = id
			return nb, err
		})
		if err != nil {
			return unchanged(ws, &c.BoardID), err
		}
		b, _ := nw.Board(c.BoardID)
		card, _, _, _ := b.FindCard(cardID)
		return changed(ws, nw, &c.BoardID, CardCreatedPayload{Card: card}), nil

	case EditCardCommand:
		if c.Patch.TagIDs != nil {
			if err := ws.CheckTagIDs(*c.Patch.TagIDs); err != nil {
				return unchanged(ws, &c.BoardID), err
			}
		}
		var listID ulid.ULID
		nw, err := ws.MutateBoard(c.BoardID, func(b *Board) (*Board, error) {
			if _, li, _, ok := b.FindCard(c.CardID); ok {
				listID = b.Lists[li].ID
			}
			return EditCard(b, c.CardID, c.Patch)
		})
		return result(ws, nw, &c.BoardID, err, CardEditedPayload{CardID: c.CardID, ListID: listID, Patch: c.Patch})

	case DeleteCardCommand:
		nw, err := ws.MutateBoard(c.BoardID, func(b *Board) (*Board, error) {
			return DeleteCard(b, c.ListID, c.CardID)
		})
		return result(ws, nw, &c.BoardID, err, CardDeletedPayload{CardID: c.CardID, ListID: c.ListID})

	case MoveCardCommand:
		return executeMove(ws, c)

	case ReorderCardsCommand:
		var cardID ulid.ULID
		nw, err := ws.MutateBoard(c.BoardID, func(b *Board) (*Board, error) {
			if l, ok := b.List(c.ListID); ok && c.From >= 0 && c.From < len(l.Cards) {
				cardID = l.Cards[c.From].ID
			}
			return ReorderCardsWithinList(b, c.ListID, c.From, c.To)
		})
		return result(ws, nw, &c.BoardID, err, CardsReorderedPayload{ListID: c.ListID, CardID: cardID, From: c.From, To: c.To})

	case CreateTagCommand:
		nw, t, err := ws.CreateTag(c.Name, c.Color)
		if err != nil {
			return unchanged(ws, nil), err
		}
		return changed(ws, nw, nil, TagSavedPayload{Tag: t}), nil

	case UpdateTagCommand:
		nw, err := ws.UpdateTag(c.TagID, c.Patch)
		if err != nil {
			return unchanged(ws, nil), err
		}
		t, _ := nw.Tag(c.TagID)
		return changed(ws, nw, nil, TagSavedPayload{Tag: t}), nil

	case DeleteTagCommand:
		nw, err := ws.DeleteTag(c.TagID)
		return result(ws, nw, nil, err, TagDeletedPayload{TagID: c.TagID})

	case SaveAutomationCommand:
		nw, a, err := ws.SaveAutomation(c.BoardID, c.AutomationID, c.Automation)
		if err != nil {
			return unchanged(ws, &c.BoardID), err
		}
		return changed(ws, nw, &c.BoardID, AutomationSavedPayload{Automation: a}), nil

	case SetAutomationActiveCommand:
		nw, err := ws.SetAutomationActive(c.BoardID, c.AutomationID, c.Active)
		if err != nil {
			return unchanged(ws, &c.BoardID), err
		}
		b, _ := nw.Board(c.BoardID)
		a, _ := b.Automation(c.AutomationID)
		return changed(ws, nw, &c.BoardID, AutomationSavedPayload{Automation: a}), nil

	case DeleteAutomationCommand:
		nw, err := ws.DeleteAutomation(c.BoardID, c.AutomationID)
		return result(ws, nw, &c.BoardID, err, AutomationDeletedPayload{AutomationID: c.AutomationID})

	case CreateIntegrationCommand:
		nw, h, err := ws.CreateIntegration(c.Integration)
		if err != nil {
			return unchanged(ws, nil), err
		}
		return changed(ws, nw, nil, IntegrationCreatedPayload{Integration: h}), nil

	case DeleteIntegrationCommand:
		nw, err := ws.DeleteIntegration(c.IntegrationID)
		return result(ws, nw, nil, err, IntegrationDeletedPayload{IntegrationID: c.IntegrationID})

	case DragStartCommand, DragOverCommand, DragEndCommand:
		return unchanged(ws, nil), fmt.Errorf("%w: %s requires a drag session", ErrUnknownCommand, cmd.CommandType())
	}
	if cmd == nil {
		return unchanged(ws, nil), fmt.Errorf("%w: nil", ErrUnknownCommand)
	}
	return unchanged(ws, nil), fmt.Errorf("%w: %s", ErrUnknownCommand, cmd.CommandType())
}

func result(old, nw *Workspace, boardID *ulid.ULID, err error, ev EventPayload) (Outcome, error) {
	if err != nil {
		return unchanged(old, boardID), err
	}
	return changed(old, nw, boardID, ev), nil
}

func executeMove(ws *Workspace, c MoveCardCommand) (Outcome, error) {
	var from, to int
	nw, err := ws.MutateBoard(c.BoardID, func(b *Board) (*Board, error) {
		_, _, ci, _ := b.FindCard(c.CardID)
		from = ci
		nb, err := MoveCard(b, c.CardID, c.FromListID, c.ToListID, c.Index)
		if err == nil {
			to = cardIndex(nb, c.ToListID, c.CardID)
		}
		return nb, err
	})
	if err != nil {
		return unchanged(ws, &c.BoardID), err
	}
	if c.FromListID == c.ToListID {
		return changed(ws, nw, &c.BoardID, CardsReorderedPayload{ListID: c.ToListID, CardID: c.CardID, From: from, To: to}), nil
	}
	return changed(ws, nw, &c.BoardID, CardMovedPayload{
		CardID:     c.CardID,
		FromListID: c.FromListID,
		ToListID:   c.ToListID,
		Index:      to,
	}), nil
}

// ExecuteDrag advances the board's drag session by one pointer event.
// Provisional moves produce provisional CardMoved events; a commit produces
// one committed CardMoved spanning origin to final list, or CardsReordered
// when the card stayed in its origin list.
func ExecuteDrag(ws *Workspace, s DragSession, cmd Command) (Outcome, DragSession, error) {
	var boardID ulid.ULID
	var ev DragEvent
	switch c := cmd.(type) {
	case DragStartCommand:
		boardID, ev = c.BoardID, DragEvent{Kind: DragStartEvent, CardID: c.CardID}
	case DragOverCommand:
		target := c.Target
		boardID, ev = c.BoardID, DragEvent{Kind: DragOverEvent, Target: &target}
	case DragEndCommand:
		boardID, ev = c.BoardID, DragEvent{Kind: DragEndEvent, Target: c.Target}
	default:
		return unchanged(ws, nil), s, fmt.Errorf("%w: %T is not a drag command", ErrUnknownCommand, cmd)
	}

	b, ok := ws.Board(boardID)
	if !ok {
		return unchanged(ws, &boardID), DragSession{}, notFound("board", boardID)
	}
	wasActive := s.Active()
	next, nb, out, err := Drag(s, b, ev)
	if err != nil {
		return unchanged(ws, &boardID), next, err
	}

	if ev.Kind == DragStartEvent && !wasActive {
		// Starting a drag does not change the board; the event lets other
		// viewers show the card as held.
		return Outcome{
			Workspace: ws,
			BoardID:   &boardID,
			Events:    []EventPayload{DragStartedPayload{CardID: out.CardID, ListID: next.OriginListID}},
		}, next, nil
	}
	if !out.Changed() {
		return unchanged(ws, &boardID), next, nil
	}

	var payload EventPayload
	switch out.Result {
	case DragProvisional:
		payload = CardMovedPayload{CardID: out.CardID, FromListID: out.From, ToListID: out.To, Index: out.ToIndex, Provisional: true}
	case DragReverted:
		payload = DragRevertedPayload{CardID: out.CardID, FromListID: out.From, ToListID: out.To}
	case DragCommitted:
		if out.Moved() {
			payload = CardMovedPayload{CardID: out.CardID, FromListID: out.From, ToListID: out.To, Index: out.ToIndex}
		} else {
			payload = CardsReorderedPayload{ListID: out.To, CardID: out.CardID, From: out.FromIndex, To: out.ToIndex}
		}
	}
	if nb == b {
		// A commit that only confirms provisional moves leaves the board as
		// it is but still needs its committed event.
		return Outcome{Workspace: ws, BoardID: &boardID, Events: []EventPayload{payload}}, next, nil
	}
	nw, err := ws.WithBoard(nb)
	if err != nil {
		return unchanged(ws, &boardID), DragSession{}, err
	}
	return changed(ws, nw, &boardID, payload), next, nil
}
