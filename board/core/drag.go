// ABOUTME: Drag-interaction controller: a plain state value plus a transition function over board snapshots.
// ABOUTME: Cross-list hovers move the card provisionally; same-list reorders wait for drag-end.
package core

import (
	"slices"

	"github.com/oklog/ulid/v2"
)

// DragState is the controller's state.
type DragState string

const (
	DragIdle       DragState = "idle"
	DragDragging   DragState = "dragging"
	DragCommitting DragState = "committing"
)

// DragSession is the controller state between drag events. The zero value
// is an idle session.
type DragSession struct {
	State DragState `json:"state"`
	// CardID is the card being dragged.
	CardID ulid.ULID `json:"cardId"`
	// OriginListID and OriginIndex record where the card sat at drag start.
	OriginListID ulid.ULID `json:"originListId"`
	OriginIndex  int       `json:"originIndex"`
	// SourceListID is the list currently holding the card, which changes as
	// provisional moves are applied.
	SourceListID ulid.ULID `json:"sourceListId"`
	// HopCardID is the card a provisional hop inserted the dragged card
	// in front of. Dropping onto it keeps that position.
	HopCardID *ulid.ULID `json:"hopCardId,omitempty"`
}

// Active reports whether a drag is in progress.
func (s DragSession) Active() bool {
	return s.State == DragDragging || s.State == DragCommitting
}

// DragTarget is a drop zone: a card (resolved to its owning list) or empty
// space in a list. CardID takes precedence when both are set.
type DragTarget struct {
	ListID *ulid.ULID `json:"listId,omitempty"`
	CardID *ulid.ULID `json:"cardId,omitempty"`
}

// DragEventKind distinguishes the three pointer events.
type DragEventKind string

const (
	DragStartEvent DragEventKind = "start"
	DragOverEvent  DragEventKind = "over"
	DragEndEvent   DragEventKind = "end"
)

// DragEvent is one pointer event. CardID is read on start; Target on over
// and end. A nil Target on end means the pointer was released outside any
// drop zone.
type DragEvent struct {
	Kind   DragEventKind `json:"kind"`
	CardID ulid.ULID     `json:"cardId"`
	Target *DragTarget   `json:"target,omitempty"`
}

// DragResult classifies what a transition did to the board.
type DragResult string

const (
	DragNone        DragResult = "none"
	DragProvisional DragResult = "provisional"
	DragCommitted   DragResult = "committed"
	DragReverted    DragResult = "reverted"
)

// DragOutcome describes a transition. For provisional moves From and To are
// the lists of that hop. For commits they span the whole drag, from the
// origin list to the final list, so a committed cross-list drag reads as a
// single move no matter how many lists it crossed.
type DragOutcome struct {
	Result    DragResult
	CardID    ulid.ULID
	From      ulid.ULID
	To        ulid.ULID
	FromIndex int
	ToIndex   int
}

// Changed reports whether the transition produced a new board.
func (o DragOutcome) Changed() bool {
	return o.Result != DragNone
}

// Moved reports whether a commit left the card in a different list than it
// started in.
func (o DragOutcome) Moved() bool {
	return o.Result == DragCommitted && o.From != o.To
}

// Drag applies one pointer event. It returns the next session, the board to
// display (b itself when nothing changed), and what happened. On error the
// returned session is idle and the board is b.
func Drag(s DragSession, b *Board, ev DragEvent) (DragSession, *Board, DragOutcome, error) {
	none := DragOutcome{Result: DragNone, CardID: s.CardID}
	switch ev.Kind {
	case DragStartEvent:
		if s.Active() {
			// A second pointer cannot start a drag while one is held.
			return s, b, none, nil
		}
		_, li, ci, ok := b.FindCard(ev.CardID)
		if !ok {
			return DragSession{}, b, none, notFound("card", ev.CardID)
		}
		listID := b.Lists[li].ID
		return DragSession{
			State:        DragDragging,
			CardID:       ev.CardID,
			OriginListID: listID,
			OriginIndex:  ci,
			SourceListID: listID,
		}, b, DragOutcome{Result: DragNone, CardID: ev.CardID}, nil

	case DragOverEvent:
		if s.State != DragDragging {
			return s, b, none, ErrNoDragSession
		}
		return dragOver(s, b, ev.Target)

	case DragEndEvent:
		if s.State != DragDragging {
			return DragSession{}, b, none, ErrNoDragSession
		}
		s.State = DragCommitting
		return dragEnd(s, b, ev.Target)
	}
	return s, b, none, &ValidationError{Field: "kind", Reason: "unknown drag event " + string(ev.Kind)}
}

func dragOver(s DragSession, b *Board, t *DragTarget) (DragSession, *Board, DragOutcome, error) {
	none := DragOutcome{Result: DragNone, CardID: s.CardID}
	listID, index, ok := resolveTarget(b, t, s.CardID)
	if !ok || listID == s.SourceListID {
		return s, b, none, nil
	}
	_, _, from, found := b.FindCard(s.CardID)
	if !found {
		return DragSession{}, b, none, notFound("card", s.CardID)
	}
	nb, err := MoveCard(b, s.CardID, s.SourceListID, listID, index)
	if err != nil {
		return DragSession{}, b, none, err
	}
	out := DragOutcome{
		Result:    DragProvisional,
		CardID:    s.CardID,
		From:      s.SourceListID,
		To:        listID,
		FromIndex: from,
		ToIndex:   cardIndex(nb, listID, s.CardID),
	}
	s.SourceListID = listID
	s.HopCardID = nil
	if t.CardID != nil && index != nil {
		hop := *t.CardID
		s.HopCardID = &hop
	}
	return s, nb, out, nil
}

func dragEnd(s DragSession, b *Board, t *DragTarget) (DragSession, *Board, DragOutcome, error) {
	listID, index, ok := resolveTarget(b, t, s.CardID)
	if !ok {
		nb, out, err := revertDrag(s, b)
		return DragSession{}, nb, out, err
	}
	_, _, from, found := b.FindCard(s.CardID)
	if !found {
		return DragSession{}, b, DragOutcome{Result: DragNone, CardID: s.CardID}, notFound("card", s.CardID)
	}

	nb := b
	var err error
	switch {
	case listID != s.SourceListID:
		nb, err = MoveCard(b, s.CardID, s.SourceListID, listID, index)
	case index != nil && *index != from && !droppedOnHop(s, t):
		nb, err = ReorderCardsWithinList(b, listID, from, *index)
	}
	if err != nil {
		return DragSession{}, b, DragOutcome{Result: DragNone, CardID: s.CardID}, err
	}
	if nb == b && s.OriginListID == listID && s.OriginIndex == from {
		return DragSession{}, b, DragOutcome{Result: DragNone, CardID: s.CardID}, nil
	}
	return DragSession{}, nb, DragOutcome{
		Result:    DragCommitted,
		CardID:    s.CardID,
		From:      s.OriginListID,
		To:        listID,
		FromIndex: s.OriginIndex,
		ToIndex:   cardIndex(nb, listID, s.CardID),
	}, nil
}

// droppedOnHop reports whether the drop lands on the card the last
// provisional hop placed the dragged card in front of.
func droppedOnHop(s DragSession, t *DragTarget) bool {
	return s.HopCardID != nil && t != nil && t.CardID != nil && *t.CardID == *s.HopCardID
}

// revertDrag puts the card back where the drag started, undoing any
// provisional moves. If the origin list is gone the board is left as is.
func revertDrag(s DragSession, b *Board) (*Board, DragOutcome, error) {
	none := DragOutcome{Result: DragNone, CardID: s.CardID}
	if s.SourceListID == s.OriginListID {
		return b, none, nil
	}
	oi := b.ListIndex(s.OriginListID)
	if oi < 0 {
		return b, none, nil
	}
	if _, _, _, ok := b.FindCard(s.CardID); !ok {
		return b, none, nil
	}
	index := min(s.OriginIndex, len(b.Lists[oi].Cards))
	nb, err := MoveCard(b, s.CardID, s.SourceListID, s.OriginListID, &index)
	if err != nil {
		return b, none, err
	}
	return nb, DragOutcome{
		Result:  DragReverted,
		CardID:  s.CardID,
		From:    s.SourceListID,
		To:      s.OriginListID,
		ToIndex: index,
	}, nil
}

// resolveTarget maps a drop zone to a list and, for card targets, the
// insertion index of that card. Hovering the dragged card itself resolves
// to its own list with no index.
func resolveTarget(b *Board, t *DragTarget, dragged ulid.ULID) (ulid.ULID, *int, bool) {
	if t == nil {
		return ulid.ULID{}, nil, false
	}
	if t.CardID != nil {
		_, li, ci, ok := b.FindCard(*t.CardID)
		if !ok {
			return ulid.ULID{}, nil, false
		}
		if *t.CardID == dragged {
			return b.Lists[li].ID, nil, true
		}
		return b.Lists[li].ID, &ci, true
	}
	if t.ListID != nil && b.ListIndex(*t.ListID) >= 0 {
		return *t.ListID, nil, true
	}
	return ulid.ULID{}, nil, false
}

func cardIndex(b *Board, listID, cardID ulid.ULID) int {
	l, ok := b.List(listID)
	if !ok {
		return -1
	}
	return slices.IndexFunc(l.Cards, func(c Card) bool { return c.ID == cardID })
}
