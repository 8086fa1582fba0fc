// ABOUTME: Handlers for cards: create, view, edit, delete, move, reorder, and the drag pointer events.
// ABOUTME: Card views resolve tag ids to tags and render the description as HTML.
package web

import (
	"net/http"

	"github.com/oklog/ulid/v2"

	"github.com/2389-research/funnel/board/core"
	"github.com/2389-research/funnel/board/server"
)

// CardView is a card as shown by the detail endpoint.
type CardView struct {
	core.Card
	Tags            []core.Tag `json:"tags"`
	DescriptionHTML string     `json:"descriptionHtml,omitempty"`
	ListTitle       string     `json:"listTitle"`
}

func findCard(w http.ResponseWriter, r *http.Request, b *core.Board) (core.Card, bool) {
	cardID, ok := urlID(w, r, "card")
	if !ok {
		return core.Card{}, false
	}
	c, _, _, found := b.FindCard(cardID)
	if !found {
		writeError(w, &core.NotFoundError{Kind: "card", ID: cardID.String()})
		return core.Card{}, false
	}
	return c, true
}

// GetCard returns a card with its tags and rendered description.
func GetCard(state *server.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handle, b, ok := boardOf(w, r, state)
		if !ok {
			return
		}
		c, ok := findCard(w, r, b)
		if !ok {
			return
		}
		view := CardView{
			Card:            c,
			Tags:            handle.Snapshot().ResolveTags(c),
			DescriptionHTML: RenderMarkdown(c.Description),
		}
		if l, ok := b.List(c.ListID); ok {
			view.ListTitle = l.Title
		}
		writeJSON(w, http.StatusOK, view)
	}
}

// CreateCard appends a card to {list} from a CardInput body.
func CreateCard(state *server.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handle, b, ok := boardOf(w, r, state)
		if !ok {
			return
		}
		listID, ok := urlID(w, r, "list")
		if !ok {
			return
		}
		var in core.CardInput
		if !decodeBody(w, r, &in) {
			return
		}
		execute(w, r, state, handle, core.CreateCardCommand{BoardID: b.ID, ListID: listID, Card: in}, http.StatusCreated)
	}
}

// EditCard applies a CardPatch.
func EditCard(state *server.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handle, b, ok := boardOf(w, r, state)
		if !ok {
			return
		}
		c, ok := findCard(w, r, b)
		if !ok {
			return
		}
		var patch core.CardPatch
		if !decodeBody(w, r, &patch) {
			return
		}
		execute(w, r, state, handle, core.EditCardCommand{BoardID: b.ID, CardID: c.ID, Patch: patch}, http.StatusOK)
	}
}

// DeleteCard removes a card from whichever list holds it.
func DeleteCard(state *server.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handle, b, ok := boardOf(w, r, state)
		if !ok {
			return
		}
		c, ok := findCard(w, r, b)
		if !ok {
			return
		}
		execute(w, r, state, handle, core.DeleteCardCommand{BoardID: b.ID, ListID: c.ListID, CardID: c.ID}, http.StatusOK)
	}
}

// MoveCard moves a card to {"toListId", "index"}. The source list is the
// one currently holding the card; a missing index appends.
func MoveCard(state *server.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handle, b, ok := boardOf(w, r, state)
		if !ok {
			return
		}
		c, ok := findCard(w, r, b)
		if !ok {
			return
		}
		var req struct {
			ToListID ulid.ULID `json:"toListId"`
			Index    *int      `json:"index"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		execute(w, r, state, handle, core.MoveCardCommand{
			BoardID:    b.ID,
			CardID:     c.ID,
			FromListID: c.ListID,
			ToListID:   req.ToListID,
			Index:      req.Index,
		}, http.StatusOK)
	}
}

// ReorderCards moves the card at "from" to "to" within {list}.
func ReorderCards(state *server.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handle, b, ok := boardOf(w, r, state)
		if !ok {
			return
		}
		listID, ok := urlID(w, r, "list")
		if !ok {
			return
		}
		var req reorderRequest
		if !decodeBody(w, r, &req) {
			return
		}
		execute(w, r, state, handle, core.ReorderCardsCommand{BoardID: b.ID, ListID: listID, From: req.From, To: req.To}, http.StatusOK)
	}
}

// GetDrag returns the board's drag session.
func GetDrag(state *server.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handle, b, ok := boardOf(w, r, state)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, handle.DragSession(b.ID))
	}
}

// DragStart picks up {"cardId"}.
func DragStart(state *server.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handle, b, ok := boardOf(w, r, state)
		if !ok {
			return
		}
		var req struct {
			CardID ulid.ULID `json:"cardId"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		execute(w, r, state, handle, core.DragStartCommand{BoardID: b.ID, CardID: req.CardID}, http.StatusOK)
	}
}

// DragOver reports the drop zone under the pointer, a DragTarget body.
func DragOver(state *server.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handle, b, ok := boardOf(w, r, state)
		if !ok {
			return
		}
		var target core.DragTarget
		if !decodeBody(w, r, &target) {
			return
		}
		execute(w, r, state, handle, core.DragOverCommand{BoardID: b.ID, Target: target}, http.StatusOK)
	}
}

// DragEnd releases the card over {"target": {...}}. A missing or null target
// cancels the drag.
func DragEnd(state *server.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handle, b, ok := boardOf(w, r, state)
		if !ok {
			return
		}
		var req struct {
			Target *core.DragTarget `json:"target"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		execute(w, r, state, handle, core.DragEndCommand{BoardID: b.ID, Target: req.Target}, http.StatusOK)
	}
}
