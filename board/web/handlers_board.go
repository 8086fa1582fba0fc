// ABOUTME: Handlers for boards and lists, including the completed-list setting and board export.
package web

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/2389-research/funnel/board/core"
	"github.com/2389-research/funnel/board/export"
	"github.com/2389-research/funnel/board/server"
)

// BoardSummary is the list view of a board.
type BoardSummary struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Visibility core.Visibility `json:"visibility"`
	Lists      int             `json:"lists"`
	Cards      int             `json:"cards"`
	TotalValue float64         `json:"totalValue"`
}

// ListBoards summarizes the boards of a workspace.
func ListBoards(state *server.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handle, ok := workspaceHandle(w, r, state)
		if !ok {
			return
		}
		out := []BoardSummary{}
		for _, b := range handle.Snapshot().Boards {
			out = append(out, BoardSummary{
				ID:         b.ID.String(),
				Name:       b.Name,
				Visibility: b.Visibility,
				Lists:      len(b.Lists),
				Cards:      b.CardCount(),
				TotalValue: b.TotalValue(),
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// CreateBoard adds a board from {"name", "visibility"}.
func CreateBoard(state *server.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handle, ok := workspaceHandle(w, r, state)
		if !ok {
			return
		}
		var cmd core.CreateBoardCommand
		if !decodeBody(w, r, &cmd) {
			return
		}
		execute(w, r, state, handle, cmd, http.StatusCreated)
	}
}

// GetBoard returns one board.
func GetBoard(state *server.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, b, ok := boardOf(w, r, state)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, b)
	}
}

// UpdateBoard applies a BoardPatch.
func UpdateBoard(state *server.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handle, b, ok := boardOf(w, r, state)
		if !ok {
			return
		}
		var patch core.BoardPatch
		if !decodeBody(w, r, &patch) {
			return
		}
		execute(w, r, state, handle, core.UpdateBoardCommand{BoardID: b.ID, Patch: patch}, http.StatusOK)
	}
}

// DeleteBoard removes a board.
func DeleteBoard(state *server.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handle, b, ok := boardOf(w, r, state)
		if !ok {
			return
		}
		execute(w, r, state, handle, core.DeleteBoardCommand{BoardID: b.ID}, http.StatusOK)
	}
}

// SetCompletedList marks a list as the board's completed list from
// {"listId": "..."}; a null listId clears it.
func SetCompletedList(state *server.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handle, b, ok := boardOf(w, r, state)
		if !ok {
			return
		}
		var req struct {
			ListID *ulid.ULID `json:"listId"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		patch := core.BoardPatch{CompletedListID: core.Null[ulid.ULID]()}
		if req.ListID != nil {
			patch.CompletedListID = core.Present(*req.ListID)
		}
		execute(w, r, state, handle, core.UpdateBoardCommand{BoardID: b.ID, Patch: patch}, http.StatusOK)
	}
}

// ExportBoard renders the board as YAML (?format=yaml) or Markdown (the
// default). With ?save=true the export is also written under the
// workspace's exports directory.
func ExportBoard(state *server.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handle, b, ok := boardOf(w, r, state)
		if !ok {
			return
		}
		ws := handle.Snapshot()

		format := strings.ToLower(r.URL.Query().Get("format"))
		var (
			body, ext, contentType string
		)
		switch format {
		case "yaml", "yml":
			out, err := export.ExportYAML(ws, b)
			if err != nil {
				writeError(w, err)
				return
			}
			body, ext, contentType = out, "yaml", "application/yaml"
		case "", "md", "markdown":
			body, ext, contentType = export.ExportMarkdown(ws, b), "md", "text/markdown; charset=utf-8"
		default:
			badRequest(w, fmt.Sprintf("unknown export format %q", format))
			return
		}

		if r.URL.Query().Get("save") == "true" && state.Manager != nil {
			name := fmt.Sprintf("%s.%s", b.ID, ext)
			if _, err := state.Manager.WriteExport(ws.ID, name, []byte(body)); err != nil {
				writeError(w, err)
				return
			}
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="%s.%s"`, b.ID, ext))
		_, _ = w.Write([]byte(body))
	}
}

// CreateList appends a list from {"title", "color"}.
func CreateList(state *server.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handle, b, ok := boardOf(w, r, state)
		if !ok {
			return
		}
		var req struct {
			Title string `json:"title"`
			Color string `json:"color"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		execute(w, r, state, handle, core.CreateListCommand{BoardID: b.ID, Title: req.Title, Color: req.Color}, http.StatusCreated)
	}
}

// UpdateList applies a ListPatch.
func UpdateList(state *server.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handle, b, ok := boardOf(w, r, state)
		if !ok {
			return
		}
		listID, ok := urlID(w, r, "list")
		if !ok {
			return
		}
		var patch core.ListPatch
		if !decodeBody(w, r, &patch) {
			return
		}
		execute(w, r, state, handle, core.UpdateListCommand{BoardID: b.ID, ListID: listID, Patch: patch}, http.StatusOK)
	}
}

// DeleteList removes a list and its cards.
func DeleteList(state *server.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handle, b, ok := boardOf(w, r, state)
		if !ok {
			return
		}
		listID, ok := urlID(w, r, "list")
		if !ok {
			return
		}
		execute(w, r, state, handle, core.DeleteListCommand{BoardID: b.ID, ListID: listID}, http.StatusOK)
	}
}

type reorderRequest struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// ReorderLists moves the list at "from" to position "to".
func ReorderLists(state *server.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handle, b, ok := boardOf(w, r, state)
		if !ok {
			return
		}
		var req reorderRequest
		if !decodeBody(w, r, &req) {
			return
		}
		execute(w, r, state, handle, core.ReorderListsCommand{BoardID: b.ID, From: req.From, To: req.To}, http.StatusOK)
	}
}
