// ABOUTME: JSON response helpers shared by the API handlers.
// ABOUTME: Maps the board error taxonomy onto HTTP status codes.
package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/2389-research/funnel/board/core"
	"github.com/2389-research/funnel/board/server"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error  string       `json:"error"`
	Kind   string       `json:"kind"`
	Events []core.Event `json:"events,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("encode response failed", zap.String("component", "board.web"), zap.Error(err))
	}
}

// errorStatus returns the HTTP status and a short kind label for err.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrValidation), errors.Is(err, core.ErrUnknownCommand):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, core.ErrIndex):
		return http.StatusUnprocessableEntity, "index"
	case errors.Is(err, core.ErrNoDragSession):
		return http.StatusConflict, "drag"
	case errors.Is(err, core.ErrActorBusy), errors.Is(err, core.ErrActorStopped):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, core.ErrDispatch):
		return http.StatusBadGateway, "dispatch"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, kind := errorStatus(err)
	writeJSON(w, status, errorBody{Error: err.Error(), Kind: kind})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg, Kind: "validation"})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		badRequest(w, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// urlID parses a ULID route parameter, answering 400 when it is malformed.
func urlID(w http.ResponseWriter, r *http.Request, param string) (ulid.ULID, bool) {
	id, err := core.ParseID(param, chi.URLParam(r, param))
	if err != nil {
		writeError(w, err)
		return ulid.ULID{}, false
	}
	return id, true
}

// workspaceHandle resolves the {ws} route parameter to a loaded actor.
func workspaceHandle(w http.ResponseWriter, r *http.Request, state *server.AppState) (*core.WorkspaceActorHandle, bool) {
	id, ok := urlID(w, r, "ws")
	if !ok {
		return nil, false
	}
	handle := state.GetActor(id)
	if handle == nil {
		writeError(w, &core.NotFoundError{Kind: "workspace", ID: id.String()})
		return nil, false
	}
	return handle, true
}

// boardOf resolves {ws} and {board} to an actor and the board's current snapshot.
func boardOf(w http.ResponseWriter, r *http.Request, state *server.AppState) (*core.WorkspaceActorHandle, *core.Board, bool) {
	handle, ok := workspaceHandle(w, r, state)
	if !ok {
		return nil, nil, false
	}
	boardID, ok := urlID(w, r, "board")
	if !ok {
		return nil, nil, false
	}
	b, found := handle.Snapshot().Board(boardID)
	if !found {
		writeError(w, &core.NotFoundError{Kind: "board", ID: boardID.String()})
		return nil, nil, false
	}
	return handle, b, true
}

func queryLimit(r *http.Request, def, max int) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return def
	}
	return min(n, max)
}

// mutationResult is the body returned by every mutating endpoint.
type mutationResult struct {
	Events    []core.Event    `json:"events"`
	Board     *core.Board     `json:"board,omitempty"`
	Workspace *core.Workspace `json:"workspace,omitempty"`
}

// execute sends cmd and answers with the events and the state they produced.
// Board-scoped commands return the board; others return the workspace.
// Rejected input is also reported to the workspace's notifier.
func execute(w http.ResponseWriter, r *http.Request, state *server.AppState, handle *core.WorkspaceActorHandle, cmd core.Command, status int) {
	events, err := handle.SendCommand(r.Context(), cmd)
	if err != nil {
		state.NotifyRejected(r.Context(), handle.WorkspaceID, err)
		code, kind := errorStatus(err)
		writeJSON(w, code, errorBody{Error: err.Error(), Kind: kind, Events: events})
		return
	}
	if events == nil {
		events = []core.Event{}
	}
	res := mutationResult{Events: events}
	ws := handle.Snapshot()
	if len(events) > 0 && events[0].BoardID != nil {
		// Nil after DeleteBoard; the workspace is returned instead.
		res.Board, _ = ws.Board(*events[0].BoardID)
	}
	if res.Board == nil {
		res.Workspace = ws
	}
	writeJSON(w, status, res)
}
