// ABOUTME: Handlers for workspaces, health, the raw command endpoint, and the websocket stream.
// ABOUTME: Raw commands use the same tagged JSON format as the actor's Command union.
package web

import (
	"io"
	"net/http"

	"github.com/2389-research/funnel/board/core"
	"github.com/2389-research/funnel/board/server"
)

// WorkspaceSummary is the list view of a workspace.
type WorkspaceSummary struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Boards  int    `json:"boards"`
	Version uint64 `json:"version"`
}

// Health reports liveness and the number of loaded workspaces.
func Health(state *server.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":     "ok",
			"workspaces": len(state.ListActorIDs()),
		})
	}
}

// ListWorkspaces returns a summary of every loaded workspace.
func ListWorkspaces(state *server.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out := []WorkspaceSummary{}
		for _, id := range state.ListActorIDs() {
			handle := state.GetActor(id)
			if handle == nil {
				continue
			}
			ws := handle.Snapshot()
			out = append(out, WorkspaceSummary{ID: ws.ID.String(), Name: ws.Name, Boards: len(ws.Boards), Version: ws.Version})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// CreateWorkspace creates an empty workspace from {"name": "..."}.
func CreateWorkspace(state *server.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name string `json:"name"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		handle, err := state.CreateWorkspace(r.Context(), req.Name)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, handle.Snapshot())
	}
}

// GetWorkspace returns the full workspace snapshot.
func GetWorkspace(state *server.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handle, ok := workspaceHandle(w, r, state)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, handle.Snapshot())
	}
}

// Commands accepts any command in its tagged JSON form, for scripted clients.
func Commands(state *server.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handle, ok := workspaceHandle(w, r, state)
		if !ok {
			return
		}
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			badRequest(w, "read body: "+err.Error())
			return
		}
		cmd, err := core.UnmarshalCommand(body)
		if err != nil {
			badRequest(w, err.Error())
			return
		}
		execute(w, r, state, handle, cmd, http.StatusOK)
	}
}

// Stream upgrades to a websocket that receives the workspace snapshot,
// then every event and webhook notification.
func Stream(state *server.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handle, ok := workspaceHandle(w, r, state)
		if !ok {
			return
		}
		if state.Hub == nil {
			writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "live updates are disabled", Kind: "unavailable"})
			return
		}
		state.Hub.ServeWS(w, r, handle.Snapshot())
	}
}
