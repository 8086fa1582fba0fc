// ABOUTME: Handlers for board automations, workspace HTTP integrations, webhook deliveries, and the event log.
// ABOUTME: Ping sends a live request through the dispatcher so users can test an integration before wiring it.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/2389-research/funnel/board/automation"
	"github.com/2389-research/funnel/board/core"
	"github.com/2389-research/funnel/board/server"
	"github.com/2389-research/funnel/board/store"
)

const pingTimeout = 10 * time.Second

// ListAutomations returns a board's automations.
func ListAutomations(state *server.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, b, ok := boardOf(w, r, state)
		if !ok {
			return
		}
		autos := b.Automations
		if autos == nil {
			autos = []core.Automation{}
		}
		writeJSON(w, http.StatusOK, autos)
	}
}

// SaveAutomation creates an automation (POST) or replaces {automation} (PUT)
// from an AutomationInput body.
func SaveAutomation(state *server.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handle, b, ok := boardOf(w, r, state)
		if !ok {
			return
		}
		cmd := core.SaveAutomationCommand{BoardID: b.ID}
		status := http.StatusCreated
		if r.Method == http.MethodPut {
			id, ok := urlID(w, r, "automation")
			if !ok {
				return
			}
			cmd.AutomationID = &id
			status = http.StatusOK
		}
		if !decodeBody(w, r, &cmd.Automation) {
			return
		}
		execute(w, r, state, handle, cmd, status)
	}
}

// SetAutomationActive toggles an automation from {"active": bool}.
func SetAutomationActive(state *server.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handle, b, ok := boardOf(w, r, state)
		if !ok {
			return
		}
		id, ok := urlID(w, r, "automation")
		if !ok {
			return
		}
		var req struct {
			Active bool `json:"active"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		execute(w, r, state, handle, core.SetAutomationActiveCommand{BoardID: b.ID, AutomationID: id, Active: req.Active}, http.StatusOK)
	}
}

// DeleteAutomation removes an automation.
func DeleteAutomation(state *server.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handle, b, ok := boardOf(w, r, state)
		if !ok {
			return
		}
		id, ok := urlID(w, r, "automation")
		if !ok {
			return
		}
		execute(w, r, state, handle, core.DeleteAutomationCommand{BoardID: b.ID, AutomationID: id}, http.StatusOK)
	}
}

// ListIntegrations returns the workspace's HTTP integrations.
func ListIntegrations(state *server.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handle, ok := workspaceHandle(w, r, state)
		if !ok {
			return
		}
		out := handle.Snapshot().Integrations
		if out == nil {
			out = []core.HttpIntegration{}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// CreateIntegration parses an IntegrationInput body, whose query and
// headers are JSON object texts, and stores the integration.
func CreateIntegration(state *server.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handle, ok := workspaceHandle(w, r, state)
		if !ok {
			return
		}
		var in core.IntegrationInput
		if !decodeBody(w, r, &in) {
			return
		}
		execute(w, r, state, handle, core.CreateIntegrationCommand{Integration: in}, http.StatusCreated)
	}
}

// DeleteIntegration removes an integration.
func DeleteIntegration(state *server.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handle, ok := workspaceHandle(w, r, state)
		if !ok {
			return
		}
		id, ok := urlID(w, r, "integration")
		if !ok {
			return
		}
		execute(w, r, state, handle, core.DeleteIntegrationCommand{IntegrationID: id}, http.StatusOK)
	}
}

// PingIntegration sends a test request to the integration's URL and reports
// the status it answered with.
func PingIntegration(state *server.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handle, ok := workspaceHandle(w, r, state)
		if !ok {
			return
		}
		id, ok := urlID(w, r, "integration")
		if !ok {
			return
		}
		h, found := handle.Snapshot().Integration(id)
		if !found {
			writeError(w, &core.NotFoundError{Kind: "integration", ID: id.String()})
			return
		}
		if state.Dispatcher == nil {
			writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "webhook dispatch is disabled", Kind: "unavailable"})
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
		defer cancel()
		status, err := state.Dispatcher.Ping(ctx, h)
		if err != nil {
			code, kind := errorStatus(err)
			writeJSON(w, code, map[string]any{"error": err.Error(), "kind": kind, "status": status})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": status})
	}
}

// Deliveries lists the workspace's recent webhook attempts, newest first.
func Deliveries(state *server.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handle, ok := workspaceHandle(w, r, state)
		if !ok {
			return
		}
		if state.Deliveries == nil {
			writeJSON(w, http.StatusOK, []automation.Delivery{})
			return
		}
		out, err := state.Deliveries.List(r.Context(), handle.WorkspaceID.String(), queryLimit(r, 50, 500))
		if err != nil {
			writeError(w, err)
			return
		}
		if out == nil {
			out = []automation.Delivery{}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// Events returns the tail of the workspace's committed event log.
func Events(state *server.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handle, ok := workspaceHandle(w, r, state)
		if !ok {
			return
		}
		out := []core.Event{}
		if state.Manager != nil {
			events, err := store.TailJsonl(state.Manager.EventLogPath(handle.WorkspaceID), queryLimit(r, 100, 1000))
			if err != nil {
				writeError(w, err)
				return
			}
			out = append(out, events...)
		}
		writeJSON(w, http.StatusOK, out)
	}
}
