// ABOUTME: Handlers for workspace tags.
package web

import (
	"net/http"

	"github.com/2389-research/funnel/board/core"
	"github.com/2389-research/funnel/board/server"
)

// ListTags returns the workspace's tags.
func ListTags(state *server.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handle, ok := workspaceHandle(w, r, state)
		if !ok {
			return
		}
		tags := handle.Snapshot().Tags
		if tags == nil {
			tags = []core.Tag{}
		}
		writeJSON(w, http.StatusOK, tags)
	}
}

// CreateTag adds a tag from {"name", "color"}.
func CreateTag(state *server.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handle, ok := workspaceHandle(w, r, state)
		if !ok {
			return
		}
		var cmd core.CreateTagCommand
		if !decodeBody(w, r, &cmd) {
			return
		}
		execute(w, r, state, handle, cmd, http.StatusCreated)
	}
}

// UpdateTag applies a TagPatch.
func UpdateTag(state *server.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handle, ok := workspaceHandle(w, r, state)
		if !ok {
			return
		}
		tagID, ok := urlID(w, r, "tag")
		if !ok {
			return
		}
		var patch core.TagPatch
		if !decodeBody(w, r, &patch) {
			return
		}
		execute(w, r, state, handle, core.UpdateTagCommand{TagID: tagID, Patch: patch}, http.StatusOK)
	}
}

// DeleteTag removes a tag and detaches it from every card.
func DeleteTag(state *server.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handle, ok := workspaceHandle(w, r, state)
		if !ok {
			return
		}
		tagID, ok := urlID(w, r, "tag")
		if !ok {
			return
		}
		execute(w, r, state, handle, core.DeleteTagCommand{TagID: tagID}, http.StatusOK)
	}
}
