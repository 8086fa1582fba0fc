// ABOUTME: Background subscribers attached to every workspace actor.
// ABOUTME: One appends committed events to the JSONL audit log, one forwards them to websocket clients.
package server

import (
	"context"

	"github.com/2389-research/funnel/board/core"
	"github.com/2389-research/funnel/board/store"
	"go.uber.org/zap"
)

// PersistEvents appends every event received on ch, a subscription to
// handle, to log until ctx ends or the actor stops. The log is closed on
// return.
func PersistEvents(ctx context.Context, handle *core.WorkspaceActorHandle, ch chan core.Event, log *store.JsonlLog) error {
	defer handle.Unsubscribe(ch)
	defer func() { _ = log.Close() }()
	logger := zap.L().With(zap.String("component", "board.server"), zap.Stringer("workspace", handle.WorkspaceID))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			// Drag hovers move cards only provisionally; they are not audited.
			if isTransient(ev.Payload) {
				continue
			}
			if err := log.Append(ev); err != nil {
				logger.Error("append event failed",
					zap.String("action", "persist_event"),
					zap.Uint64("event", ev.EventID),
					zap.Error(err))
			}
		}
	}
}

func isTransient(p core.EventPayload) bool {
	switch p := p.(type) {
	case core.CardMovedPayload:
		return p.Provisional
	case core.DragStartedPayload:
		return true
	}
	return false
}

// ForwardEvents publishes each event, with the board it touched, to the
// workspace's websocket room.
func ForwardEvents(ctx context.Context, handle *core.WorkspaceActorHandle, ch chan core.Event, hub *Hub) error {
	defer handle.Unsubscribe(ch)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			frame := EventFrame{Event: ev}
			if ev.BoardID != nil {
				ws := ev.State
				if ws == nil {
					ws = handle.Snapshot()
				}
				if b, ok := ws.Board(*ev.BoardID); ok {
					frame.Board = b
				}
			}
			hub.Publish(ev.WorkspaceID, Message{Type: "event", Data: frame})
		}
	}
}
