// ABOUTME: Goroutine-based actor that owns one workspace, processes its commands in order, and broadcasts events.
// ABOUTME: Every change is saved through the injected WorkspaceSaver before subscribers hear about it.
package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// WorkspaceSaver persists a full workspace snapshot. Saves are last-writer-wins.
type WorkspaceSaver interface {
	SaveWorkspace(ctx context.Context, ws *Workspace) error
}

// EventBroadcaster provides a fan-out mechanism for events to multiple subscribers.
// Each subscriber gets a buffered channel. Broadcast is non-blocking (drops if full).
type EventBroadcaster struct {
	mu          sync.RWMutex
	subscribers []chan Event
}

// NewEventBroadcaster creates a broadcaster with no initial subscribers.
func NewEventBroadcaster() *EventBroadcaster {
	return &EventBroadcaster{}
}

// Subscribe creates a new buffered channel for receiving broadcast events.
func (b *EventBroadcaster) Subscribe() chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Event, 4096)
	b.subscribers = append(b.subscribers, ch)
	return ch
}

// Unsubscribe removes a channel from the subscriber list and closes it.
func (b *EventBroadcaster) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.subscribers {
		if sub == ch {
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
			close(ch)
			return
		}
	}
}

// Broadcast sends an event to all subscribers. Non-blocking: drops if a subscriber's buffer is full.
func (b *EventBroadcaster) Broadcast(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

// closeAll closes every subscriber channel.
func (b *EventBroadcaster) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subscribers {
		close(ch)
	}
	b.subscribers = nil
}

type commandMessage struct {
	ctx   context.Context
	cmd   Command
	reply chan commandResult
}

type commandResult struct {
	events []Event
	err    error
}

// WorkspaceActorHandle is the public interface for interacting with a
// workspace actor. It is safe for concurrent use.
type WorkspaceActorHandle struct {
	cmdCh       chan commandMessage
	quit        chan struct{}
	done        chan struct{}
	stopOnce    sync.Once
	broadcaster *EventBroadcaster

	mu    sync.RWMutex // protects state and drags
	state *Workspace
	drags map[ulid.ULID]DragSession

	WorkspaceID ulid.ULID
}

// SendCommand sends a command to the actor and waits for the result. When
// the save after a successful mutation fails, the events are returned along
// with the error; the mutation is kept in memory and not rolled back.
func (h *WorkspaceActorHandle) SendCommand(ctx context.Context, cmd Command) ([]Event, error) {
	reply := make(chan commandResult, 1)
	msg := commandMessage{ctx: ctx, cmd: cmd, reply: reply}

	select {
	case <-h.quit:
		return nil, ErrActorStopped
	default:
	}

	select {
	case h.cmdCh <- msg:
	default:
		return nil, ErrActorBusy
	}

	select {
	case result := <-reply:
		return result.events, result.err
	case <-h.done:
		return nil, ErrActorStopped
	}
}

// Subscribe returns a channel that receives broadcast events.
func (h *WorkspaceActorHandle) Subscribe() chan Event {
	return h.broadcaster.Subscribe()
}

// Unsubscribe removes a channel from the broadcast subscriber list and closes it.
func (h *WorkspaceActorHandle) Unsubscribe(ch chan Event) {
	h.broadcaster.Unsubscribe(ch)
}

// ReadState calls fn with the current workspace snapshot under a read lock.
// Snapshots are never mutated, so fn may keep the pointer.
func (h *WorkspaceActorHandle) ReadState(fn func(ws *Workspace)) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	fn(h.state)
}

// Snapshot returns the current workspace snapshot.
func (h *WorkspaceActorHandle) Snapshot() *Workspace {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// DragSession returns the drag session of a board; idle when none is active.
func (h *WorkspaceActorHandle) DragSession(boardID ulid.ULID) DragSession {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.drags[boardID]
	if !ok {
		return DragSession{State: DragIdle}
	}
	return s
}

// Stop shuts the actor down and closes every subscriber channel. Commands
// already queued are dropped. Stop waits for the actor goroutine to exit.
func (h *WorkspaceActorHandle) Stop() {
	h.stopOnce.Do(func() { close(h.quit) })
	<-h.done
}

// SpawnActor starts a goroutine that owns ws. A nil saver keeps the
// workspace in memory only.
func SpawnActor(ws *Workspace, saver WorkspaceSaver) *WorkspaceActorHandle {
	handle := &WorkspaceActorHandle{
		cmdCh:       make(chan commandMessage, 64),
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
		broadcaster: NewEventBroadcaster(),
		state:       ws,
		drags:       make(map[ulid.ULID]DragSession),
		WorkspaceID: ws.ID,
	}
	a := &workspaceActor{
		handle:      handle,
		saver:       saver,
		nextEventID: 1,
		log:         zap.L().With(zap.String("component", "board.actor"), zap.Stringer("workspace", ws.ID)),
	}
	go a.run()
	return handle
}

type workspaceActor struct {
	handle      *WorkspaceActorHandle
	saver       WorkspaceSaver
	nextEventID uint64
	log         *zap.Logger
}

func (a *workspaceActor) run() {
	defer close(a.handle.done)
	defer a.handle.broadcaster.closeAll()
	for {
		select {
		case <-a.handle.quit:
			return
		case msg := <-a.handle.cmdCh:
			msg.reply <- a.processCommand(msg.ctx, msg.cmd)
		}
	}
}

func (a *workspaceActor) processCommand(ctx context.Context, cmd Command) commandResult {
	a.handle.mu.RLock()
	ws := a.handle.state
	a.handle.mu.RUnlock()

	var (
		out      Outcome
		err      error
		session  DragSession
		dragging bool
	)
	switch c := cmd.(type) {
	case DragStartCommand, DragOverCommand, DragEndCommand:
		dragging = true
		boardID := dragBoard(c)
		a.handle.mu.RLock()
		current := a.handle.drags[boardID]
		a.handle.mu.RUnlock()
		out, session, err = ExecuteDrag(ws, current, cmd)
		a.handle.mu.Lock()
		if session.Active() {
			a.handle.drags[boardID] = session
		} else {
			delete(a.handle.drags, boardID)
		}
		a.handle.mu.Unlock()
	default:
		out, err = Execute(ws, cmd)
	}
	if err != nil {
		return commandResult{err: err}
	}

	if out.Workspace != ws {
		if _, ok := cmd.(DeleteBoardCommand); ok {
			a.handle.mu.Lock()
			delete(a.handle.drags, *out.BoardID)
			a.handle.mu.Unlock()
		}
		a.handle.mu.Lock()
		a.handle.state = out.Workspace
		a.handle.mu.Unlock()
	}

	events := a.envelope(out)

	var saveErr error
	if out.Workspace != ws && a.saver != nil {
		if saveErr = a.saver.SaveWorkspace(ctx, out.Workspace); saveErr != nil {
			a.log.Error("save workspace failed",
				zap.String("action", "save"),
				zap.String("command", cmd.CommandType()),
				zap.Bool("drag", dragging),
				zap.Error(saveErr))
			saveErr = fmt.Errorf("save workspace: %w", saveErr)
		}
	}

	for _, ev := range events {
		a.handle.broadcaster.Broadcast(ev)
	}
	return commandResult{events: events, err: saveErr}
}

func (a *workspaceActor) envelope(out Outcome) []Event {
	now := time.Now().UTC()
	events := make([]Event, len(out.Events))
	for i, p := range out.Events {
		events[i] = Event{
			EventID:     a.nextEventID,
			WorkspaceID: a.handle.WorkspaceID,
			BoardID:     out.BoardID,
			Timestamp:   now,
			Payload:     p,
			State:       out.Workspace,
		}
		a.nextEventID++
	}
	return events
}

func dragBoard(cmd Command) ulid.ULID {
	switch c := cmd.(type) {
	case DragStartCommand:
		return c.BoardID
	case DragOverCommand:
		return c.BoardID
	case DragEndCommand:
		return c.BoardID
	}
	return ulid.ULID{}
}
