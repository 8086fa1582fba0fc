// ABOUTME: Shared application state for the funnel HTTP server.
// ABOUTME: Owns the workspace actors and the background subscribers started for each of them.
package server

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/2389-research/funnel/board/automation"
	"github.com/2389-research/funnel/board/core"
	"github.com/2389-research/funnel/board/store"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Deps are the collaborators every workspace actor is wired to.
type Deps struct {
	Manager    *store.StorageManager
	Repo       *store.Repository
	Dispatcher *automation.Dispatcher
	Deliveries *automation.DeliveryLog
	Hub        *Hub
	// Notifier receives rejected-mutation reports. Optional.
	Notifier automation.Notifier
}

type workspaceRuntime struct {
	handle *core.WorkspaceActorHandle
	cancel context.CancelFunc
	done   chan struct{}
}

// AppState holds the state shared by all HTTP handlers.
type AppState struct {
	Deps

	mu      sync.RWMutex
	ctx     context.Context
	runtime map[ulid.ULID]*workspaceRuntime
	log     *zap.Logger
}

// NewAppState creates an empty AppState. Background goroutines started by
// Attach stop when ctx is cancelled or Shutdown is called.
func NewAppState(ctx context.Context, deps Deps) *AppState {
	return &AppState{
		Deps:    deps,
		ctx:     ctx,
		runtime: make(map[ulid.ULID]*workspaceRuntime),
		log:     zap.L().With(zap.String("component", "board.server")),
	}
}

// NotifyRejected tells the workspace's users that a mutation failed
// validation. Other errors are left to the caller's response.
func (s *AppState) NotifyRejected(ctx context.Context, workspaceID ulid.ULID, err error) {
	if s.Notifier == nil || !errors.Is(err, core.ErrValidation) {
		return
	}
	s.Notifier.Notify(ctx, automation.Notification{
		WorkspaceID: workspaceID,
		Role:        automation.RoleError,
		Message:     err.Error(),
		Time:        time.Now().UTC(),
	})
}

// GetActor returns the actor of a workspace, or nil.
func (s *AppState) GetActor(id ulid.ULID) *core.WorkspaceActorHandle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rt := s.runtime[id]; rt != nil {
		return rt.handle
	}
	return nil
}

// ListActorIDs returns the ids of all loaded workspaces in ULID order.
func (s *AppState) ListActorIDs() []ulid.ULID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]ulid.ULID, 0, len(s.runtime))
	for id := range s.runtime {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b ulid.ULID) int { return a.Compare(b) })
	return ids
}

// Attach spawns an actor for ws and starts its event log writer, automation
// runner, and websocket forwarder. Attaching an already loaded workspace
// returns the existing actor.
func (s *AppState) Attach(ws *core.Workspace) (*core.WorkspaceActorHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rt := s.runtime[ws.ID]; rt != nil {
		return rt.handle, nil
	}

	var saver core.WorkspaceSaver
	if s.Repo != nil {
		saver = s.Repo
	}
	var jsonl *store.JsonlLog
	if s.Manager != nil {
		if _, err := s.Manager.CreateWorkspaceDir(ws.ID); err != nil {
			return nil, err
		}
		log, err := store.OpenJsonl(s.Manager.EventLogPath(ws.ID))
		if err != nil {
			return nil, fmt.Errorf("open event log: %w", err)
		}
		jsonl = log
	}

	handle := core.SpawnActor(ws, saver)
	ctx, cancel := context.WithCancel(s.ctx)
	g, gctx := errgroup.WithContext(ctx)
	// Subscribe before returning so the first command's events are seen.
	if jsonl != nil {
		ch := handle.Subscribe()
		g.Go(func() error { return PersistEvents(gctx, handle, ch, jsonl) })
	}
	if s.Dispatcher != nil {
		ch := handle.Subscribe()
		g.Go(func() error { return automation.NewRunner(handle, s.Dispatcher).Consume(gctx, ch) })
	}
	if s.Hub != nil {
		ch := handle.Subscribe()
		g.Go(func() error { return ForwardEvents(gctx, handle, ch, s.Hub) })
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := g.Wait(); err != nil {
			s.log.Error("workspace subscriber failed", zap.Stringer("workspace", ws.ID), zap.Error(err))
		}
	}()

	s.runtime[ws.ID] = &workspaceRuntime{handle: handle, cancel: cancel, done: done}
	s.log.Info("workspace attached",
		zap.String("action", "attach"),
		zap.Stringer("workspace", ws.ID),
		zap.String("name", ws.Name),
		zap.Int("boards", len(ws.Boards)))
	return handle, nil
}

// CreateWorkspace creates, saves, and attaches a new empty workspace.
func (s *AppState) CreateWorkspace(ctx context.Context, name string) (*core.WorkspaceActorHandle, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &core.ValidationError{Field: "workspace name", Reason: "must not be empty"}
	}
	ws := core.NewWorkspace(core.NewULID(), name)
	if s.Repo != nil {
		if err := s.Repo.SaveWorkspace(ctx, ws); err != nil {
			return nil, err
		}
	}
	return s.Attach(ws)
}

// Recover loads every stored workspace and attaches it.
func (s *AppState) Recover(ctx context.Context, p store.Persister) (int, error) {
	if s.Manager == nil || s.Repo == nil {
		return 0, errors.New("recover: storage is not configured")
	}
	spaces, err := s.Manager.RecoverAll(ctx, s.Repo, p)
	if err != nil {
		return 0, err
	}
	for _, ws := range spaces {
		if _, err := s.Attach(ws); err != nil {
			return 0, err
		}
	}
	return len(spaces), nil
}

// Detach stops a workspace's actor and waits for its subscribers to drain
// the events already broadcast.
func (s *AppState) Detach(id ulid.ULID) bool {
	s.mu.Lock()
	rt := s.runtime[id]
	delete(s.runtime, id)
	s.mu.Unlock()
	if rt == nil {
		return false
	}
	rt.handle.Stop()
	<-rt.done
	rt.cancel()
	return true
}

// Shutdown detaches every workspace.
func (s *AppState) Shutdown() {
	for _, id := range s.ListActorIDs() {
		s.Detach(id)
	}
}
