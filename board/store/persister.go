// ABOUTME: Persister abstraction over snapshot backends plus the workspace repository built on it.
// ABOUTME: The repository is the actor's write-through saver; backends only move opaque bytes by key.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/2389-research/funnel/board/core"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// Persister stores opaque snapshots by key. Load returns an error matching
// core.ErrNotFound when nothing has been saved under key.
type Persister interface {
	Save(ctx context.Context, key string, data []byte) error
	Load(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Close() error
}

// Lister is implemented by persisters that can enumerate their keys.
type Lister interface {
	Keys(ctx context.Context) ([]string, error)
}

func missing(key string) error {
	return &core.NotFoundError{Kind: "snapshot", ID: key}
}

func checkKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return fmt.Errorf("invalid snapshot key %q", key)
	}
	return nil
}

// Repository saves and loads whole workspaces through a Persister. It
// implements core.WorkspaceSaver.
type Repository struct {
	p   Persister
	log *zap.Logger
}

// NewRepository wraps p.
func NewRepository(p Persister) *Repository {
	return &Repository{p: p, log: zap.L().With(zap.String("component", "board.store"))}
}

// SaveWorkspace encodes ws and writes it under its id.
func (r *Repository) SaveWorkspace(ctx context.Context, ws *core.Workspace) error {
	data, err := EncodeWorkspace(ws)
	if err != nil {
		return err
	}
	if err := r.p.Save(ctx, ws.ID.String(), data); err != nil {
		return fmt.Errorf("save workspace %s: %w", ws.ID, err)
	}
	r.log.Debug("workspace saved",
		zap.String("action", "save"),
		zap.Stringer("workspace", ws.ID),
		zap.Uint64("version", ws.Version),
		zap.Int("bytes", len(data)))
	return nil
}

// LoadWorkspace reads and decodes the workspace with the given id.
func (r *Repository) LoadWorkspace(ctx context.Context, id ulid.ULID) (*core.Workspace, error) {
	data, err := r.p.Load(ctx, id.String())
	if err != nil {
		return nil, err
	}
	ws, err := DecodeWorkspace(data)
	if err != nil {
		return nil, fmt.Errorf("decode workspace %s: %w", id, err)
	}
	if ws.ID != id {
		return nil, fmt.Errorf("snapshot %s holds workspace %s", id, ws.ID)
	}
	return ws, nil
}

// DeleteWorkspace removes the stored snapshot.
func (r *Repository) DeleteWorkspace(ctx context.Context, id ulid.ULID) error {
	return r.p.Delete(ctx, id.String())
}

// Close closes the underlying persister.
func (r *Repository) Close() error {
	return r.p.Close()
}
