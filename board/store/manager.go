// ABOUTME: StorageManager owns the data directory layout and picks the snapshot backend.
// ABOUTME: At startup it repairs event logs and loads every known workspace, skipping ones that fail.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/2389-research/funnel/board/core"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSqlite = "sqlite"
	BackendRedis  = "redis"
)

// BackendConfig selects and configures the snapshot backend.
type BackendConfig struct {
	Backend       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// StorageManager manages the home directory:
//
//	home/workspaces/{ulid}/events.jsonl
//	home/workspaces/{ulid}/snapshots/workspace.json   (file backend)
//	home/workspaces/{ulid}/exports/
//	home/funnel.db                                    (sqlite backend)
//	home/deliveries.db
type StorageManager struct {
	home string
	log  *zap.Logger
}

// NewStorageManager creates home/workspaces if needed.
func NewStorageManager(home string) (*StorageManager, error) {
	if err := os.MkdirAll(filepath.Join(home, "workspaces"), 0o755); err != nil {
		return nil, fmt.Errorf("create workspaces dir: %w", err)
	}
	return &StorageManager{home: home, log: zap.L().With(zap.String("component", "board.store"))}, nil
}

// Home returns the home directory.
func (m *StorageManager) Home() string { return m.home }

// WorkspaceDir returns the directory of a workspace without creating it.
func (m *StorageManager) WorkspaceDir(id ulid.ULID) string {
	return filepath.Join(m.home, "workspaces", id.String())
}

// EventLogPath returns the audit log path of a workspace.
func (m *StorageManager) EventLogPath(id ulid.ULID) string {
	return filepath.Join(m.WorkspaceDir(id), "events.jsonl")
}

// ExportsDir returns the exports directory of a workspace.
func (m *StorageManager) ExportsDir(id ulid.ULID) string {
	return filepath.Join(m.WorkspaceDir(id), "exports")
}

// DeliveryLogPath returns the path of the webhook delivery database.
func (m *StorageManager) DeliveryLogPath() string {
	return filepath.Join(m.home, "deliveries.db")
}

// CreateWorkspaceDir creates a workspace directory with its subdirectories.
func (m *StorageManager) CreateWorkspaceDir(id ulid.ULID) (string, error) {
	dir := m.WorkspaceDir(id)
	for _, sub := range []string{"snapshots", "exports"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return "", fmt.Errorf("create %s dir: %w", sub, err)
		}
	}
	return dir, nil
}

// WriteExport writes data to the workspace's exports directory.
func (m *StorageManager) WriteExport(id ulid.ULID, name string, data []byte) (string, error) {
	if err := checkKey(name); err != nil {
		return "", err
	}
	path := filepath.Join(m.ExportsDir(id), name)
	if err := writeAtomic(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// Open creates the configured Persister.
func (m *StorageManager) Open(ctx context.Context, cfg BackendConfig) (Persister, error) {
	switch cfg.Backend {
	case "", BackendFile:
		return NewLayoutFileStore(func(key string) string {
			return filepath.Join(m.home, "workspaces", key, "snapshots", "workspace.json")
		}), nil
	case BackendSqlite:
		return OpenSqlite(filepath.Join(m.home, "funnel.db"))
	case BackendRedis:
		return DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisPrefix)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// WorkspaceIDs lists workspaces known from the directory tree and, when p
// can enumerate keys, from the backend. Entries that are not ULIDs are
// skipped.
func (m *StorageManager) WorkspaceIDs(ctx context.Context, p Persister) ([]ulid.ULID, error) {
	seen := map[ulid.ULID]bool{}
	var ids []ulid.ULID
	add := func(name string) {
		id, err := ulid.Parse(name)
		if err != nil {
			m.log.Debug("skip non-ulid entry", zap.String("action", "list"), zap.String("name", name))
			return
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	entries, err := os.ReadDir(filepath.Join(m.home, "workspaces"))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read workspaces dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			add(e.Name())
		}
	}
	if l, ok := p.(Lister); ok {
		keys, err := l.Keys(ctx)
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			add(k)
		}
	}
	slices.SortFunc(ids, func(a, b ulid.ULID) int { return a.Compare(b) })
	return ids, nil
}

// RecoverAll repairs each workspace's event log and loads its snapshot.
// Workspaces that fail to load are logged and skipped.
func (m *StorageManager) RecoverAll(ctx context.Context, repo *Repository, p Persister) ([]*core.Workspace, error) {
	ids, err := m.WorkspaceIDs(ctx, p)
	if err != nil {
		return nil, err
	}
	var out []*core.Workspace
	for _, id := range ids {
		logPath := m.EventLogPath(id)
		if _, err := os.Stat(logPath); err == nil {
			kept, err := RepairJsonl(logPath)
			if err != nil {
				m.log.Warn("event log repair failed", zap.String("action", "recover"), zap.Stringer("workspace", id), zap.Error(err))
			} else {
				m.log.Debug("event log checked", zap.String("action", "recover"), zap.Stringer("workspace", id), zap.Int("events", kept))
			}
		}

		ws, err := repo.LoadWorkspace(ctx, id)
		if errors.Is(err, core.ErrNotFound) {
			m.log.Debug("no snapshot for workspace", zap.String("action", "recover"), zap.Stringer("workspace", id))
			continue
		}
		if err != nil {
			m.log.Error("recover workspace failed", zap.String("action", "recover"), zap.Stringer("workspace", id), zap.Error(err))
			continue
		}
		m.log.Info("recovered workspace",
			zap.String("action", "recover"),
			zap.Stringer("workspace", id),
			zap.Int("boards", len(ws.Boards)),
			zap.Uint64("version", ws.Version))
		out = append(out, ws)
	}
	return out, nil
}
