// ABOUTME: Tests for the snapshot backends and the workspace repository.
// ABOUTME: Every backend runs the same contract; redis runs against miniredis.
package store_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/2389-research/funnel/board/core"
	"github.com/2389-research/funnel/board/store"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
)

func backends(t *testing.T) map[string]store.Persister {
	t.Helper()
	sq, err := store.OpenSqlite(filepath.Join(t.TempDir(), "funnel.db"))
	if err != nil {
		t.Fatalf("OpenSqlite: %v", err)
	}
	mr := miniredis.RunT(t)
	rs := store.NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "funnel:", 0)

	all := map[string]store.Persister{
		"file":   store.NewFileStore(t.TempDir()),
		"sqlite": sq,
		"redis":  rs,
	}
	t.Cleanup(func() {
		for _, p := range all {
			_ = p.Close()
		}
	})
	return all
}

func TestPersisterContract(t *testing.T) {
	ctx := context.Background()
	for name, p := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := p.Load(ctx, "absent"); !errors.Is(err, core.ErrNotFound) {
				t.Fatalf("Load missing: got %v, want ErrNotFound", err)
			}
			if err := p.Save(ctx, "ws1", []byte("first")); err != nil {
				t.Fatalf("Save: %v", err)
			}
			if err := p.Save(ctx, "ws1", []byte("second")); err != nil {
				t.Fatalf("Save again: %v", err)
			}
			got, err := p.Load(ctx, "ws1")
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if string(got) != "second" {
				t.Errorf("Load: got %q, want last write", got)
			}
			if err := p.Delete(ctx, "ws1"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if _, err := p.Load(ctx, "ws1"); !errors.Is(err, core.ErrNotFound) {
				t.Errorf("Load after delete: got %v", err)
			}
			if err := p.Delete(ctx, "ws1"); err != nil {
				t.Errorf("Delete missing: %v", err)
			}
		})
	}
}

func TestListerBackends(t *testing.T) {
	ctx := context.Background()
	for name, p := range backends(t) {
		l, ok := p.(store.Lister)
		if !ok {
			continue
		}
		t.Run(name, func(t *testing.T) {
			for _, k := range []string{"b", "a"} {
				if err := p.Save(ctx, k, []byte("{}")); err != nil {
					t.Fatalf("Save: %v", err)
				}
			}
			keys, err := l.Keys(ctx)
			if err != nil {
				t.Fatalf("Keys: %v", err)
			}
			if diff := cmp.Diff([]string{"a", "b"}, keys); diff != "" {
				t.Errorf("keys mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFileStoreRejectsPathKeys(t *testing.T) {
	fs := store.NewFileStore(t.TempDir())
	for _, key := range []string{"", "..", "a/b", `a\b`} {
		if err := fs.Save(context.Background(), key, []byte("x")); err == nil {
			t.Errorf("Save(%q): want error", key)
		}
	}
}

func TestFileStoreLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	fs := store.NewFileStore(dir)
	if err := fs.Save(context.Background(), "ws", []byte("{}")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "ws.json" {
		t.Errorf("dir entries: %v", entries)
	}
}

func sampleWorkspace(t *testing.T) *core.Workspace {
	t.Helper()
	ws := core.NewWorkspace(core.NewULID(), "Acme")
	ws, tag, err := ws.CreateTag("Hot", "#FF0000")
	if err != nil {
		t.Fatalf("CreateTag: %v", err)
	}
	ws, b, err := ws.CreateBoard("Sales", core.VisibilityEveryone)
	if err != nil {
		t.Fatalf("CreateBoard: %v", err)
	}
	nb, todo, err := core.CreateList(b, "Todo", "")
	if err != nil {
		t.Fatalf("CreateList: %v", err)
	}
	nb, _, err = core.CreateCard(nb, todo, core.CardInput{Title: "Deal", Value: 150, TagIDs: []ulid.ULID{tag.ID}})
	if err != nil {
		t.Fatalf("CreateCard: %v", err)
	}
	ws, err = ws.WithBoard(nb)
	if err != nil {
		t.Fatalf("WithBoard: %v", err)
	}
	return ws
}

func TestRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, p := range backends(t) {
		t.Run(name, func(t *testing.T) {
			repo := store.NewRepository(p)
			ws := sampleWorkspace(t)
			if err := repo.SaveWorkspace(ctx, ws); err != nil {
				t.Fatalf("SaveWorkspace: %v", err)
			}
			got, err := repo.LoadWorkspace(ctx, ws.ID)
			if err != nil {
				t.Fatalf("LoadWorkspace: %v", err)
			}
			if diff := cmp.Diff(ws, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("workspace mismatch (-want +got):\n%s", diff)
			}
			if _, err := repo.LoadWorkspace(ctx, core.NewULID()); !errors.Is(err, core.ErrNotFound) {
				t.Errorf("LoadWorkspace unknown: got %v", err)
			}
		})
	}
}
