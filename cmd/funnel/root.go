// ABOUTME: Root cobra command and the shared config/logger/storage setup used by every subcommand.
// ABOUTME: Flags are bound onto viper so flag > FUNNEL_* env > funnel.yaml > defaults.
package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/2389-research/funnel/board/core"
	"github.com/2389-research/funnel/board/server"
	"github.com/2389-research/funnel/board/store"
)

// cli carries what PersistentPreRunE resolved for the subcommands.
type cli struct {
	v   *viper.Viper
	cfg *server.Config
	log *zap.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{v: server.NewViper()}

	root := &cobra.Command{
		Use:           "funnel",
		Short:         "Multi-tenant Kanban boards with webhook automations",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.log != nil {
				_ = c.log.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.String("home", "", "data directory (default $XDG_DATA_HOME/funnel)")
	flags.String("config", "", "config file (default funnel.yaml in the data directory)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: console or json")
	flags.String("store", "", "storage backend: file, sqlite, or redis")
	_ = c.v.BindPFlag("home", flags.Lookup("home"))
	_ = c.v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = c.v.BindPFlag("log.format", flags.Lookup("log-format"))
	_ = c.v.BindPFlag("store.backend", flags.Lookup("store"))

	root.AddCommand(
		newServeCmd(c),
		newListCmd(c),
		newShowCmd(c),
		newExportCmd(c),
		newVersionCmd(),
	)
	return root
}

func (c *cli) setup(cmd *cobra.Command) error {
	if cmd.Name() == "version" {
		return nil
	}
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		c.v.SetConfigFile(path)
	}
	home, err := resolveDataDir("")
	if err != nil {
		return err
	}
	cfg, err := server.LoadConfig(c.v, home)
	if err != nil {
		return err
	}
	log, err := server.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	zap.ReplaceGlobals(log)
	c.cfg, c.log = cfg, log
	return nil
}

// openStore opens the configured backend under the data directory.
func (c *cli) openStore(ctx context.Context) (*store.StorageManager, *store.Repository, store.Persister, error) {
	mgr, err := store.NewStorageManager(c.cfg.Home)
	if err != nil {
		return nil, nil, nil, err
	}
	p, err := mgr.Open(ctx, c.cfg.Store)
	if err != nil {
		return nil, nil, nil, err
	}
	return mgr, store.NewRepository(p), p, nil
}

// findWorkspace resolves a workspace by id or case-insensitive name.
func findWorkspace(ctx context.Context, mgr *store.StorageManager, repo *store.Repository, p store.Persister, ref string) (*core.Workspace, error) {
	if id, err := ulid.Parse(ref); err == nil {
		return repo.LoadWorkspace(ctx, id)
	}
	ids, err := mgr.WorkspaceIDs(ctx, p)
	if err != nil {
		return nil, err
	}
	var found *core.Workspace
	for _, id := range ids {
		ws, err := repo.LoadWorkspace(ctx, id)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if !strings.EqualFold(ws.Name, ref) {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("workspace name %q is ambiguous; use the id", ref)
		}
		found = ws
	}
	if found == nil {
		return nil, &core.NotFoundError{Kind: "workspace", ID: ref}
	}
	return found, nil
}

// findBoard resolves a board by id or case-insensitive name. An empty ref
// picks the first board.
func findBoard(ws *core.Workspace, ref string) (*core.Board, error) {
	if ref == "" {
		if len(ws.Boards) == 0 {
			return nil, fmt.Errorf("workspace %q has no boards", ws.Name)
		}
		return ws.Boards[0], nil
	}
	if id, err := ulid.Parse(ref); err == nil {
		if b, ok := ws.Board(id); ok {
			return b, nil
		}
	}
	for _, b := range ws.Boards {
		if strings.EqualFold(b.Name, ref) {
			return b, nil
		}
	}
	return nil, &core.NotFoundError{Kind: "board", ID: ref}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the funnel version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "funnel %s\n", version)
		},
	}
}
