// ABOUTME: The serve subcommand: recovers stored workspaces and runs the HTTP API, websocket hub, and webhook dispatcher.
// ABOUTME: All long-running parts share one errgroup so a failure in any of them stops the rest.
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/2389-research/funnel/board/automation"
	"github.com/2389-research/funnel/board/server"
	"github.com/2389-research/funnel/board/web"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the board API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.serve(cmd.Context())
		},
	}
	cmd.Flags().String("bind", "", "listen address (default 127.0.0.1:7780)")
	_ = c.v.BindPFlag("bind", cmd.Flags().Lookup("bind"))
	return cmd
}

func (c *cli) serve(ctx context.Context) error {
	log := c.log.With(zap.String("component", "cmd.serve"))
	mgr, repo, p, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = repo.Close() }()

	deliveries, err := automation.OpenDeliveryLog(mgr.DeliveryLogPath())
	if err != nil {
		return err
	}
	defer func() { _ = deliveries.Close() }()

	hub := server.NewHub(originChecker(c.cfg.CORSOrigins))
	notifier := automation.MultiNotifier{hub, automation.LogNotifier{Logger: c.log}}
	dispatcher := automation.NewDispatcher(c.cfg.Webhooks, notifier, deliveries)

	g, gctx := errgroup.WithContext(ctx)
	state := server.NewAppState(gctx, server.Deps{
		Manager:    mgr,
		Repo:       repo,
		Dispatcher: dispatcher,
		Deliveries: deliveries,
		Hub:        hub,
		Notifier:   notifier,
	})
	defer state.Shutdown()

	n, err := state.Recover(ctx, p)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", c.cfg.Bind)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler: web.NewRouter(state, web.RouterOptions{
			AuthToken:   c.cfg.AuthToken,
			CORSOrigins: c.cfg.CORSOrigins,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error { return dispatcher.Run(gctx) })
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	log.Info("funnel listening",
		zap.String("action", "serve"),
		zap.String("addr", ln.Addr().String()),
		zap.String("home", c.cfg.Home),
		zap.String("store", c.cfg.Store.Backend),
		zap.Int("workspaces", n),
		zap.Bool("auth", c.cfg.AuthToken != ""))

	err = g.Wait()
	log.Info("funnel stopped", zap.String("action", "shutdown"), zap.Error(err))
	return err
}

// originChecker allows websocket upgrades from the configured CORS origins
// and from the server's own host.
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || slices.Contains(allowed, "*") || slices.Contains(allowed, origin) {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}
