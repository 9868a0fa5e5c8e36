package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/replanhq/replan/internal/engine"
	"github.com/replanhq/replan/internal/logging"
	"github.com/replanhq/replan/internal/reconcile"
	"github.com/replanhq/replan/internal/web"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func serveCmd() *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the local plan dashboard",
		Long:  "Start the local plan dashboard and JSON API. Runs until interrupted; shutdown drains in-flight requests.",
		RunE: func(cmd *cobra.Command, args []string) error {
			storeDB, repoRoot, closeFn, err := openDB()
			if err != nil {
				return err
			}
			defer closeFn()
			cfg, err := loadConfig(repoRoot)
			if err != nil {
				return err
			}
			// Reconcile at startup only if no mutation holds the session lock.
			lock, ok, err := engine.TryAcquireSessionLock(replanDir(repoRoot), sessionName(cfg))
			if err != nil {
				return err
			}
			if ok {
				reconcileErr := reconcile.Run(cmd.Context(), storeDB, replanDir(repoRoot))
				_ = lock.Release()
				if reconcileErr != nil {
					return reconcileErr
				}
			}

			eng, err := buildEngine(storeDB, repoRoot, cfg)
			if err != nil {
				return err
			}
			server, err := web.NewServer(logging.Component("web"), eng, cfg)
			if err != nil {
				return err
			}

			addr := listen
			if addr == "" {
				addr = cfg.Web.Listen
			}
			if addr == "" {
				addr = ":7350"
			}

			app := fx.New(
				fx.NopLogger,
				fx.Invoke(func(lc fx.Lifecycle, shutdowner fx.Shutdowner) {
					httpServer := &http.Server{Addr: addr, Handler: server.Routes()}
					lc.Append(fx.Hook{
						OnStart: func(ctx context.Context) error {
							ln, err := net.Listen("tcp", addr)
							if err != nil {
								return err
							}
							fmt.Printf("Serving plan dashboard on http://localhost%s\n", addr)
							go func() {
								if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
									log.Error().Err(err).Msg("dashboard server stopped")
									_ = shutdowner.Shutdown()
								}
							}()
							return nil
						},
						OnStop: func(ctx context.Context) error {
							return httpServer.Shutdown(ctx)
						},
					})
				}),
			)
			app.Run()
			return nil
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (defaults to web.listen)")
	return cmd
}
