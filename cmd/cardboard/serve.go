package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/recera/cardboard/cmd/cardboard/internal/config"
	"github.com/recera/cardboard/pkg/live"
)

func newServeCommand() *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the workspace to remote renderers over websockets",
		Long: `Serve accepts renderers on /live/{session}. Each connection gets its own
canvas session; intents from every session are applied to the shared
workspace and the result is pushed to all of them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			if host != "" {
				cfg.Serve.Host = host
			}
			if port != 0 {
				cfg.Serve.Port = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			store, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			liveServer := live.NewServer(store, &live.Options{
				Logger:       logger,
				Canvas:       canvasOptions(cfg),
				PingInterval: time.Duration(cfg.Serve.PingSeconds) * time.Second,
				CheckOrigin:  originChecker(cfg.Serve.AllowedOrigins),
			})
			defer liveServer.Close()

			if cfg.Workspace.Watch && cfg.Workspace.Backend == "yaml" {
				go func() {
					err := store.Watch(ctx, config.Ms(cfg.Workspace.DebounceMS), func(err error) {
						if err != nil {
							logger.Warn("workspace reload failed", "error", err)
							return
						}
						if err := liveServer.Reload(ctx); err != nil {
							logger.Warn("failed to push workspace", "error", err)
						}
					})
					if err != nil {
						logger.Warn("not watching workspace", "error", err)
					}
				}()
			}

			srv := &http.Server{
				Addr:              cfg.Addr(),
				Handler:           newRouter(store, liveServer),
				ReadHeaderTimeout: 10 * time.Second,
			}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()

			logger.Info("serving workspace", "addr", "http://"+cfg.Addr(), "workspace", workspacePath(cfg))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			logger.Info("server stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Listen host (overrides config)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port (overrides config)")
	return cmd
}

func newRouter(ws live.Workspace, liveServer *live.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": liveServer.Count()})
	})
	r.Get("/snapshot", func(w http.ResponseWriter, r *http.Request) {
		snap, cur, err := ws.Snapshot(r.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"snapshot": snap, "cursor": cur})
	})
	r.Get("/live/{session}", func(w http.ResponseWriter, r *http.Request) {
		liveServer.HandleWebSocket(w, r, chi.URLParam(r, "session"))
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// originChecker allows every origin when the list is empty
func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}
