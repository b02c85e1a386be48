package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v3"
)

// serveCommand runs a long-lived daemon exposing Prometheus metrics and a
// liveness endpoint, adapted from the teacher's mirror-daemon HTTP server:
// a fixed-timeout http.Server, a mux carrying /metrics and /healthz, and
// signal-driven graceful shutdown.
func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run a long-lived process exposing /metrics and /healthz",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "http-bind-address",
				Value:   ":9101",
				Usage:   "address the status HTTP server binds to",
				Sources: cli.EnvVars("META_HTTP_BIND"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})

			server := &http.Server{
				Addr:              cmd.String("http-bind-address"),
				Handler:           mux,
				ReadTimeout:       5 * time.Second,
				WriteTimeout:      10 * time.Second,
				IdleTimeout:       5 * time.Second,
				ReadHeaderTimeout: 1 * time.Second,
			}

			serveCtx, cancel := context.WithCancel(ctx)
			defer cancel()

			go func() {
				logger.Info("starting status server", "addr", server.Addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("status server terminated", "err", err)
				}
			}()

			stop := make(chan os.Signal, 2)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			<-stop

			logger.Info("shutting down...")
			shutdownCtx, shutdownCancel := context.WithTimeout(serveCtx, 5*time.Second)
			defer shutdownCancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Error("failed to shut down status server", "err", err)
			}
			return nil
		},
	}
}
