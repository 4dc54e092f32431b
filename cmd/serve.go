package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tmirko/flight-price-tracker/internal/monitoring"
	"github.com/tmirko/flight-price-tracker/internal/pipeline"
	"github.com/tmirko/flight-price-tracker/internal/report"
	"github.com/tmirko/flight-price-tracker/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve reports, run history and metrics over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var (
			st        store.Store
			scheduler *pipeline.Scheduler
		)
		if cfg.Server.RunIntervalMins > 0 {
			env, err := initTracker(ctx)
			if err != nil {
				return err
			}
			defer env.Close()
			st = env.Store
			scheduler = pipeline.NewScheduler(env.Pipeline, time.Duration(cfg.Server.RunIntervalMins)*time.Minute)
		} else {
			s, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close() //nolint:errcheck
			st = s
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           buildRouter(st, cfg.RouteID(), cfg.Reporting.Dir),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		if scheduler != nil {
			g.Go(func() error {
				scheduler.Run(gctx)
				return nil
			})
		}

		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// buildRouter wires the HTTP routes. Metrics are registered on a private
// registry so repeated calls do not collide.
func buildRouter(st store.Store, route, reportsDir string) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(monitoring.NewPriceCollector(st, route))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Get("/report/latest", func(w http.ResponseWriter, _ *http.Request) {
		if _, err := os.Stat(filepath.Join(reportsDir, report.LatestName)); errors.Is(err, os.ErrNotExist) {
			respondError(w, http.StatusNotFound, "no report yet")
			return
		}
		md, err := report.ReadLatest(reportsDir)
		if err != nil {
			zap.L().Error("serve: read report", zap.Error(err))
			respondError(w, http.StatusInternalServerError, "failed to read report")
			return
		}
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(md)
	})

	r.Get("/api/runs", func(w http.ResponseWriter, req *http.Request) {
		filter := store.RunFilter{Route: req.URL.Query().Get("route")}
		if raw := req.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
				return
			}
			filter.Limit = n
		}

		runs, err := st.ListSearchRuns(req.Context(), filter)
		if err != nil {
			zap.L().Error("serve: list runs", zap.Error(err))
			respondError(w, http.StatusInternalServerError, "failed to list runs")
			return
		}
		respondJSON(w, http.StatusOK, runs)
	})

	return r
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
