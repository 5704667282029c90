package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"github.com/Stockspotdeals/stockspot-dispatch/internal/config"
	"github.com/Stockspotdeals/stockspot-dispatch/internal/dedup"
	"github.com/Stockspotdeals/stockspot-dispatch/internal/feed"
	"github.com/Stockspotdeals/stockspot-dispatch/internal/metrics"
	"github.com/Stockspotdeals/stockspot-dispatch/internal/models"
	"github.com/Stockspotdeals/stockspot-dispatch/internal/monetize"
	"github.com/Stockspotdeals/stockspot-dispatch/internal/notifier"
	"github.com/Stockspotdeals/stockspot-dispatch/internal/processor"
	"github.com/Stockspotdeals/stockspot-dispatch/internal/registry"
	"github.com/Stockspotdeals/stockspot-dispatch/internal/router"
	"github.com/Stockspotdeals/stockspot-dispatch/internal/storage"
	"github.com/Stockspotdeals/stockspot-dispatch/internal/tier"
)

type Server struct {
	processor *processor.Processor
	router    *router.Router
	ingest    *feed.HTTPBuffer
	tiers     registry.TierRegistry
}

func main() {
	slog.Info("Starting deal distribution engine...")
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Critical error loading configuration", "error", err)
		os.Exit(1)
	}

	channels, err := config.LoadChannels(cfg.ChannelsConfigPath)
	if err != nil {
		slog.Error("Critical error loading channels config", "error", err, "path", cfg.ChannelsConfigPath)
		os.Exit(1)
	}

	ctx := context.Background()
	store, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("Critical error opening state store", "error", err, "driver", cfg.StateDriver)
		os.Exit(1)
	}
	defer store.Close()

	// Cold-start load is fail-open: a broken load starts the engine with
	// empty state rather than refusing to serve at all.
	state, err := store.Load(ctx)
	if err != nil {
		slog.Warn("State load failed at startup, continuing with empty state", "error", err)
		state = storage.NewState()
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	index := dedup.NewIndex(cfg.DedupWindow)
	index.Seed(state.Records, time.Now())

	converter := monetize.New(cfg.AssociateTag,
		channels.Monetization.RetailerPatterns,
		channels.Monetization.EligibleCategories)

	rt := router.New(
		channels.Targets(),
		state,
		store,
		notifier.NewWebhook(cfg.PublishRatePerSec),
		tier.NewController(cfg.FreeTierDelay),
		router.NewTitleValidator(cfg.MaxEmojiCount, cfg.MaxUppercaseRatio, cfg.SpamBlocklist),
		cfg.TemplateSeed,
	)

	ingest := feed.NewHTTPBuffer()
	proc := processor.New(
		[]feed.Source{ingest},
		index, converter, rt, store, m,
	)

	srv := &Server{
		processor: proc,
		router:    rt,
		ingest:    ingest,
		tiers:     registry.NewStatic(channels.SubscriberTiers()),
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(fmt.Sprintf("@every %s", cfg.PollInterval), func() {
		cycleCtx, cancel := context.WithTimeout(context.Background(), 4*time.Minute)
		defer cancel()
		if err := proc.RunCycle(cycleCtx); err != nil {
			slog.Error("Processing cycle failed", "error", err)
		}
	}); err != nil {
		slog.Error("Critical error scheduling poll cycle", "error", err)
		os.Exit(1)
	}
	// Daily retention sweep, in addition to the lazy end-of-cycle pruning,
	// so records expire even across quiet stretches with no deals.
	if _, err := scheduler.AddFunc("@daily", func() {
		sweepCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		now := time.Now()
		index.Sweep(now)
		pruned, err := store.PruneRecords(sweepCtx, now.Add(-cfg.DedupWindow))
		if err != nil {
			slog.Warn("Retention sweep failed", "error", err)
			return
		}
		if pruned > 0 {
			m.RecordPruned(pruned)
		}
		slog.Info("Retention sweep complete", "pruned", pruned)
	}); err != nil {
		slog.Error("Critical error scheduling retention sweep", "error", err)
		os.Exit(1)
	}
	scheduler.Start()
	defer scheduler.Stop()
	slog.Info("Poll cycle scheduled", "interval", cfg.PollInterval)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintln(w, `{"status":"ok"}`)
	})
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /ingest", srv.IngestHandler)
	mux.HandleFunc("POST /process", srv.ProcessHandler)
	mux.HandleFunc("GET /channels", srv.ChannelStatusHandler)
	mux.HandleFunc("POST /channels/{id}/disable", srv.DisableChannelHandler)
	mux.HandleFunc("POST /channels/{id}/enable", srv.EnableChannelHandler)
	mux.HandleFunc("GET /subscribers/{id}", srv.SubscriberHandler)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGTERM/SIGINT
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		sig := <-sigCh
		slog.Info("Received signal, shutting down gracefully...", "signal", sig)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		}
	}()

	slog.Info("Listening on port", "port", cfg.Port)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("Failed to listen and serve", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped.")
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.StateDriver {
	case "sqlite":
		return storage.OpenSQLite(cfg.StatePath)
	case "firestore":
		return storage.NewFirestore(ctx, cfg.ProjectID)
	default:
		return storage.NewMemory(), nil
	}
}

// IngestHandler accepts a JSON array of raw deal records and buffers them
// for the next poll cycle.
func (s *Server) IngestHandler(w http.ResponseWriter, r *http.Request) {
	var records []models.RawRecord
	if err := json.NewDecoder(r.Body).Decode(&records); err != nil {
		http.Error(w, fmt.Sprintf("invalid ingest payload: %v", err), http.StatusBadRequest)
		return
	}
	s.ingest.Add(records)
	w.WriteHeader(http.StatusAccepted)
	fmt.Fprintf(w, "buffered %d records\n", len(records))
}

// ProcessHandler triggers a cycle immediately. Processing runs async so the
// response is not held open for webhook and store round trips.
func (s *Server) ProcessHandler(w http.ResponseWriter, _ *http.Request) {
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("Panic in processing cycle", "panic", rec)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), 4*time.Minute)
		defer cancel()
		if err := s.processor.RunCycle(ctx); err != nil {
			slog.Error("Processing cycle failed", "error", err)
		}
	}()
	w.WriteHeader(http.StatusAccepted)
	fmt.Fprintln(w, "Processing cycle started.")
}

func (s *Server) ChannelStatusHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.router.Statuses(time.Now())); err != nil {
		slog.Error("Failed to encode channel statuses", "error", err)
	}
}

func (s *Server) DisableChannelHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	reason := r.URL.Query().Get("reason")
	if err := s.router.Disable(r.Context(), id, reason); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	fmt.Fprintf(w, "channel %s disabled\n", id)
}

func (s *Server) EnableChannelHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.router.Enable(r.Context(), id); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	fmt.Fprintf(w, "channel %s enabled\n", id)
}

// SubscriberHandler reports a subscriber's tier and capabilities.
func (s *Server) SubscriberHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	t, known := s.tiers.TierOf(id)
	w.Header().Set("Content-Type", "application/json")
	resp := map[string]any{
		"subscriberId":        id,
		"tier":                t,
		"known":               known,
		"canManualMonitor":    t.CanManualMonitor(),
		"prioritizedOrdering": t.CanPrioritizedOrdering(),
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to encode subscriber info", "error", err)
	}
}
