// Package app wires the Nestchat client runtime: config, logging, the chat
// state store, the REST chat service client, the realtime transport, and the
// optional metrics endpoint.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nestchat/cmd/internal/chatapi"
	"nestchat/cmd/internal/chatstate"
	"nestchat/cmd/internal/transport"
)

// App is the client runtime: it owns the store and the collaborators feeding it.
type App struct {
	cfg Config
	log Logger

	store *chatstate.Store
	api   *chatapi.Client
	push  *transport.Client

	registry *prometheus.Registry
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogPretty)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	api, err := chatapi.NewClient(log, chatapi.Config{
		BaseURL: cfg.APIBaseURL,
		Token:   cfg.Token,
		Timeout: cfg.HTTPTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("chat api: %w", err)
	}

	store := chatstate.New(log, api, cfg.UserID, chatstate.NewMetrics(registry))

	push, err := transport.NewClient(log, store, transport.Config{
		URL:   cfg.WSURL,
		Token: cfg.Token,
	})
	if err != nil {
		return nil, fmt.Errorf("transport: %w", err)
	}

	return &App{
		cfg:      cfg,
		log:      log,
		store:    store,
		api:      api,
		push:     push,
		registry: registry,
	}, nil
}

// Store exposes the chat state store for embedding callers.
func (a *App) Store() *chatstate.Store { return a.store }

// Run drives the smoke client: serve metrics, open the push session, load the
// first conversation page, and log store snapshots until the context is done.
func (a *App) Run(ctx context.Context) error {
	var metricsSrv *http.Server
	if a.cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		registerHTTP(mux, a.registry)
		metricsSrv = &http.Server{
			Addr:              a.cfg.MetricsAddr,
			Handler:           WithRequestLogging(mux, a.log),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			a.log.Info("metrics.listen", "addr", a.cfg.MetricsAddr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Error("metrics.listen.fail", "err", err)
			}
		}()
	}

	go func() {
		if err := a.push.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Error("push.run.fail", "err", err)
		}
	}()

	if err := a.store.LoadConversations(ctx, 1, a.cfg.PageSize); err != nil {
		// The push session keeps running; the caller can retry the load.
		a.log.Warn("initial.load.fail", "err", err)
	}
	if err := a.store.RefreshTotalUnread(ctx); err != nil {
		a.log.Warn("initial.unread.fail", "err", err)
	}

	t := time.NewTicker(a.cfg.SnapshotEvery)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			if metricsSrv != nil {
				shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = metricsSrv.Shutdown(shCtx)
			}
			a.log.Info("client stopped")
			return nil
		case <-t.C:
			a.log.Info("store.snapshot",
				"conversations", len(a.store.Conversations()),
				"unread_total", a.store.TotalUnread(),
				"loading", a.store.Loading(),
				"sending", a.store.Sending(),
				"last_error", a.store.LastError(),
			)
		}
	}
}

func registerHTTP(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
