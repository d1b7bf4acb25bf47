package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bizcore/internal/archive"
	"bizcore/internal/blob"
	"bizcore/internal/config"
	"bizcore/internal/dataaccess"
	"bizcore/internal/dispatch"
	"bizcore/internal/router"
	"bizcore/internal/transport"
	"bizcore/internal/transport/remote"
	"bizcore/pkg/portal"
	"bizcore/plugins/orders"
)

const shutdownTimeout = 10 * time.Second

// app holds the wired host components.
type app struct {
	logger     *slog.Logger
	manager    *dataaccess.Manager
	registry   *portal.Registry
	metrics    *prometheus.Registry
	dispatcher *dispatch.Dispatcher
	archive    *archive.Archive
	handler    http.Handler
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	manager, err := dataaccess.Open(ctx, cfg.Storage, dataaccess.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	a := &app{logger: logger, manager: manager, registry: portal.NewRegistry(), metrics: prometheus.NewRegistry()}
	if err := a.wire(ctx, cfg); err != nil {
		_ = manager.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context, cfg config.Config) error {
	if err := a.manager.Migrate(ctx, orders.Schema()...); err != nil {
		return err
	}
	info, err := a.registry.Install(orders.New())
	if err != nil {
		return fmt.Errorf("install module: %w", err)
	}
	a.logger.Info("module installed", "name", info.Name, "version", info.Version, "types", len(info.Types))

	a.metrics.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder, err := dispatch.NewPrometheusRecorder(a.metrics)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	rt := router.New(a.registry,
		router.WithResources(a.manager),
		router.WithCreateFallback(cfg.Portal.CreateFallback),
		router.WithLogger(a.logger),
	)
	hostOpts := []remote.HostOption{
		remote.WithHostLogger(a.logger),
		remote.WithMaxBodyBytes(cfg.Portal.MaxBodyBytes),
	}
	key, err := cfg.ContextKeyBytes()
	if err != nil {
		return err
	}
	if key != nil {
		sealer, err := remote.NewSealer(key)
		if err != nil {
			return fmt.Errorf("context key: %w", err)
		}
		hostOpts = append(hostOpts, remote.WithHostSealer(sealer))
	}
	host := remote.NewHost(meteredRouter{next: rt, metrics: recorder}, a.registry, hostOpts...)

	store, err := blob.Open(ctx, cfg.Blob)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}
	a.archive = archive.New(store, a.registry, archive.WithPrefix(cfg.Portal.ArchivePrefix))
	a.dispatcher = dispatch.New(transport.NewLocal(rt),
		dispatch.WithLogger(a.logger),
		dispatch.WithMetricsRecorder(recorder),
	)

	mux := http.NewServeMux()
	mux.Handle("POST /portal", host)
	mux.Handle("GET /metrics", promhttp.HandlerFor(a.metrics, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /healthz", a.healthz)
	mux.HandleFunc("POST /archive/orders/{number}", a.archiveOrder)
	mux.HandleFunc("GET /archive/{type}/{id}", a.archiveVersions)
	a.handler = mux
	return nil
}

// ListenAndServe serves until ctx is done, then drains open requests.
func (a *app) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: a.handler, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("portald listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	a.dispatcher.Wait()
	a.logger.Info("portald stopped")
	return nil
}

// Close releases storage.
func (a *app) Close() error { return a.manager.Close() }

func (a *app) healthz(w http.ResponseWriter, r *http.Request) {
	if db := a.manager.DB(); db != nil {
		if err := db.PingContext(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "storage": string(a.manager.Driver())})
}

func (a *app) archiveOrder(w http.ResponseWriter, r *http.Request) {
	number := r.PathValue("number")
	obj, err := a.dispatcher.Fetch(r.Context(), &portal.Context{}, orders.TypeOrder, orders.ByNumber{Number: number})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, orders.ErrNotFound) {
			status = http.StatusNotFound
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	info, err := a.archive.Save(r.Context(), obj)
	if err != nil {
		a.logger.Error("archive order", "number", number, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, versionView(info.Key, info.Size, info.LastModified))
}

func (a *app) archiveVersions(w http.ResponseWriter, r *http.Request) {
	infos, err := a.archive.Versions(r.Context(), r.PathValue("type"), r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	out := make([]map[string]any, 0, len(infos))
	for _, info := range infos {
		out = append(out, versionView(info.Key, info.Size, info.LastModified))
	}
	writeJSON(w, http.StatusOK, out)
}

func versionView(key string, size int64, modified time.Time) map[string]any {
	return map[string]any{"key": key, "size": size, "last_modified": modified.UTC().Format(time.RFC3339Nano)}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// meteredRouter records host-side request outcomes.
type meteredRouter struct {
	next    transport.Router
	metrics dispatch.MetricsRecorder
}

func (m meteredRouter) Route(ctx context.Context, req portal.Request) (portal.Response, error) {
	started := time.Now()
	resp, err := m.next.Route(ctx, req)
	m.metrics.Observe(ctx, "host."+string(req.Operation), err == nil, time.Since(started))
	return resp, err
}
