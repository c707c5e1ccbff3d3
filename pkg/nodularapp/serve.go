package nodularapp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/hasgeek/nodular/pkg/publisher"
	"github.com/hasgeek/nodular/pkg/traverse"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 5 * time.Second

// Handler returns the HTTP handler of the server:
//
//	GET /healthz    liveness and read-only state
//	GET /metrics    Prometheus metrics, when enabled
//	/...            the published tree, under the configured urlpath
func (a *App) Handler() (http.Handler, error) {
	pub, err := a.Publisher()
	if err != nil {
		return nil, err
	}

	router := mux.NewRouter()
	router.Use(a.logRequests)
	router.HandleFunc("/healthz", a.handleHealth).Methods(http.MethodGet)
	if a.config.Metrics.Enabled {
		router.Handle("/metrics", promhttp.HandlerFor(a.promReg, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	router.PathPrefix(pub.Resolver().Urlpath()).Handler(pub)
	return router, nil
}

// Publisher builds a publisher for the configured root and paths.
func (a *App) Publisher() (*publisher.Publisher, error) {
	cfg := a.config.Publish
	resolver, err := traverse.New(a.store, traverse.RootNamed(cfg.Root), cfg.Basepath, cfg.Urlpath,
		traverse.WithLogger(a.log.With().Str("module", "traverse").Logger()),
		traverse.WithObserver(a.metrics.ObserveTraverse))
	if err != nil {
		return nil, err
	}
	opts := []publisher.Option{
		publisher.WithLogger(a.log.With().Str("module", "publisher").Logger()),
		publisher.WithMetrics(a.metrics),
	}
	if a.user != nil {
		opts = append(opts, publisher.WithUserFunc(a.user))
	}
	if a.perms != nil {
		opts = append(opts, publisher.WithPermissionsFunc(a.perms))
	}
	if a.source != nil {
		opts = append(opts, publisher.WithPermissionSource(a.source))
	}
	return publisher.New(resolver, a.registry, opts...), nil
}

// Serve runs the HTTP server until ctx is cancelled, then shuts it down,
// giving in-flight requests up to five seconds.
func (a *App) Serve(ctx context.Context, _ *ServeCommand) error {
	handler, err := a.Handler()
	if err != nil {
		return err
	}
	server := &http.Server{
		Addr:              a.config.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()
	a.log.Info().Str("addr", server.Addr).Str("root", a.config.Publish.Root).
		Str("basepath", a.config.Publish.Basepath).Bool("readonly", a.IsReadOnly()).Msg("serving")

	select {
	case <-ctx.Done():
		a.log.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-serverErr:
		return err
	}
}

func (a *App) handleHealth(w http.ResponseWriter, _ *http.Request) {
	publisher.WriteJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"readonly": a.IsReadOnly(),
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (a *App) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		a.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
