package nodularapp

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/hasgeek/nodular/pkg/config"
	"github.com/hasgeek/nodular/pkg/logger"
	"github.com/hasgeek/nodular/pkg/metrics"
	"github.com/hasgeek/nodular/pkg/publisher"
	"github.com/hasgeek/nodular/pkg/registry"
	"github.com/hasgeek/nodular/pkg/store"
	"github.com/hasgeek/nodular/pkg/store/gormstore"
	"github.com/hasgeek/nodular/pkg/tree"
	"github.com/hasgeek/nodular/pkg/view"
	"github.com/hasgeek/nodular/pkg/views"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
)

// App holds the wired components of one nodular process.
type App struct {
	config   *config.Config
	store    store.Store
	engine   *tree.Engine
	registry *registry.Registry
	promReg  *prometheus.Registry
	metrics  *metrics.Metrics
	logData  *logger.LogData
	log      zerolog.Logger
	out      io.Writer
	logOut   io.Writer
	readOnly atomic.Bool

	user   publisher.UserFunc
	perms  publisher.PermissionsFunc
	source view.PermissionSource
}

// Option configures an App.
type Option func(*App)

// WithOutput sends command output (tree listings, change logs) to w
// instead of stdout.
func WithOutput(w io.Writer) Option {
	return func(a *App) {
		a.out = w
	}
}

// WithLogWriter sends the application log to w. It takes precedence over
// the configured log path.
func WithLogWriter(w io.Writer) Option {
	return func(a *App) {
		a.logOut = w
	}
}

// WithUserFunc identifies the requesting user of published requests.
func WithUserFunc(fn publisher.UserFunc) Option {
	return func(a *App) {
		a.user = fn
	}
}

// WithPermissionsFunc grants permissions to published requests from
// outside the tree.
func WithPermissionsFunc(fn publisher.PermissionsFunc) Option {
	return func(a *App) {
		a.perms = fn
	}
}

// WithPermissionSource reports the permissions users hold on nodes.
func WithPermissionSource(src view.PermissionSource) Option {
	return func(a *App) {
		a.source = src
	}
}

// New opens the configured store and wires the tree engine, the type
// registry with the stock node views, and the metrics registry.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{config: cfg, out: os.Stdout}
	for _, opt := range opts {
		opt(a)
	}
	a.readOnly.Store(cfg.ReadOnly)

	build := logger.New().WithLevel(cfg.Log.Level).WithComponent("nodular")
	if a.logOut != nil {
		build = build.FromBuffer(a.logOut)
	} else {
		build = build.FromPath(cfg.Log.Path)
	}
	logData, err := build.Make()
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}
	a.logData = logData
	a.log = logData.Logger

	base, err := gormstore.Open(cfg.Database.Driver, cfg.Database.DSN,
		gormstore.WithLogger(a.log.With().Str("module", "gorm").Logger()))
	if err != nil {
		a.closeLog()
		return nil, err
	}
	a.store = store.NewReadOnlyStore(base, a.IsReadOnly)

	a.registry = registry.New()
	a.engine = tree.New(a.store,
		tree.WithLogger(a.log.With().Str("module", "tree").Logger()),
		tree.WithTypeChecker(a.registry))
	if err := views.Register(a.registry, a.engine); err != nil {
		_ = a.Close()
		return nil, err
	}

	a.promReg = prometheus.NewRegistry()
	a.promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = metrics.New(a.promReg)

	a.log.Debug().Str("driver", cfg.Database.Driver).Bool("readonly", cfg.ReadOnly).Msg("application ready")
	return a, nil
}

// Close closes the store and the log file.
func (a *App) Close() error {
	var err error
	if a.store != nil {
		err = a.store.Close()
	}
	a.closeLog()
	return err
}

func (a *App) closeLog() {
	if a.logData != nil {
		_ = a.logData.Close()
	}
}

func (a *App) Config() *config.Config       { return a.config }
func (a *App) Store() store.Store           { return a.store }
func (a *App) Engine() *tree.Engine         { return a.engine }
func (a *App) Registry() *registry.Registry { return a.registry }
func (a *App) Metrics() *metrics.Metrics    { return a.metrics }

// SetReadOnly switches write rejection on or off at runtime.
func (a *App) SetReadOnly(readOnly bool) {
	a.readOnly.Store(readOnly)
	a.log.Info().Bool("readonly", readOnly).Msg("read-only mode changed")
}

func (a *App) IsReadOnly() bool {
	return a.readOnly.Load()
}
