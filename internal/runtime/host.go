// Package runtime provides the Host: it builds the dispatch pipeline from
// configuration, serves it over HTTP and manages its lifecycle.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/actiondispatch/internal/adapters/storage/sqlite"
	"github.com/tjfontaine/actiondispatch/internal/auth"
	"github.com/tjfontaine/actiondispatch/internal/batch"
	"github.com/tjfontaine/actiondispatch/internal/controlplane"
	"github.com/tjfontaine/actiondispatch/internal/core/domain"
	"github.com/tjfontaine/actiondispatch/internal/core/ports"
	"github.com/tjfontaine/actiondispatch/internal/dispatch"
	"github.com/tjfontaine/actiondispatch/internal/exception"
	"github.com/tjfontaine/actiondispatch/internal/pkg/config"
	"github.com/tjfontaine/actiondispatch/internal/server"
	"github.com/tjfontaine/actiondispatch/internal/storage"
	"github.com/tjfontaine/actiondispatch/internal/storage/memory"
	"github.com/tjfontaine/actiondispatch/internal/telemetry"
)

// errNotStarted is returned by operations that need a built pipeline.
var errNotStarted = &domain.InvalidStateError{Message: "runtime: host not started"}

// Host is the main entry point for running the dispatcher. It manages
// configuration, the fault store, the dispatch pipeline and the HTTP server.
// Host can be embedded in larger applications or run standalone.
type Host struct {
	// Dependencies (injected via options)
	config         ports.ConfigProvider
	store          ports.FaultStore
	tracerProvider trace.TracerProvider
	logger         *slog.Logger

	// Internal state
	ownsStore  bool
	routes     *dispatch.Routes
	dispatcher *dispatch.Server
	batch      atomic.Pointer[batch.Handler]
	server     *server.Server
	cfg        *config.Config

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.RWMutex
}

// New creates a new Host with the given options.
func New(opts ...Option) (*Host, error) {
	h := &Host{
		logger: slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(h); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	if h.config == nil {
		return nil, fmt.Errorf("config provider required (use WithFileConfig or WithConfigProvider)")
	}
	return h, nil
}

// Start loads the configuration, builds the pipeline and starts serving.
func (h *Host) Start(ctx context.Context) error {
	if err := h.Build(ctx); err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	h.server.Start()

	if err := h.config.Watch(h.ctx, h.onConfigChange); err != nil {
		h.logger.Warn("config watch unavailable", slog.String("error", err.Error()))
	}

	h.logger.Info("host started",
		slog.Int("port", h.cfg.Server.Port),
		slog.String("batch_path", h.cfg.Batch.Path),
		slog.String("execution_order", h.cfg.Batch.ExecutionOrder),
		slog.String("storage", h.cfg.Storage.Type))

	return nil
}

// Build loads the configuration and assembles the pipeline without
// listening. Start calls it; tests and embedders serving Handler through
// their own server call it directly.
func (h *Host) Build(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.ctx, h.cancel = context.WithCancel(ctx)

	cfg, err := h.config.Load(h.ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	h.cfg = cfg

	if err := h.initStore(cfg); err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	if err := h.initPipeline(cfg); err != nil {
		return fmt.Errorf("init pipeline: %w", err)
	}
	return nil
}

// Handler returns the host router: middleware, health check and the
// dispatcher. It is nil before Build.
func (h *Host) Handler() http.Handler {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.server == nil {
		return nil
	}
	return h.server.Router
}

// Dispatcher returns the dispatch pipeline, or nil before Build.
func (h *Host) Dispatcher() ports.Dispatcher {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.dispatcher == nil {
		return nil
	}
	return h.dispatcher
}

// Shutdown gracefully stops the host.
func (h *Host) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.logger.Info("shutting down host")

	if h.cancel != nil {
		h.cancel()
	}

	var errs []error
	if h.server != nil {
		if err := h.server.Shutdown(ctx); err != nil {
			h.logger.Error("failed to shutdown server", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if h.store != nil && h.ownsStore {
		if err := h.store.Close(); err != nil {
			h.logger.Error("failed to close storage", slog.String("error", err.Error()))
		}
	}

	if err := h.config.Close(); err != nil {
		h.logger.Error("failed to close config", slog.String("error", err.Error()))
	}

	h.logger.Info("host shutdown complete")
	return errors.Join(errs...)
}

func (h *Host) onConfigChange(cfg *config.Config) {
	h.logger.Info("config changed, reloading")
	if err := h.Reload(cfg); err != nil {
		h.logger.Error("failed to reload", slog.String("error", err.Error()))
	}
}

// Reload applies the batch settings of cfg by swapping in a new batch
// handler. Requests already running keep the handler they started with.
// Server, storage, auth and telemetry settings need a restart.
func (h *Host) Reload(cfg *config.Config) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.dispatcher == nil {
		return errNotStarted
	}
	if cfg.Batch.Path != h.cfg.Batch.Path || cfg.Server != h.cfg.Server || cfg.Storage != h.cfg.Storage {
		h.logger.Warn("server, storage and batch path changes take effect after restart")
	}

	handler, err := h.newBatchHandler(cfg)
	if err != nil {
		return err
	}
	h.batch.Store(handler)

	h.cfg.Batch.ExecutionOrder = cfg.Batch.ExecutionOrder
	h.cfg.Batch.MediaTypes = cfg.Batch.MediaTypes
	h.cfg.Batch.MaxParts = cfg.Batch.MaxParts
	h.cfg.Batch.MaxConcurrency = cfg.Batch.MaxConcurrency

	h.logger.Info("reload complete",
		slog.String("execution_order", cfg.Batch.ExecutionOrder),
		slog.Int("max_parts", cfg.Batch.MaxParts),
		slog.Int("max_concurrency", cfg.Batch.MaxConcurrency))
	return nil
}

// BatchHandler returns the batch handler currently serving the batch route.
func (h *Host) BatchHandler() *batch.Handler {
	return h.batch.Load()
}

func (h *Host) initStore(cfg *config.Config) error {
	if h.store != nil {
		return nil
	}

	switch cfg.Storage.Type {
	case "sqlite":
		store, err := sqlite.NewProvider(cfg.Storage.SQLite.Path)
		if err != nil {
			return fmt.Errorf("create sqlite storage: %w", err)
		}
		h.store, h.ownsStore = store, true
	case "memory":
		h.store, h.ownsStore = memory.New(cfg.Storage.Memory.Capacity), true
	case "none":
		h.logger.Info("fault storage disabled")
	default:
		return fmt.Errorf("unsupported storage type %q", cfg.Storage.Type)
	}
	return nil
}

func (h *Host) initPipeline(cfg *config.Config) error {
	h.routes = dispatch.NewRoutes()

	dispatcher, err := dispatch.New(h.routes,
		dispatch.WithGlobalFilters(h.globalFilters(cfg)...),
		dispatch.WithExceptionService(h.newExceptionService(cfg)),
		dispatch.WithLogger(h.logger),
	)
	if err != nil {
		return err
	}
	h.dispatcher = dispatcher

	handler, err := h.newBatchHandler(cfg)
	if err != nil {
		return err
	}
	h.batch.Store(handler)

	if err := h.routes.HandleFunc(http.MethodPost, cfg.Batch.Path, h.executeBatch); err != nil {
		return fmt.Errorf("register batch route: %w", err)
	}
	if err := controlplane.NewServer(h.store).Register(h.routes); err != nil {
		return fmt.Errorf("register control plane: %w", err)
	}

	h.server = server.New(cfg.Server.Port, h.logger, cfg.Server.Timeout)
	h.server.Router.Handle("/*", dispatcher)
	return nil
}

// Routes returns the route table so embedders can register their own
// actions. It is nil before Build.
func (h *Host) Routes() *dispatch.Routes {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.routes
}

func (h *Host) globalFilters(cfg *config.Config) []ports.Filter {
	var filters []ports.Filter
	if cfg.Telemetry.Enabled {
		filters = append(filters, telemetry.NewTracingFilter(h.tracerProvider))
	}
	if len(cfg.Auth.APIKeys) > 0 {
		keys := make([]auth.APIKey, 0, len(cfg.Auth.APIKeys))
		for _, k := range cfg.Auth.APIKeys {
			keys = append(keys, auth.APIKey{Name: k.Name, KeyHash: k.KeyHash})
		}
		filters = append(filters, auth.NewAPIKeyFilter(auth.NewAuthenticator(keys)))
	}
	return filters
}

func (h *Host) newExceptionService(cfg *config.Config) *exception.Service {
	loggers := []ports.ExceptionLogger{exception.NewSlogLogger(h.logger, true)}
	if cfg.Telemetry.Enabled {
		loggers = append(loggers, telemetry.SpanLogger{})
	}
	if h.store != nil {
		loggers = append(loggers, storage.NewFaultLogger(h.store))
	}

	opts := []exception.Option{
		exception.WithLoggers(loggers...),
		exception.WithLogger(h.logger),
	}
	if cfg.Exceptions.ErrorResponses {
		opts = append(opts, exception.WithHandlers(exception.ErrorResponseHandler{IncludeDetail: cfg.Exceptions.IncludeDetail}))
	}
	if cfg.Exceptions.PropagateLoggerFailures {
		opts = append(opts, exception.WithLoggerFailurePolicy(exception.PropagateLoggerFailures))
	}
	return exception.NewService(opts...)
}

func (h *Host) newBatchHandler(cfg *config.Config) (*batch.Handler, error) {
	order, err := cfg.Batch.Order()
	if err != nil {
		return nil, err
	}

	handler, err := batch.NewHandler(h.dispatcher,
		batch.WithMediaTypes(cfg.Batch.MediaTypes...),
		batch.WithMaxParts(cfg.Batch.MaxParts),
		batch.WithMaxConcurrency(cfg.Batch.MaxConcurrency),
		batch.WithLogger(h.logger),
	)
	if err != nil {
		return nil, err
	}
	if err := handler.SetExecutionOrder(order); err != nil {
		return nil, err
	}
	return handler, nil
}

// executeBatch serves the batch route with the current batch handler.
func (h *Host) executeBatch(ctx context.Context, ec *domain.ExecutionContext) (*http.Response, error) {
	return h.batch.Load().Execute(ctx, ec)
}
