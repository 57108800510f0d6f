package runtime

import (
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/actiondispatch/internal/adapters/config/file"
	"github.com/tjfontaine/actiondispatch/internal/core/ports"
)

// Option is a functional option for configuring a Host.
type Option func(*Host) error

// WithFileConfig uses file-based configuration with hot-reload (default).
// The path should point to a config.yaml file that will be watched for changes.
func WithFileConfig(path string) Option {
	return func(h *Host) error {
		provider, err := file.NewProvider(path, h.logger)
		if err != nil {
			return fmt.Errorf("create file config provider: %w", err)
		}
		h.config = provider
		return nil
	}
}

// WithConfigProvider sets a custom config provider.
func WithConfigProvider(provider ports.ConfigProvider) Option {
	return func(h *Host) error {
		h.config = provider
		return nil
	}
}

// WithFaultStore sets the fault store, overriding storage.type. The host
// does not close a store it did not open.
func WithFaultStore(store ports.FaultStore) Option {
	return func(h *Host) error {
		h.store = store
		return nil
	}
}

// WithTracerProvider sets the provider used by the tracing filter. The
// global provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(h *Host) error {
		h.tracerProvider = tp
		return nil
	}
}

// WithLogger sets a custom logger. Apply it before WithFileConfig so the
// config provider logs through it too.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Host) error {
		if logger != nil {
			h.logger = logger
		}
		return nil
	}
}
