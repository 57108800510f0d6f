// Package dispatch provides the public API for embedding the action
// dispatcher. This is the stable API for external consumers.
package dispatch

import (
	"github.com/tjfontaine/actiondispatch/internal/core/domain"
	"github.com/tjfontaine/actiondispatch/internal/core/ports"
	"github.com/tjfontaine/actiondispatch/internal/runtime"
)

// Host is the main entry point for running the dispatcher.
// See internal/runtime.Host for full documentation.
type Host = runtime.Host

// Option is a functional option for configuring a Host.
type Option = runtime.Option

// Types needed to register actions and filters on a Host's routes.
type (
	Action           = ports.Action
	ActionFunc       = ports.ActionFunc
	Dispatcher       = ports.Dispatcher
	ExecutionContext = domain.ExecutionContext
	ExecutionOrder   = domain.ExecutionOrder
)

// Execution orders.
const (
	Sequential    = domain.Sequential
	NonSequential = domain.NonSequential
)

// New creates a new Host with the given options.
// Example:
//
//	host, err := dispatch.New(
//	    dispatch.WithFileConfig("config.yaml"),
//	)
var New = runtime.New

// Configuration options
var (
	WithFileConfig     = runtime.WithFileConfig
	WithConfigProvider = runtime.WithConfigProvider
	WithFaultStore     = runtime.WithFaultStore
	WithTracerProvider = runtime.WithTracerProvider
	WithLogger         = runtime.WithLogger
)
