package domain

import (
	"net/http"
	"time"
)

// CatchBlock names the place a fault was caught. Loggers and handlers use it
// to tell the action pipeline apart from the host.
type CatchBlock struct {
	Name string
	// IsTopLevel marks catch blocks with no outer pipeline to fall back to.
	IsTopLevel bool
}

// Well-known catch blocks.
var (
	CatchBlockExceptionFilter = CatchBlock{Name: "ExceptionFilter"}
	CatchBlockDispatcher      = CatchBlock{Name: "Dispatcher.Dispatch"}
	CatchBlockBatchHandler    = CatchBlock{Name: "BatchHandler.Handle"}
	CatchBlockHost            = CatchBlock{Name: "Host.ServeHTTP", IsTopLevel: true}
)

// ExceptionContext describes a fault that escaped a pipeline stage.
type ExceptionContext struct {
	Err           error
	CatchBlock    CatchBlock
	Request       *http.Request
	ActionContext *ExecutionContext
	// Response is the response in flight when the fault occurred, if any.
	Response *http.Response
}

// ExceptionHandlerContext is shared by the registered exception handlers. A
// handler resolves the fault by setting Result; later handlers are skipped.
type ExceptionHandlerContext struct {
	*ExceptionContext
	Result *http.Response
}

// FaultRecord is the persisted form of a logged fault.
type FaultRecord struct {
	ID         string    `json:"id" db:"id"`
	RequestID  string    `json:"request_id,omitempty" db:"request_id"`
	Method     string    `json:"method,omitempty" db:"method"`
	URL        string    `json:"url,omitempty" db:"url"`
	CatchBlock string    `json:"catch_block" db:"catch_block"`
	SubRequest bool      `json:"sub_request" db:"sub_request"`
	Message    string    `json:"message" db:"message"`
	Stack      string    `json:"stack,omitempty" db:"stack"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
