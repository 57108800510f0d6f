package domain

import (
	"net/http"
)

// ExecutionContext is the state shared by the filters wrapping one request.
// At pipeline exit exactly one of Response and Err is authoritative.
type ExecutionContext struct {
	// Request is the request being executed.
	Request *http.Request

	// Response is the in-flight response. Authorization and action filters
	// short-circuit the chain by setting it before the continuation runs.
	Response *http.Response

	// Err is the fault observed so far, if any.
	Err error

	// Properties is the correlation map copied from the request.
	Properties *Properties
}

// NewExecutionContext builds a context for req, attaching the request's
// property map (allocating one if the request has none).
func NewExecutionContext(req *http.Request) *ExecutionContext {
	props := PropertiesFrom(req.Context())
	if props == nil {
		props = NewProperties()
	}
	return &ExecutionContext{Request: req, Properties: props}
}

// ExecutedContext is the settled outcome handed to an action filter's after
// hook. Setting one side clears the other.
type ExecutedContext struct {
	ActionContext *ExecutionContext

	response *http.Response
	err      error
}

// NewExecutedContext records the outcome of a continuation.
func NewExecutedContext(ec *ExecutionContext, resp *http.Response, err error) *ExecutedContext {
	return &ExecutedContext{ActionContext: ec, response: resp, err: err}
}

// Response returns the current response, or nil.
func (c *ExecutedContext) Response() *http.Response { return c.response }

// Err returns the current fault, or nil.
func (c *ExecutedContext) Err() error { return c.err }

// SetResponse replaces the outcome with resp and clears any fault.
func (c *ExecutedContext) SetResponse(resp *http.Response) {
	c.response = resp
	c.err = nil
}

// SetErr replaces the outcome with err and clears any response.
func (c *ExecutedContext) SetErr(err error) {
	c.err = err
	c.response = nil
}

// FaultContext is handed to exception filters. A filter recovers by setting
// Response; otherwise Err keeps propagating.
type FaultContext struct {
	ActionContext *ExecutionContext
	Err           error
	Response      *http.Response
}
