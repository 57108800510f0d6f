// Package dispatch is the single entry point that executes one request and
// produces its response.
//
// A Server routes the request through its Routes table, resolves the
// endpoint's filter descriptors together with the global ones, and runs
// them around the endpoint's action. Batch sub-requests re-enter the same
// Server through its ports.Dispatcher implementation.
package dispatch
