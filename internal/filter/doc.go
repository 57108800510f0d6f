// Package filter provides the continuation filter executor.
//
// Filters of one kind run as a call stack around a terminal continuation:
// filter[0] wraps filter[1] wraps ... wraps the terminal. Pre-logic therefore
// runs outer-to-inner and post-logic inner-to-outer.
//
// # Filter Kinds
//
// Every kind is adapted to a ports.Link before execution, so the executor
// only depends on that interface:
//   - Authorization: may short-circuit by returning a response without
//     invoking the continuation.
//   - Action: has before/after hooks (see ActionAttribute). After hooks see a
//     settled outcome and may replace it; cancellations bypass them.
//   - Exception: offered faults only, never cancellations. A filter recovers
//     by setting a response on the fault context.
//
// # Suspension Points
//
// The chain only blocks inside filter hooks, in the continuation and in the
// terminal action. All of them receive the caller's context and must honor
// its cancellation.
//
// # Resolution
//
// Resolve turns the configured descriptors into per-kind lists, applying
// override markers and the allow-multiple policy. Discovery and ordering of
// descriptors happen elsewhere.
package filter
