package exception

import (
	"errors"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
)

const maxDepth = 64

// Captured pairs an error with the call stack at the point it was first
// captured. Rethrowing extends the stack instead of replacing it, so the
// original frames always come first.
type Captured struct {
	err   error
	pcs   []uintptr
	state *captureState
}

type captureState struct {
	logged atomic.Bool
}

// Capture records the caller's stack for err. An error that is already a
// *Captured is returned unchanged, keeping its original stack.
func Capture(err error) *Captured {
	if err == nil {
		return nil
	}
	if c, ok := err.(*Captured); ok {
		return c
	}
	return &Captured{err: err, pcs: callers(3), state: &captureState{}}
}

// Rethrow returns err for propagation from the caller's position. The
// result's stack starts with the frames recorded at the original capture
// point followed by the frames of the rethrow site. The unwrap chain still
// reaches the original error.
func Rethrow(err error) error {
	if err == nil {
		return nil
	}
	c, ok := err.(*Captured)
	if !ok {
		return &Captured{err: err, pcs: callers(3), state: &captureState{}}
	}

	here := callers(3)
	pcs := make([]uintptr, 0, len(c.pcs)+len(here))
	pcs = append(pcs, c.pcs...)
	pcs = append(pcs, here...)
	return &Captured{err: c.err, pcs: pcs, state: c.state}
}

// join returns c with err attached. The stack and log-once state are shared.
func (c *Captured) join(err error) *Captured {
	return &Captured{err: errors.Join(c.err, err), pcs: c.pcs, state: c.state}
}

// Error returns the wrapped error's message.
func (c *Captured) Error() string { return c.err.Error() }

// Unwrap returns the original error.
func (c *Captured) Unwrap() error { return c.err }

// PCs returns the recorded program counters, outermost capture first.
func (c *Captured) PCs() []uintptr {
	out := make([]uintptr, len(c.pcs))
	copy(out, c.pcs)
	return out
}

// Frames resolves the recorded program counters.
func (c *Captured) Frames() []runtime.Frame {
	if len(c.pcs) == 0 {
		return nil
	}
	var out []runtime.Frame
	frames := runtime.CallersFrames(c.pcs)
	for {
		f, more := frames.Next()
		out = append(out, f)
		if !more {
			break
		}
	}
	return out
}

// StackTrace formats the recorded stack one frame per line.
func (c *Captured) StackTrace() string {
	var b strings.Builder
	for _, f := range c.Frames() {
		b.WriteString(f.Function)
		b.WriteString("\n\t")
		b.WriteString(f.File)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(f.Line))
		b.WriteByte('\n')
	}
	return b.String()
}

// markLogged reports whether this call is the first to mark the fault as
// logged. Rethrown copies share the marker.
func (c *Captured) markLogged() bool {
	return c.state.logged.CompareAndSwap(false, true)
}

// StackOf returns the captured stack trace of err, if any.
func StackOf(err error) string {
	var c *Captured
	if errors.As(err, &c) {
		return c.StackTrace()
	}
	return ""
}

func callers(skip int) []uintptr {
	pcs := make([]uintptr, maxDepth)
	n := runtime.Callers(skip, pcs)
	return pcs[:n]
}
