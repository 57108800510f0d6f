// Package exception provides the exception handling service: a composite
// logger, an ordered handler chain and a last-chance rethrow that keeps the
// original stack.
//
// Faults are captured once (Capture) and carried as *Captured values so that
// every later rethrow (Rethrow) extends, rather than replaces, the recorded
// stack. Tests and callers should assert the unwrap chain with errors.Is or
// errors.As, not the message text.
package exception
