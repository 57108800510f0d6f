package domain

import (
	"fmt"
	"strings"
)

// ExecutionOrder governs how a batch handler schedules its sub-requests.
type ExecutionOrder int

const (
	// Sequential dispatches sub-requests one at a time in envelope order.
	Sequential ExecutionOrder = iota
	// NonSequential dispatches all sub-requests concurrently.
	NonSequential
)

// String returns the configuration spelling of the order.
func (o ExecutionOrder) String() string {
	switch o {
	case Sequential:
		return "sequential"
	case NonSequential:
		return "non_sequential"
	default:
		return fmt.Sprintf("ExecutionOrder(%d)", int(o))
	}
}

// Validate returns an *InvalidEnumError when o is out of range.
func (o ExecutionOrder) Validate() error {
	if o < Sequential || o > NonSequential {
		return &InvalidEnumError{Name: "order", Value: int(o), Type: "ExecutionOrder"}
	}
	return nil
}

// ParseExecutionOrder parses the configuration spelling of an order.
// The empty string selects Sequential.
func ParseExecutionOrder(s string) (ExecutionOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sequential":
		return Sequential, nil
	case "non_sequential", "nonsequential", "non-sequential", "parallel":
		return NonSequential, nil
	default:
		return 0, fmt.Errorf("invalid execution order %q (must be 'sequential' or 'non_sequential')", s)
	}
}

// FilterKind identifies the stage a filter participates in. Kinds are bit
// flags so a single filter may implement several.
type FilterKind uint8

const (
	KindAuthorization FilterKind = 1 << iota
	KindAction
	KindException
)

// Has reports whether k includes every bit of other.
func (k FilterKind) Has(other FilterKind) bool {
	return other != 0 && k&other == other
}

func (k FilterKind) String() string {
	var parts []string
	if k&KindAuthorization != 0 {
		parts = append(parts, "authorization")
	}
	if k&KindAction != 0 {
		parts = append(parts, "action")
	}
	if k&KindException != 0 {
		parts = append(parts, "exception")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// FilterScope is the configuration level a filter was registered at.
// Higher scopes are more specific.
type FilterScope int

const (
	ScopeGlobal FilterScope = iota
	ScopeController
	ScopeAction
)

func (s FilterScope) String() string {
	switch s {
	case ScopeGlobal:
		return "global"
	case ScopeController:
		return "controller"
	case ScopeAction:
		return "action"
	default:
		return fmt.Sprintf("FilterScope(%d)", int(s))
	}
}
