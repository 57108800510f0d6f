package batch

import "github.com/tjfontaine/actiondispatch/internal/core/domain"

// ErrOrderLocked is returned when the execution order is changed after the
// handler has served a request.
var ErrOrderLocked = &domain.InvalidStateError{Message: "batch: execution order cannot change after first use"}
