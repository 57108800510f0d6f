// Package storage persists the faults recorded by the exception service.
package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tjfontaine/actiondispatch/internal/core/domain"
	"github.com/tjfontaine/actiondispatch/internal/core/ports"
	"github.com/tjfontaine/actiondispatch/internal/exception"
)

// Re-export storage types from core for callers outside the core packages.
type (
	FaultStore  = ports.FaultStore
	FaultRecord = domain.FaultRecord
)

// FaultLogger is an exception logger that saves every fault to a store.
type FaultLogger struct {
	store ports.FaultStore
	now   func() time.Time
}

// NewFaultLogger creates a FaultLogger over store.
func NewFaultLogger(store ports.FaultStore) *FaultLogger {
	return &FaultLogger{store: store, now: time.Now}
}

// Log implements ports.ExceptionLogger. The record is saved even if the
// request's context has been canceled since the fault occurred.
func (l *FaultLogger) Log(ctx context.Context, ec *domain.ExceptionContext) error {
	return l.store.SaveFault(context.WithoutCancel(ctx), NewFaultRecord(ec, l.now()))
}

// NewFaultRecord builds the persisted form of ec.
func NewFaultRecord(ec *domain.ExceptionContext, at time.Time) *domain.FaultRecord {
	rec := &domain.FaultRecord{
		ID:         uuid.NewString(),
		CatchBlock: ec.CatchBlock.Name,
		Message:    ec.Err.Error(),
		Stack:      exception.StackOf(ec.Err),
		CreatedAt:  at.UTC(),
	}
	if req := ec.Request; req != nil {
		rec.RequestID = domain.RequestID(req)
		rec.Method = req.Method
		rec.URL = req.URL.String()
		rec.SubRequest = domain.IsBatchSubRequest(req)
	}
	return rec
}
