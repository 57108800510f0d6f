package filter

import (
	"context"
	"net/http"

	"github.com/tjfontaine/actiondispatch/internal/core/domain"
	"github.com/tjfontaine/actiondispatch/internal/core/ports"
)

// Authorizer is the hook form of an authorization filter. OnAuthorization
// short-circuits the chain by setting ec.Response.
type Authorizer interface {
	OnAuthorization(ctx context.Context, ec *domain.ExecutionContext) error
}

// AuthorizationAttribute runs an Authorizer as an authorization filter.
type AuthorizationAttribute struct {
	Authorizer Authorizer
	Multiple   bool
}

// Authorize wraps a as a single-instance authorization filter.
func Authorize(a Authorizer) *AuthorizationAttribute {
	return &AuthorizationAttribute{Authorizer: a}
}

func (a *AuthorizationAttribute) AllowMultiple() bool { return a.Multiple }

// Inner returns the wrapped hook; Resolve uses its type for duplicate detection.
func (a *AuthorizationAttribute) Inner() any { return a.Authorizer }

func (a *AuthorizationAttribute) ExecuteAuthorization(ctx context.Context, ec *domain.ExecutionContext, next ports.Continuation) (*http.Response, error) {
	if err := a.Authorizer.OnAuthorization(ctx, ec); err != nil {
		return nil, err
	}
	if ec.Response != nil {
		return ec.Response, nil
	}
	return next(ctx)
}

// ActionHooks is the hook form of an action filter.
//
// OnActionExecuting may short-circuit by setting ec.Response; neither the
// continuation nor OnActionExecuted runs in that case. OnActionExecuted sees
// the settled outcome and may replace either side of it. An error returned
// from OnActionExecuted replaces any prior outcome.
type ActionHooks interface {
	OnActionExecuting(ctx context.Context, ec *domain.ExecutionContext) error
	OnActionExecuted(ctx context.Context, executed *domain.ExecutedContext) error
}

// ActionAttribute runs ActionHooks as an action filter.
type ActionAttribute struct {
	Hooks    ActionHooks
	Multiple bool
}

// Around wraps h as a single-instance action filter.
func Around(h ActionHooks) *ActionAttribute {
	return &ActionAttribute{Hooks: h}
}

func (a *ActionAttribute) AllowMultiple() bool { return a.Multiple }

// Inner returns the wrapped hooks.
func (a *ActionAttribute) Inner() any { return a.Hooks }

func (a *ActionAttribute) ExecuteAction(ctx context.Context, ec *domain.ExecutionContext, next ports.Continuation) (*http.Response, error) {
	if err := a.Hooks.OnActionExecuting(ctx, ec); err != nil {
		return nil, err
	}
	if ec.Response != nil {
		return ec.Response, nil
	}

	resp, err := next(ctx)
	if err != nil && domain.IsCanceled(err) {
		return nil, err
	}

	executed := domain.NewExecutedContext(ec, resp, err)
	if herr := a.Hooks.OnActionExecuted(ctx, executed); herr != nil {
		ec.Err = herr
		return nil, herr
	}

	if r := executed.Response(); r != nil {
		ec.Response, ec.Err = r, nil
		return r, nil
	}
	if e := executed.Err(); e != nil {
		ec.Err = e
		return nil, e
	}
	return nil, ErrNoOutcome
}

// ActionFuncs builds ActionHooks from plain functions. Nil functions are no-ops.
type ActionFuncs struct {
	Executing func(ctx context.Context, ec *domain.ExecutionContext) error
	Executed  func(ctx context.Context, executed *domain.ExecutedContext) error
}

func (f ActionFuncs) OnActionExecuting(ctx context.Context, ec *domain.ExecutionContext) error {
	if f.Executing == nil {
		return nil
	}
	return f.Executing(ctx, ec)
}

func (f ActionFuncs) OnActionExecuted(ctx context.Context, executed *domain.ExecutedContext) error {
	if f.Executed == nil {
		return nil
	}
	return f.Executed(ctx, executed)
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(ctx context.Context, ec *domain.ExecutionContext) error

func (f AuthorizerFunc) OnAuthorization(ctx context.Context, ec *domain.ExecutionContext) error {
	return f(ctx, ec)
}

// ExceptionFunc adapts a function to ports.ExceptionFilter. Multiple
// instances may coexist.
type ExceptionFunc func(ctx context.Context, fc *domain.FaultContext) error

func (f ExceptionFunc) AllowMultiple() bool { return true }

func (f ExceptionFunc) ExecuteException(ctx context.Context, fc *domain.FaultContext) error {
	return f(ctx, fc)
}
