package dispatch

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/actiondispatch/internal/batch"
	"github.com/tjfontaine/actiondispatch/internal/core/domain"
	"github.com/tjfontaine/actiondispatch/internal/core/ports"
	"github.com/tjfontaine/actiondispatch/internal/exception"
	"github.com/tjfontaine/actiondispatch/internal/filter"
	"github.com/tjfontaine/actiondispatch/internal/server"
)

// recorder collects pipeline events.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return strings.Join(r.events, ",")
}

// recordingFilter is both an authorization and an action filter.
type recordingFilter struct {
	name string
	rec  *recorder
}

func (f *recordingFilter) AllowMultiple() bool { return true }

func (f *recordingFilter) ExecuteAuthorization(ctx context.Context, ec *domain.ExecutionContext, next ports.Continuation) (*http.Response, error) {
	f.rec.add(f.name + ".auth")
	return next(ctx)
}

func (f *recordingFilter) ExecuteAction(ctx context.Context, ec *domain.ExecutionContext, next ports.Continuation) (*http.Response, error) {
	f.rec.add(f.name + ".before")
	resp, err := next(ctx)
	f.rec.add(f.name + ".after")
	return resp, err
}

// countingLogger counts logged faults.
type countingLogger struct {
	count atomic.Int32
	last  atomic.Value
}

func (l *countingLogger) Log(ctx context.Context, ec *domain.ExceptionContext) error {
	l.count.Add(1)
	l.last.Store(ec.Err)
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, logger *countingLogger, opts ...Option) (*Server, *Routes) {
	t.Helper()
	routes := NewRoutes()
	svcOpts := []exception.Option{exception.WithLogger(quietLogger())}
	if logger != nil {
		svcOpts = append(svcOpts, exception.WithLoggers(logger))
	}
	opts = append([]Option{
		WithLogger(quietLogger()),
		WithExceptionService(exception.NewService(svcOpts...)),
	}, opts...)
	s, err := New(routes, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return s, routes
}

func textResponse(req *http.Request, status int, body string) *http.Response {
	resp := domain.NewResponse(req, status, []byte(body))
	resp.Header.Set("Content-Type", "text/plain")
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestServer_DispatchRoutesWithParams(t *testing.T) {
	s, routes := newTestServer(t, nil)
	routes.HandleFunc(http.MethodGet, "/values/{id}", func(ctx context.Context, ec *domain.ExecutionContext) (*http.Response, error) {
		return textResponse(ec.Request, http.StatusOK, "value "+chi.URLParam(ec.Request, "id")), nil
	})

	req := httptest.NewRequest(http.MethodGet, "/values/42", nil)
	resp, err := s.Dispatch(req.Context(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := readBody(t, resp); got != "value 42" {
		t.Errorf("body = %q, want %q", got, "value 42")
	}
}

func TestServer_DispatchUnmatched(t *testing.T) {
	s, routes := newTestServer(t, nil)
	routes.HandleFunc(http.MethodGet, "/values", func(ctx context.Context, ec *domain.ExecutionContext) (*http.Response, error) {
		return textResponse(ec.Request, http.StatusOK, ""), nil
	})

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantAllow  string
	}{
		{"not found", http.MethodGet, "/missing", http.StatusNotFound, ""},
		{"method not allowed", http.MethodDelete, "/values", http.StatusMethodNotAllowed, http.MethodGet},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			resp, err := s.Dispatch(req.Context(), req)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if resp.Header.Get("Allow") != tt.wantAllow {
				t.Errorf("Allow = %q, want %q", resp.Header.Get("Allow"), tt.wantAllow)
			}
		})
	}
}

func TestServer_PipelineOrder(t *testing.T) {
	rec := &recorder{}
	s, routes := newTestServer(t, nil, WithGlobalFilters(&recordingFilter{name: "global", rec: rec}))
	routes.HandleFunc(http.MethodGet, "/x",
		func(ctx context.Context, ec *domain.ExecutionContext) (*http.Response, error) {
			rec.add("action")
			return textResponse(ec.Request, http.StatusOK, ""), nil
		},
		filter.Descriptor{Filter: &recordingFilter{name: "endpoint", rec: rec}, Scope: domain.ScopeAction},
	)

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if _, err := s.Dispatch(req.Context(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "global.auth,endpoint.auth,global.before,endpoint.before,action,endpoint.after,global.after"
	if rec.String() != want {
		t.Errorf("events = %s\nwant     %s", rec, want)
	}
}

func TestServer_OverrideRemovesGlobalFilters(t *testing.T) {
	rec := &recorder{}
	s, routes := newTestServer(t, nil, WithGlobalFilters(&recordingFilter{name: "global", rec: rec}))
	override := filter.Authorize(filter.AuthorizerFunc(func(ctx context.Context, ec *domain.ExecutionContext) error {
		rec.add("anonymous")
		return nil
	}))
	routes.HandleFunc(http.MethodGet, "/public",
		func(ctx context.Context, ec *domain.ExecutionContext) (*http.Response, error) {
			return textResponse(ec.Request, http.StatusOK, ""), nil
		},
		filter.Descriptor{Filter: override, Scope: domain.ScopeAction, Overrides: domain.KindAuthorization},
	)

	req := httptest.NewRequest(http.MethodGet, "/public", nil)
	if _, err := s.Dispatch(req.Context(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := "anonymous,global.before,global.after"; rec.String() != want {
		t.Errorf("events = %s, want %s", rec, want)
	}
}

func TestServer_APIErrorIsResponse(t *testing.T) {
	logger := &countingLogger{}
	s, routes := newTestServer(t, logger)
	routes.HandleFunc(http.MethodGet, "/x", func(ctx context.Context, ec *domain.ExecutionContext) (*http.Response, error) {
		return nil, domain.ErrNotFound("no such value")
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	resp, err := s.Dispatch(req.Context(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
	if logger.count.Load() != 0 {
		t.Error("client errors must not be logged")
	}
}

func TestServer_UnhandledFaultIsRethrown(t *testing.T) {
	logger := &countingLogger{}
	s, routes := newTestServer(t, logger)
	boom := errors.New("boom")
	routes.HandleFunc(http.MethodGet, "/x", func(ctx context.Context, ec *domain.ExecutionContext) (*http.Response, error) {
		return nil, boom
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	resp, err := s.Dispatch(req.Context(), req)
	if resp != nil {
		t.Error("expected no response")
	}
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	var captured *exception.Captured
	if !errors.As(err, &captured) || len(captured.PCs()) == 0 {
		t.Error("rethrown fault should carry its captured stack")
	}
	if logger.count.Load() != 1 {
		t.Errorf("logger calls = %d, want 1", logger.count.Load())
	}
}

func TestServer_ExceptionFilterRecovers(t *testing.T) {
	logger := &countingLogger{}
	recoverFilter := filter.ExceptionFunc(func(ctx context.Context, fc *domain.FaultContext) error {
		fc.Response = textResponse(fc.ActionContext.Request, http.StatusServiceUnavailable, "try later")
		return nil
	})
	s, routes := newTestServer(t, logger, WithGlobalFilters(recoverFilter))
	routes.HandleFunc(http.MethodGet, "/x", func(ctx context.Context, ec *domain.ExecutionContext) (*http.Response, error) {
		return nil, errors.New("backend down")
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	resp, err := s.Dispatch(req.Context(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
	if logger.count.Load() != 1 {
		t.Errorf("recovered faults are still logged once, got %d", logger.count.Load())
	}
}

func TestServer_PropagatedLoggerFailureKeepsFault(t *testing.T) {
	tests := []struct {
		name       string
		handlers   []ports.ExceptionHandler
		wantStatus int
	}{
		{name: "rethrown", wantStatus: 0},
		{name: "handled", handlers: []ports.ExceptionHandler{exception.ErrorResponseHandler{}}, wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			boom := errors.New("boom")
			diskFull := errors.New("disk full")
			var filterSaw error
			observe := filter.ExceptionFunc(func(ctx context.Context, fc *domain.FaultContext) error {
				filterSaw = fc.Err
				return nil
			})

			routes := NewRoutes()
			s, err := New(routes,
				WithLogger(quietLogger()),
				WithGlobalFilters(observe),
				WithExceptionService(exception.NewService(
					exception.WithLoggers(ports.ExceptionLoggerFunc(func(ctx context.Context, ec *domain.ExceptionContext) error {
						return diskFull
					})),
					exception.WithHandlers(tt.handlers...),
					exception.WithLoggerFailurePolicy(exception.PropagateLoggerFailures),
					exception.WithLogger(quietLogger()),
				)),
			)
			if err != nil {
				t.Fatal(err)
			}
			routes.HandleFunc(http.MethodGet, "/x", func(ctx context.Context, ec *domain.ExecutionContext) (*http.Response, error) {
				return nil, boom
			})

			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			resp, err := s.Dispatch(req.Context(), req)

			if !errors.Is(filterSaw, boom) {
				t.Errorf("exception filter saw %v, want the original fault", filterSaw)
			}
			if !errors.Is(filterSaw, diskFull) {
				t.Errorf("exception filter saw %v, want the logger failure attached", filterSaw)
			}
			if tt.wantStatus == 0 {
				if resp != nil {
					t.Error("expected no response")
				}
				if !errors.Is(err, boom) {
					t.Fatalf("expected boom, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestServer_PanicBecomesFault(t *testing.T) {
	logger := &countingLogger{}
	routes := NewRoutes()
	s, _ := New(routes,
		WithLogger(quietLogger()),
		WithExceptionService(exception.NewService(
			exception.WithLoggers(logger),
			exception.WithHandlers(exception.ErrorResponseHandler{}),
			exception.WithLogger(quietLogger()),
		)),
	)
	routes.HandleFunc(http.MethodGet, "/x", func(ctx context.Context, ec *domain.ExecutionContext) (*http.Response, error) {
		panic("nil map")
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	resp, err := s.Dispatch(req.Context(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
	last, _ := logger.last.Load().(error)
	var pe *domain.PanicError
	if !errors.As(last, &pe) {
		t.Errorf("logged fault = %v, want PanicError", last)
	}
}

func TestServer_CancellationBypassesLogging(t *testing.T) {
	logger := &countingLogger{}
	s, routes := newTestServer(t, logger)
	routes.HandleFunc(http.MethodGet, "/x", func(ctx context.Context, ec *domain.ExecutionContext) (*http.Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/x", nil).WithContext(ctx)
	_, err := s.Dispatch(ctx, req)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if logger.count.Load() != 0 {
		t.Error("cancellation must not be logged")
	}
}

func TestServer_ServeHTTP(t *testing.T) {
	t.Run("writes response and drains registry", func(t *testing.T) {
		s, routes := newTestServer(t, nil)
		var released atomic.Bool
		routes.HandleFunc(http.MethodGet, "/x", func(ctx context.Context, ec *domain.ExecutionContext) (*http.Response, error) {
			domain.RegisterForDisposal(ec.Request, domain.CloserFunc(func() error {
				released.Store(true)
				return nil
			}))
			resp := textResponse(ec.Request, http.StatusCreated, "made")
			resp.Header.Set("X-Custom", "yes")
			return resp, nil
		})

		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

		if rec.Code != http.StatusCreated || rec.Body.String() != "made" {
			t.Errorf("got %d %q, want 201 made", rec.Code, rec.Body.String())
		}
		if rec.Header().Get("X-Custom") != "yes" {
			t.Error("response header not copied")
		}
		if !released.Load() {
			t.Error("request resources not released")
		}
	})

	t.Run("unhandled fault is a generic 500", func(t *testing.T) {
		logger := &countingLogger{}
		s, routes := newTestServer(t, logger)
		routes.HandleFunc(http.MethodGet, "/x", func(ctx context.Context, ec *domain.ExecutionContext) (*http.Response, error) {
			return nil, errors.New("connection string leaked")
		})

		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, want 500", rec.Code)
		}
		if strings.Contains(rec.Body.String(), "leaked") {
			t.Error("fault detail leaked to the client")
		}
		if logger.count.Load() != 1 {
			t.Errorf("logger calls = %d, want 1", logger.count.Load())
		}
	})

	t.Run("canceled request", func(t *testing.T) {
		s, routes := newTestServer(t, nil)
		routes.HandleFunc(http.MethodGet, "/x", func(ctx context.Context, ec *domain.ExecutionContext) (*http.Response, error) {
			return nil, context.Canceled
		})

		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
		if rec.Code != statusClientClosedRequest {
			t.Errorf("status = %d, want %d", rec.Code, statusClientClosedRequest)
		}
		if rec.Body.Len() != 0 {
			t.Error("canceled requests get no body")
		}
	})
}

// batchEnvelope builds a multipart/mixed body of raw request messages.
func batchEnvelope(t *testing.T, messages ...string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, msg := range messages {
		h := textproto.MIMEHeader{}
		h.Set("Content-Type", "application/http; msgtype=request")
		pw, err := mw.CreatePart(h)
		if err != nil {
			t.Fatal(err)
		}
		io.WriteString(pw, msg)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "http://example.com/api/$batch", &buf)
	req.Header.Set("Content-Type", mime.FormatMediaType("multipart/mixed", map[string]string{"boundary": mw.Boundary()}))
	return req
}

func batchParts(t *testing.T, rec *httptest.ResponseRecorder) []*http.Response {
	t.Helper()
	_, params, err := mime.ParseMediaType(rec.Header().Get("Content-Type"))
	if err != nil {
		t.Fatalf("envelope content type: %v", err)
	}
	var out []*http.Response
	mr := multipart.NewReader(rec.Body, params["boundary"])
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatal(err)
		}
		resp, err := http.ReadResponse(bufio.NewReader(part), nil)
		if err != nil {
			t.Fatal(err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body = io.NopCloser(bytes.NewReader(body))
		out = append(out, resp)
	}
}

func mountBatch(t *testing.T, s *Server, routes *Routes) {
	t.Helper()
	h, err := batch.NewHandler(s, batch.WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}
	if err := routes.Handle(http.MethodPost, "/api/$batch", &Endpoint{Action: h}); err != nil {
		t.Fatal(err)
	}
}

func TestServer_ServeHTTPTimeoutIsCancellation(t *testing.T) {
	logger := &countingLogger{}
	s, routes := newTestServer(t, logger)
	routes.HandleFunc(http.MethodGet, "/slow", func(ctx context.Context, ec *domain.ExecutionContext) (*http.Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	rec := httptest.NewRecorder()
	server.TimeoutMiddleware(10*time.Millisecond)(s).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/slow", nil))

	if rec.Code != statusClientClosedRequest {
		t.Errorf("status = %d, want %d", rec.Code, statusClientClosedRequest)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("expected empty body, got %q", rec.Body.String())
	}
	if logger.count.Load() != 0 {
		t.Error("deadline expiry must not be logged as a fault")
	}
}

func TestServer_Batch(t *testing.T) {
	s, routes := newTestServer(t, nil)
	mountBatch(t, s, routes)
	routes.HandleFunc(http.MethodGet, "/values/{id}", func(ctx context.Context, ec *domain.ExecutionContext) (*http.Response, error) {
		if !domain.IsBatchSubRequest(ec.Request) {
			return nil, errors.New("expected a batch sub-request")
		}
		return textResponse(ec.Request, http.StatusOK, "value "+chi.URLParam(ec.Request, "id")), nil
	})

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, batchEnvelope(t,
		"GET /values/1 HTTP/1.1\r\n\r\n",
		"GET /missing HTTP/1.1\r\n\r\n",
		"GET /values/2 HTTP/1.1\r\n\r\n",
	))

	if rec.Code != http.StatusOK {
		t.Fatalf("envelope status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	parts := batchParts(t, rec)
	if len(parts) != 3 {
		t.Fatalf("got %d parts, want 3", len(parts))
	}
	wantStatus := []int{http.StatusOK, http.StatusNotFound, http.StatusOK}
	for i, want := range wantStatus {
		if parts[i].StatusCode != want {
			t.Errorf("part %d status = %d, want %d", i, parts[i].StatusCode, want)
		}
	}
	if body := readBody(t, parts[2]); body != "value 2" {
		t.Errorf("part 2 body = %q, want %q", body, "value 2")
	}
}

func TestServer_BatchValidationIsClientError(t *testing.T) {
	s, routes := newTestServer(t, nil)
	mountBatch(t, s, routes)

	req := httptest.NewRequest(http.MethodPost, "/api/$batch", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "text/json")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "text/json") {
		t.Errorf("error should name the media type: %s", rec.Body.String())
	}
}

func TestServer_BatchSubRequestFaultLoggedOnce(t *testing.T) {
	logger := &countingLogger{}
	s, routes := newTestServer(t, logger)
	mountBatch(t, s, routes)
	routes.HandleFunc(http.MethodGet, "/fail", func(ctx context.Context, ec *domain.ExecutionContext) (*http.Response, error) {
		return nil, errors.New("sub-request failed")
	})

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, batchEnvelope(t, "GET /fail HTTP/1.1\r\n\r\n"))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if logger.count.Load() != 1 {
		t.Errorf("logger calls = %d, want 1 across sub-request and envelope", logger.count.Load())
	}
}

func TestServer_BatchSubRequestFaultAsItemResponse(t *testing.T) {
	routes := NewRoutes()
	s, _ := New(routes,
		WithLogger(quietLogger()),
		WithExceptionService(exception.NewService(
			exception.WithHandlers(exception.ErrorResponseHandler{}),
			exception.WithLogger(quietLogger()),
		)),
	)
	mountBatch(t, s, routes)
	routes.HandleFunc(http.MethodGet, "/ok", func(ctx context.Context, ec *domain.ExecutionContext) (*http.Response, error) {
		return textResponse(ec.Request, http.StatusOK, "ok"), nil
	})
	routes.HandleFunc(http.MethodGet, "/fail", func(ctx context.Context, ec *domain.ExecutionContext) (*http.Response, error) {
		return nil, errors.New("sub-request failed")
	})

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, batchEnvelope(t, "GET /ok HTTP/1.1\r\n\r\n", "GET /fail HTTP/1.1\r\n\r\n"))

	if rec.Code != http.StatusOK {
		t.Fatalf("envelope status = %d, want 200", rec.Code)
	}
	parts := batchParts(t, rec)
	if len(parts) != 2 || parts[0].StatusCode != http.StatusOK || parts[1].StatusCode != http.StatusInternalServerError {
		t.Errorf("unexpected part statuses")
	}
}

func TestRoutes_HandleValidation(t *testing.T) {
	routes := NewRoutes()
	var argErr *domain.ArgumentError
	if err := routes.Handle(http.MethodGet, "/x", &Endpoint{}); !errors.As(err, &argErr) {
		t.Errorf("missing action: got %v, want ArgumentError", err)
	}
	err := routes.HandleFunc("BREW", "/x", func(ctx context.Context, ec *domain.ExecutionContext) (*http.Response, error) {
		return nil, nil
	})
	if err == nil {
		t.Error("expected error for unsupported method")
	}
}

func TestRoutes_AnyMethod(t *testing.T) {
	s, routes := newTestServer(t, nil)
	routes.Handle("*", "/echo", &Endpoint{Action: ports.ActionFunc(func(ctx context.Context, ec *domain.ExecutionContext) (*http.Response, error) {
		return textResponse(ec.Request, http.StatusOK, ec.Request.Method), nil
	})})

	for _, m := range []string{http.MethodGet, http.MethodPut} {
		req := httptest.NewRequest(m, "/echo", nil)
		resp, err := s.Dispatch(req.Context(), req)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", m, err)
		}
		if got := readBody(t, resp); got != m {
			t.Errorf("%s: body = %q", m, got)
		}
	}
}
