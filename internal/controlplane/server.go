// Package controlplane exposes operational endpoints (runtime stats and
// recorded faults) as dispatch actions.
package controlplane

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/tjfontaine/actiondispatch/internal/core/domain"
	"github.com/tjfontaine/actiondispatch/internal/core/ports"
	"github.com/tjfontaine/actiondispatch/internal/dispatch"
	"github.com/tjfontaine/actiondispatch/internal/filter"
)

// MaxFaultLimit caps the limit query parameter of the faults listing.
const MaxFaultLimit = 500

type Server struct {
	startTime time.Time
	store     ports.FaultStore
}

// NewServer creates the control plane. A nil store disables the faults
// endpoint.
func NewServer(store ports.FaultStore) *Server {
	return &Server{
		startTime: time.Now(),
		store:     store,
	}
}

// Register mounts the control plane actions on routes. filters apply to
// every control plane endpoint.
func (s *Server) Register(routes *dispatch.Routes, filters ...filter.Descriptor) error {
	if err := routes.HandleFunc(http.MethodGet, "/api/stats", s.handleStats, filters...); err != nil {
		return err
	}
	if s.store == nil {
		return nil
	}
	return routes.HandleFunc(http.MethodGet, "/api/faults", s.handleListFaults, filters...)
}

type StatsResponse struct {
	Uptime       string      `json:"uptime"`
	GoVersion    string      `json:"go_version"`
	NumGoroutine int         `json:"num_goroutine"`
	Memory       MemoryStats `json:"memory"`
}

type MemoryStats struct {
	Alloc      uint64 `json:"alloc"`
	TotalAlloc uint64 `json:"total_alloc"`
	Sys        uint64 `json:"sys"`
	NumGC      uint32 `json:"num_gc"`
}

func (s *Server) handleStats(ctx context.Context, ec *domain.ExecutionContext) (*http.Response, error) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	stats := StatsResponse{
		Uptime:       time.Since(s.startTime).String(),
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		Memory: MemoryStats{
			Alloc:      m.Alloc,
			TotalAlloc: m.TotalAlloc,
			Sys:        m.Sys,
			NumGC:      m.NumGC,
		},
	}

	return jsonResponse(ec.Request, stats)
}

// FaultListResponse is the response for listing faults
type FaultListResponse struct {
	Object string                `json:"object"`
	Data   []*domain.FaultRecord `json:"data"`
}

func (s *Server) handleListFaults(ctx context.Context, ec *domain.ExecutionContext) (*http.Response, error) {
	limit := 50
	if raw := ec.Request.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, domain.ErrInvalidRequest("The 'limit' query parameter must be a positive integer.").
				WithCode(domain.ErrorCodeInvalidValue)
		}
		limit = min(n, MaxFaultLimit)
	}

	faults, err := s.store.ListFaults(ctx, limit)
	if err != nil {
		return nil, err
	}
	if faults == nil {
		faults = []*domain.FaultRecord{}
	}

	return jsonResponse(ec.Request, FaultListResponse{Object: "list", Data: faults})
}

func jsonResponse(req *http.Request, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	resp := domain.NewResponse(req, http.StatusOK, body)
	resp.Header.Set("Content-Type", "application/json")
	return resp, nil
}
