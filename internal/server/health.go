package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teemow/autoreplier/internal/responder"
)

// Health status constants for health check responses.
const (
	healthStatusOK           = "ok"
	healthStatusNotReady     = "not ready"
	healthStatusStale        = "stale"
	healthStatusShuttingDown = "shutting down"
)

// ReadinessWindow returns how long the last successful cycle stays fresh
// for a given maximum poll interval.
func ReadinessWindow(maxInterval time.Duration) time.Duration {
	return 3 * maxInterval
}

// HealthChecker tracks engine cycles and serves the Kubernetes probes.
type HealthChecker struct {
	startTime  time.Time
	staleAfter time.Duration
	now        func() time.Time

	shuttingDown atomic.Bool

	mu          sync.RWMutex
	cycles      int64
	failures    int64
	replies     int64
	lastCycle   time.Time
	lastSuccess time.Time
	lastError   string
	lastReport  responder.CycleReport
}

// NewHealthChecker creates a HealthChecker. A successful cycle older than
// staleAfter makes the process unready.
func NewHealthChecker(staleAfter time.Duration) *HealthChecker {
	return &HealthChecker{
		startTime:  time.Now(),
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// ObserveCycle records a finished cycle. Pass it to
// responder.WithCycleObserver.
func (h *HealthChecker) ObserveCycle(r responder.CycleReport) {
	now := h.now()

	h.mu.Lock()
	defer h.mu.Unlock()

	h.cycles++
	h.replies += int64(r.Replied)
	h.lastCycle = now
	h.lastReport = r
	if r.OK() {
		h.lastSuccess = now
		h.lastError = ""
		return
	}
	h.failures++
	h.lastError = r.Err.Error()
}

// SetShuttingDown marks the process as draining.
func (h *HealthChecker) SetShuttingDown() {
	h.shuttingDown.Store(true)
}

// IsReady reports whether a cycle succeeded recently and the process is not
// shutting down.
func (h *HealthChecker) IsReady() bool {
	return h.readiness() == healthStatusOK
}

func (h *HealthChecker) readiness() string {
	if h.shuttingDown.Load() {
		return healthStatusShuttingDown
	}

	h.mu.RLock()
	last := h.lastSuccess
	h.mu.RUnlock()

	switch {
	case last.IsZero():
		return healthStatusNotReady
	case h.staleAfter > 0 && h.now().Sub(last) > h.staleAfter:
		return healthStatusStale
	default:
		return healthStatusOK
	}
}

// HealthResponse represents the JSON response for health endpoints.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// DetailedHealthResponse provides comprehensive health information.
type DetailedHealthResponse struct {
	Status       string     `json:"status"`
	Uptime       string     `json:"uptime"`
	Cycles       int64      `json:"cycles"`
	FailedCycles int64      `json:"failed_cycles"`
	Replies      int64      `json:"replies"`
	LastCycle    *time.Time `json:"last_cycle,omitempty"`
	LastSuccess  *time.Time `json:"last_success,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
	LastReport   *CycleInfo `json:"last_report,omitempty"`
}

// CycleInfo is the JSON form of the most recent cycle report.
type CycleInfo struct {
	Duration  string `json:"duration"`
	Listed    int    `json:"listed"`
	Replied   int    `json:"replied"`
	Unlabeled int    `json:"unlabeled"`
	Skipped   int    `json:"skipped"`
	Failed    int    `json:"failed"`
}

// LivenessHandler returns an HTTP handler for the /healthz endpoint.
// The process is alive as long as it serves requests.
func (h *HealthChecker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{Status: healthStatusOK})
	})
}

// ReadinessHandler returns an HTTP handler for the /readyz endpoint.
func (h *HealthChecker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		state := h.readiness()
		response := HealthResponse{
			Status: healthStatusOK,
			Checks: map[string]string{"cycle": state},
		}
		code := http.StatusOK
		if state != healthStatusOK {
			response.Status = healthStatusNotReady
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, response)
	})
}

// DetailedHealthHandler returns an HTTP handler for the /healthz/detailed endpoint.
func (h *HealthChecker) DetailedHealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		state := h.readiness()

		h.mu.RLock()
		response := DetailedHealthResponse{
			Status:       state,
			Uptime:       h.now().Sub(h.startTime).Truncate(time.Second).String(),
			Cycles:       h.cycles,
			FailedCycles: h.failures,
			Replies:      h.replies,
			LastCycle:    timePtr(h.lastCycle),
			LastSuccess:  timePtr(h.lastSuccess),
			LastError:    h.lastError,
		}
		if h.cycles > 0 {
			r := h.lastReport
			response.LastReport = &CycleInfo{
				Duration:  r.Duration.String(),
				Listed:    r.Listed,
				Replied:   r.Replied,
				Unlabeled: r.Unlabeled,
				Skipped:   r.Skipped,
				Failed:    r.Failed,
			}
		}
		h.mu.RUnlock()

		code := http.StatusOK
		if state != healthStatusOK {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, response)
	})
}

// RegisterHealthEndpoints registers health check endpoints on the given mux.
func (h *HealthChecker) RegisterHealthEndpoints(mux *http.ServeMux) {
	mux.Handle("/healthz", h.LivenessHandler())
	mux.Handle("/readyz", h.ReadinessHandler())
	mux.Handle("/healthz/detailed", h.DetailedHealthHandler())
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
