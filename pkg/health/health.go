// Package health provides Kubernetes-style liveness and readiness
// endpoints. Readiness checks run on demand with a per-check timeout and
// a short result cache, so probe bursts do not hammer dependencies.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// CheckFunc reports nil when the checked dependency is healthy.
type CheckFunc func(ctx context.Context) error

type check struct {
	name    string
	timeout time.Duration
	fn      CheckFunc

	mu        sync.Mutex
	lastRun   time.Time
	lastErr   error
	checkedAt bool
}

// Service tracks readiness checks and a manual ready gate. The gate
// starts closed; call SetReady(true) once initialization completes and
// SetReady(false) at the start of graceful shutdown.
type Service struct {
	ready    atomic.Bool
	cacheTTL time.Duration

	mu        sync.RWMutex
	liveness  []*check
	readiness []*check
}

// New creates a health Service with a one second result cache.
func New() *Service {
	return &Service{cacheTTL: time.Second}
}

// AddLivenessCheck registers a check that gates liveness probes. Use
// these for conditions only a restart can fix, e.g. a goroutine leak.
func (s *Service) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.liveness = append(s.liveness, &check{name: name, timeout: timeout, fn: fn})
}

// AddReadinessCheck registers a named dependency check.
func (s *Service) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readiness = append(s.readiness, &check{name: name, timeout: timeout, fn: fn})
}

// SetReady opens or closes the manual ready gate.
func (s *Service) SetReady(ready bool) {
	s.ready.Store(ready)
}

// IsReady reports whether the gate is open and all readiness checks pass.
func (s *Service) IsReady(ctx context.Context) bool {
	if !s.ready.Load() {
		return false
	}
	return len(s.failures(ctx, &s.readiness)) == 0
}

// LiveEndpoint answers liveness probes: 200 while every liveness check
// passes, 503 once the process is wedged beyond recovery.
func (s *Service) LiveEndpoint(w http.ResponseWriter, r *http.Request) {
	failures := s.failures(r.Context(), &s.liveness)
	writeStatus(w, failures, len(failures) == 0)
}

// ReadyEndpoint answers readiness probes: 200 when the gate is open and
// every check passes, 503 with per-check failures otherwise.
func (s *Service) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	failures := s.failures(r.Context(), &s.readiness)
	ready := s.ready.Load()
	if !ready {
		failures = map[string]string{"_readiness": "service is not ready"}
	}
	writeStatus(w, failures, ready)
}

func (s *Service) failures(ctx context.Context, list *[]*check) map[string]string {
	s.mu.RLock()
	checks := make([]*check, len(*list))
	copy(checks, *list)
	s.mu.RUnlock()

	failures := make(map[string]string)
	for _, c := range checks {
		if err := c.run(ctx, s.cacheTTL); err != nil {
			failures[c.name] = err.Error()
		}
	}
	return failures
}

// run executes the check unless a fresh cached result exists.
func (c *check) run(ctx context.Context, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.checkedAt && time.Since(c.lastRun) < ttl {
		return c.lastErr
	}

	checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.lastErr = c.fn(checkCtx)
	c.lastRun = time.Now()
	c.checkedAt = true
	return c.lastErr
}

type statusResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func writeStatus(w http.ResponseWriter, failures map[string]string, ready bool) {
	w.Header().Set("Content-Type", "application/json")

	resp := statusResponse{Status: "ok"}
	code := http.StatusOK
	if !ready || len(failures) > 0 {
		resp.Status = "unhealthy"
		resp.Checks = failures
		code = http.StatusServiceUnavailable
	}
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
