// Package handler reports readiness over HTTP (/healthz) and the standard gRPC health service.
package handler

import (
	"context"
	"time"
)

// Pinger is used for readiness checks (e.g. *sql.DB implements PingContext).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// PingContext implements Pinger.
func (f PingFunc) PingContext(ctx context.Context) error { return f(ctx) }

// PolicyChecker is used to verify the sign-in policy engine is ready.
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

const checkTimeout = 2 * time.Second

// Status values reported by Check.
const (
	StatusOK       = "ok"
	StatusDegraded = "unavailable"
)

// Report is the readiness outcome. Checks maps component name to "ok" or the failure text.
type Report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Healthy reports whether every component passed.
func (r Report) Healthy() bool {
	return r.Status == StatusOK
}

// Server checks the database, the policy engine and the optional shared cache.
// Nil components are skipped.
type Server struct {
	db     Pinger
	policy PolicyChecker
	cache  Pinger
}

// NewServer returns a Server. Any argument may be nil.
func NewServer(db Pinger, policy PolicyChecker, cache Pinger) *Server {
	return &Server{db: db, policy: policy, cache: cache}
}

// Check runs every configured probe with a short timeout.
func (s *Server) Check(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	r := Report{Status: StatusOK, Checks: map[string]string{}}
	record := func(name string, err error) {
		if err != nil {
			r.Status = StatusDegraded
			r.Checks[name] = err.Error()
			return
		}
		r.Checks[name] = StatusOK
	}
	if s.db != nil {
		record("database", s.db.PingContext(ctx))
	}
	if s.policy != nil {
		record("policy", s.policy.HealthCheck(ctx))
	}
	if s.cache != nil {
		record("cache", s.cache.PingContext(ctx))
	}
	return r
}
