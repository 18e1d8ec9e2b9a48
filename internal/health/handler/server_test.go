package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// mockPinger implements Pinger for tests.
type mockPinger struct {
	pingErr error
}

func (m *mockPinger) PingContext(context.Context) error {
	return m.pingErr
}

// mockPolicyChecker implements PolicyChecker for tests.
type mockPolicyChecker struct {
	healthErr error
}

func (m *mockPolicyChecker) HealthCheck(context.Context) error {
	return m.healthErr
}

func TestCheck_NilComponents(t *testing.T) {
	r := NewServer(nil, nil, nil).Check(context.Background())
	if !r.Healthy() {
		t.Errorf("status = %q, want ok", r.Status)
	}
	if len(r.Checks) != 0 {
		t.Errorf("checks = %v, want none", r.Checks)
	}
}

func TestCheck_AllHealthy(t *testing.T) {
	cache := PingFunc(func(context.Context) error { return nil })
	r := NewServer(&mockPinger{}, &mockPolicyChecker{}, cache).Check(context.Background())
	if !r.Healthy() {
		t.Fatalf("status = %q, want ok", r.Status)
	}
	for _, name := range []string{"database", "policy", "cache"} {
		if r.Checks[name] != StatusOK {
			t.Errorf("checks[%s] = %q, want ok", name, r.Checks[name])
		}
	}
}

func TestCheck_Failures(t *testing.T) {
	tests := []struct {
		name   string
		srv    *Server
		failed string
	}{
		{"database", NewServer(&mockPinger{pingErr: errors.New("connection refused")}, nil, nil), "database"},
		{"policy", NewServer(nil, &mockPolicyChecker{healthErr: errors.New("not prepared")}, nil), "policy"},
		{"cache", NewServer(nil, nil, PingFunc(func(context.Context) error { return errors.New("redis down") })), "cache"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.srv.Check(context.Background())
			if r.Healthy() {
				t.Fatal("report should be unhealthy")
			}
			if r.Checks[tt.failed] == StatusOK || r.Checks[tt.failed] == "" {
				t.Errorf("checks[%s] = %q, want failure text", tt.failed, r.Checks[tt.failed])
			}
		})
	}
}

func TestGRPCServer_Check(t *testing.T) {
	ok := NewGRPCServer(NewServer(&mockPinger{}, nil, nil))
	resp, err := ok.Check(context.Background(), &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("status = %v, want SERVING", resp.GetStatus())
	}

	down := NewGRPCServer(NewServer(&mockPinger{pingErr: errors.New("down")}, nil, nil))
	resp, err = down.Check(context.Background(), &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("status = %v, want NOT_SERVING", resp.GetStatus())
	}

	_, err = ok.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "other"})
	if status.Code(err) != codes.NotFound {
		t.Errorf("code = %v, want NotFound", status.Code(err))
	}
}

func TestHealthz(t *testing.T) {
	e := echo.New()
	tests := []struct {
		name string
		srv  *Server
		want int
	}{
		{"healthy", NewServer(&mockPinger{}, &mockPolicyChecker{}, nil), http.StatusOK},
		{"unhealthy", NewServer(&mockPinger{pingErr: errors.New("down")}, nil, nil), http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/healthz", nil), rec)
			if err := tt.srv.Healthz(c); err != nil {
				t.Fatalf("Healthz: %v", err)
			}
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			var r Report
			if err := json.Unmarshal(rec.Body.Bytes(), &r); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if r.Checks["database"] == "" {
				t.Error("database check missing from body")
			}
		})
	}
}
