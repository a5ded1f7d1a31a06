package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"hrdesk/internal/app/server"
	"hrdesk/internal/domain/auth"
	"hrdesk/internal/platform/clock"
	"hrdesk/internal/platform/config"
)

const testSecret = "test-secret"

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
	RequestID string `json:"requestId"`
}

func (e envelope) code() string {
	if e.Error == nil {
		return ""
	}
	return e.Error.Code
}

// manualClock is advanced explicitly by tests.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testConfig() config.Config {
	return config.Config{
		Addr:               ":0",
		Environment:        config.EnvDevelopment,
		StorageDriver:      config.StorageMemory,
		RunSeed:            true,
		JWTSecret:          testSecret,
		CacheTTL:           time.Minute,
		BusinessTimezone:   "UTC",
		PolicyCategory:     "general",
		BatchConcurrency:   4,
		CORSAllowedOrigins: []string{"*"},
		MaxBodyBytes:       1 << 20,
		RateLimitPerMinute: 10000,
		MetricsEnabled:     true,
		ShutdownTimeout:    time.Second,
	}
}

type testEnv struct {
	t      *testing.T
	ts     *httptest.Server
	clock  *manualClock
	tokens map[string]string
}

// newEnv starts the fully wired router on in-memory storage at start.
func newEnv(t *testing.T, start time.Time) *testEnv {
	t.Helper()
	return newEnvWithConfig(t, testConfig(), start)
}

func newEnvWithConfig(t *testing.T, cfg config.Config, start time.Time) *testEnv {
	t.Helper()
	mc := &manualClock{now: start}
	app, err := server.New(context.Background(), cfg,
		server.WithClock(clock.Func(mc.Now, time.UTC)),
		server.WithLogger(zap.NewNop()),
	)
	if err != nil {
		t.Fatalf("failed to start app: %v", err)
	}
	ts := httptest.NewServer(app.Router)
	t.Cleanup(func() {
		ts.Close()
		app.Close()
	})

	env := &testEnv{t: t, ts: ts, clock: mc, tokens: map[string]string{}}
	for employeeID, role := range map[string]string{
		"emp-hr":    auth.RoleHR,
		"emp-admin": auth.RoleAdmin,
		"emp-mgr":   auth.RoleManager,
		"emp-dev":   auth.RoleEmployee,
	} {
		token, err := auth.GenerateToken(testSecret, auth.Claims{EmployeeID: employeeID, Role: role}, time.Hour)
		if err != nil {
			t.Fatalf("token error: %v", err)
		}
		env.tokens[employeeID] = token
	}
	return env
}

func (e *testEnv) do(method, path, as string, body any, headers ...string) (int, envelope, *http.Response) {
	e.t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			e.t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, reader)
	if err != nil {
		e.t.Fatalf("request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if as != "" {
		req.Header.Set("Authorization", "Bearer "+e.tokens[as])
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := e.ts.Client().Do(req)
	if err != nil {
		e.t.Fatalf("do %s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		e.t.Fatalf("read body: %v", err)
	}
	var env envelope
	if resp.Header.Get("Content-Type") == "application/json" {
		if err := json.Unmarshal(raw, &env); err != nil {
			e.t.Fatalf("decode envelope for %s %s: %v (%s)", method, path, err, raw)
		}
	}
	resp.Body = io.NopCloser(bytes.NewReader(raw))
	return resp.StatusCode, env, resp
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(env.Data, &out); err != nil {
		t.Fatalf("decode data: %v (%s)", err, env.Data)
	}
	return out
}
