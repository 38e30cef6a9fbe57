package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/labstack/echo/v4"
	"smart-factory/internal/domain"
)

type mockLogger struct {
	lastCtx  context.Context
	lastMsg  string
	lastArgs []any
}

func (m *mockLogger) Info(ctx context.Context, msg string, args ...any) {
	m.lastCtx = ctx
	m.lastMsg = msg
	m.lastArgs = args
}

func (m *mockLogger) Error(context.Context, string, ...any) {}
func (m *mockLogger) Warn(context.Context, string, ...any)  {}
func (m *mockLogger) Debug(context.Context, string, ...any) {}

func argKeys(args []any) map[string]any {
	keys := map[string]any{}
	for i := 0; i < len(args)-1; i += 2 {
		if k, ok := args[i].(string); ok {
			keys[k] = args[i+1]
		}
	}
	return keys
}

func TestRequestLogger_LogsExpectedFields(t *testing.T) {
	logger := &mockLogger{}
	mw := RequestLogger(logger)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/alerts/alt_1/acknowledge", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/alerts/:id/acknowledge")
	c.Set(actorKey, domain.Actor{UserID: "usr_1", Role: domain.RoleOperator})

	h := mw(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if logger.lastMsg != "http request" {
		t.Fatalf("unexpected log message: %s", logger.lastMsg)
	}

	keys := argKeys(logger.lastArgs)
	for _, expected := range []string{"method", "path", "route_pattern", "status", "duration", "user_id", "role"} {
		if _, ok := keys[expected]; !ok {
			t.Fatalf("missing expected key %s in args: %v", expected, logger.lastArgs)
		}
	}
	if keys["route_pattern"] != "/alerts/:id/acknowledge" {
		t.Fatalf("unexpected route pattern: %v", keys["route_pattern"])
	}
}

func TestRequestLogger_RecordsErrorStatus(t *testing.T) {
	logger := &mockLogger{}
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/alerts/missing", nil), httptest.NewRecorder())

	h := RequestLogger(logger)(func(echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	})
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := argKeys(logger.lastArgs)["status"]; got != http.StatusNotFound {
		t.Fatalf("expected 404 status, got %v", got)
	}
}

func TestRequestLogger_PassesContextWithXRaySegment(t *testing.T) {
	logger := &mockLogger{}
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/alerts", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := XRayMiddleware("smart-factory-test")(RequestLogger(logger)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}))

	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if xray.GetSegment(logger.lastCtx) == nil {
		t.Fatalf("expected xray segment in logged context")
	}
}
