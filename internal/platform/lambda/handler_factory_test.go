package lambda

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"smart-factory/internal/domain"
)

func TestNewLambdaHandler_ProxiesToEcho(t *testing.T) {
	e := echo.New()
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	resp, err := NewLambdaHandler(e)(context.Background(), events.APIGatewayV2HTTPRequest{
		RawPath: "/healthz",
		RequestContext: events.APIGatewayV2HTTPRequestContext{
			HTTP: events.APIGatewayV2HTTPRequestContextHTTPDescription{Method: http.MethodGet, Path: "/healthz"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, resp.Body)
}

type evaluatorMock struct{ mock.Mock }

func (m *evaluatorMock) Evaluate(ctx context.Context, sample domain.MetricSample) ([]domain.Alert, error) {
	args := m.Called(ctx, sample)
	alerts, _ := args.Get(0).([]domain.Alert)
	return alerts, args.Error(1)
}

type nopLogger struct{}

func (nopLogger) Info(context.Context, string, ...any)  {}
func (nopLogger) Error(context.Context, string, ...any) {}
func (nopLogger) Warn(context.Context, string, ...any)  {}
func (nopLogger) Debug(context.Context, string, ...any) {}

func TestEvaluateHandler_CollectsAlertsAndSkipsUnknownDevices(t *testing.T) {
	hot := domain.MetricSample{DeviceID: "dev_1", Metric: "temperature", Value: 95}
	ghost := domain.MetricSample{DeviceID: "dev_gone", Metric: "temperature", Value: 95}
	calm := domain.MetricSample{DeviceID: "dev_2", Metric: "temperature", Value: 40}

	rules := &evaluatorMock{}
	rules.On("Evaluate", mock.Anything, hot).Return([]domain.Alert{{ID: "alt_1", DeviceID: "dev_1"}}, nil)
	rules.On("Evaluate", mock.Anything, ghost).Return(nil, domain.ErrNotFound)
	rules.On("Evaluate", mock.Anything, calm).Return(nil, nil)

	resp, err := NewEvaluateHandler(rules, nopLogger{})(context.Background(), EvaluateRequest{
		Samples: []domain.MetricSample{hot, ghost, calm},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Evaluated)
	require.Len(t, resp.Alerts, 1)
	assert.Equal(t, "alt_1", resp.Alerts[0].ID)
	rules.AssertExpectations(t)
}

func TestEvaluateHandler_AbortsOnStorageFailure(t *testing.T) {
	rules := &evaluatorMock{}
	rules.On("Evaluate", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))

	_, err := NewEvaluateHandler(rules, nopLogger{})(context.Background(), EvaluateRequest{
		Samples: []domain.MetricSample{{DeviceID: "dev_1", Metric: "vibration", Value: 1}},
	})
	assert.ErrorContains(t, err, "evaluate sample 0")
}
