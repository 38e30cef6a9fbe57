package lambda

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/awslabs/aws-lambda-go-api-proxy/echo"
	"github.com/labstack/echo/v4"
	"smart-factory/internal/domain"
	"smart-factory/internal/ports"
)

type LambdaHandler func(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error)

func NewLambdaHandler(e *echo.Echo) LambdaHandler {
	adapter := echoadapter.NewV2(e)
	return func(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	}
}

type Evaluator interface {
	Evaluate(ctx context.Context, sample domain.MetricSample) ([]domain.Alert, error)
}

type EvaluateRequest struct {
	Samples []domain.MetricSample `json:"samples"`
}

type EvaluateResponse struct {
	Evaluated int            `json:"evaluated"`
	Alerts    []domain.Alert `json:"alerts"`
}

type EvaluateHandler func(ctx context.Context, req EvaluateRequest) (EvaluateResponse, error)

// NewEvaluateHandler runs metric samples delivered by direct invocation
// through the rule evaluator as the system actor. Malformed samples and samples
// for unknown devices are logged and skipped. Any other failure aborts the batch.
func NewEvaluateHandler(rules Evaluator, logger ports.Logger) EvaluateHandler {
	return func(ctx context.Context, req EvaluateRequest) (EvaluateResponse, error) {
		resp := EvaluateResponse{Alerts: []domain.Alert{}}
		for i, sample := range req.Samples {
			alerts, err := rules.Evaluate(ctx, sample)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidInput) {
					logger.Warn(ctx, "metric sample skipped", "index", i, "device_id", sample.DeviceID, "error", err.Error())
					continue
				}
				return resp, fmt.Errorf("evaluate sample %d: %w", i, err)
			}
			resp.Evaluated++
			resp.Alerts = append(resp.Alerts, alerts...)
		}
		return resp, nil
	}
}
