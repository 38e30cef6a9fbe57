package main

import (
	"context"
	"os"

	awslambda "github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-xray-sdk-go/xray"
	adapterlogger "smart-factory/internal/adapters/logger"
	"smart-factory/internal/config"
	"smart-factory/internal/platform/app"
	"smart-factory/internal/platform/lambda"
)

// LAMBDA_HANDLER selects what this function serves: "http" (default) for API
// Gateway v2 requests, "evaluate" for direct invocations carrying metric
// samples.
func main() {
	ctx := context.Background()
	cfg, err := config.Load()
	if err != nil {
		adapterlogger.New(nil).Error(ctx, "configuration error", "error", err)
		os.Exit(1)
	}
	level, _ := adapterlogger.ParseLevel(cfg.LogLevel)
	logger := adapterlogger.New(level)
	xray.Configure(xray.Config{LogLevel: "error"})

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "failed to initialize application", "error", err)
		os.Exit(1)
	}

	switch os.Getenv("LAMBDA_HANDLER") {
	case "evaluate":
		awslambda.Start(lambda.NewEvaluateHandler(a.Rules, logger))
	default:
		awslambda.Start(lambda.NewLambdaHandler(a.Echo))
	}
}
