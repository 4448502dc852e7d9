package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=arm64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"

	"askmydocs-backend/internal/bootstrap"
	"askmydocs-backend/internal/shared/config"
	"askmydocs-backend/internal/shared/telemetry"
)

// The app is built once per container and reused across invocations.
var (
	initOnce sync.Once
	initErr  error
	proxy    *ginadapter.GinLambdaV2
)

func initApp() {
	app, err := bootstrap.Build(config.Load())
	if err != nil {
		initErr = err
		telemetry.Error("lambda.bootstrap_failed", map[string]any{"err": err.Error()})
		return
	}
	proxy = ginadapter.NewV2(app.Router)
}

func handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	initOnce.Do(initApp)
	if initErr != nil || proxy == nil {
		return unavailable(), nil
	}
	defer telemetry.Sync()
	return proxy.ProxyWithContext(ctx, req)
}

// unavailable renders the flat function error body so browser clients can
// read it like any other function failure.
func unavailable() events.APIGatewayV2HTTPResponse {
	body, _ := json.Marshal(map[string]string{"error": "Service unavailable"})
	return events.APIGatewayV2HTTPResponse{
		StatusCode: http.StatusServiceUnavailable,
		Body:       string(body),
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

func main() {
	lambda.Start(handler)
}
