package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// SetupLogging installs an OTLP/HTTP logger provider when endpoint is set and
// returns it for the zap bridge. With no endpoint it returns nil.
func SetupLogging(ctx context.Context, endpoint, version string) (otellog.LoggerProvider, func(context.Context) error, error) {
	if endpoint == "" {
		return nil, func(context.Context) error { return nil }, nil
	}

	res, err := newResource(version)
	if err != nil {
		return nil, nil, err
	}
	exp, err := otlploghttp.New(ctx,
		otlploghttp.WithEndpoint(endpoint),
		otlploghttp.WithInsecure(),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("otlp log exporter: %w", err)
	}

	lp := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exp, sdklog.WithExportTimeout(10*time.Second))),
		sdklog.WithResource(res),
	)
	global.SetLoggerProvider(lp)
	return lp, lp.Shutdown, nil
}
