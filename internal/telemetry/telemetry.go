// Package telemetry はOpenTelemetryのトレース設定を提供する。
package telemetry

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ShutdownFunc はトレースプロバイダを停止し、未送信のスパンを送出する。
type ShutdownFunc func(context.Context) error

func noop(context.Context) error { return nil }

// Init はグローバルなトレースプロバイダを設定する。
// OTEL_EXPORTER_OTLP_ENDPOINT が未設定の場合はトレースを無効にし、何もしないShutdownFuncを返す。
// エクスポーターを生成できない場合もトレースなしで起動を続ける。
func Init(ctx context.Context, serviceName string) (ShutdownFunc, error) {
	endpoint, insecure, ok := parseEndpoint(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	if !ok {
		return noop, nil
	}

	initCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithTimeout(3 * time.Second),
		otlptracehttp.WithRetry(otlptracehttp.RetryConfig{Enabled: false}),
	}
	if insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(initCtx, opts...)
	if err != nil {
		slog.Warn("トレースエクスポーターの初期化に失敗しました。トレースなしで起動します",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
		)
		return noop, nil
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	slog.Info("トレースを有効化しました", slog.String("endpoint", endpoint))
	return tp.Shutdown, nil
}

// parseEndpoint はエンドポイントからスキームを取り除き、平文通信かどうかを返す。
// スキームなしの値は平文として扱う。
func parseEndpoint(raw string) (endpoint string, insecure bool, ok bool) {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return "", false, false
	case strings.HasPrefix(raw, "https://"):
		endpoint, insecure = strings.TrimPrefix(raw, "https://"), false
	default:
		endpoint, insecure = strings.TrimPrefix(raw, "http://"), true
	}
	endpoint = strings.TrimRight(endpoint, "/")
	return endpoint, insecure, endpoint != ""
}
