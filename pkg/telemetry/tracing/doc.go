// Package tracing configures OpenTelemetry spans for agent turns.
//
// When tracing is disabled the global no-op provider is used and Start costs
// almost nothing. When enabled, spans are batched to an OTLP gRPC collector.
//
//	tracer, err := tracing.New(ctx, &tracing.Config{Enabled: true, Endpoint: "localhost:4317"})
//	defer tracer.Shutdown(context.Background())
//
//	ctx, span := tracer.Start(ctx, "agent.turn")
//	defer span.End()
package tracing
