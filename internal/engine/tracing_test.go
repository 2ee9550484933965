package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/RealZimboGuy/gopherstep/pkg/gopherstep/core"
	"github.com/RealZimboGuy/gopherstep/pkg/gopherstep/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestExecutionSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(context.Background())

	exec := core.TaskExecutorFunc(func(ctx context.Context, resource string, input any) (any, error) {
		if resource == "notify" {
			return nil, domain.NewTaskError("Unavailable", "no channel")
		}
		return map[string]any{}, nil
	})
	m, _ := newTestManager(t, exec, WithTracer(tp.Tracer("test")))
	register(t, m, "pipeline", pipelineDoc)

	_, err := m.Run(context.Background(), "pipeline", map[string]any{"status": "SUCCESS"})
	var unhandled *domain.UnhandledExecutionError
	require.True(t, errors.As(err, &unhandled))

	spans := exporter.GetSpans()
	byName := map[string]tracetest.SpanStub{}
	for _, s := range spans {
		byName[s.Name] = s
	}
	require.Contains(t, byName, "execution pipeline")
	require.Contains(t, byName, "state ProcessData")
	require.Contains(t, byName, "state CheckStatus")
	require.Contains(t, byName, "state Notify")
	assert.NotContains(t, byName, "state Completed")

	root := byName["execution pipeline"]
	for _, name := range []string{"state ProcessData", "state CheckStatus", "state Notify"} {
		assert.Equal(t, root.SpanContext.SpanID(), byName[name].Parent.SpanID(), name)
	}
	assert.Equal(t, codes.Error, byName["state Notify"].Status.Code)
	assert.Equal(t, codes.Error, root.Status.Code)
}
