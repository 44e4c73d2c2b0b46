package telemetry

import (
	"context"
	"io"
	"os"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTELHook stamps log entries written under a recording span with its IDs,
// and marks the span failed on error level or above.
type OTELHook struct{}

func (OTELHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	ctx := e.GetCtx()
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	sc := span.SpanContext()
	if !sc.IsValid() {
		return
	}

	e.Str("trace_id", sc.TraceID().String()).Str("span_id", sc.SpanID().String())
	if level >= zerolog.ErrorLevel && level != zerolog.NoLevel {
		span.SetStatus(codes.Error, msg)
	}
}

// Logger is a component logger correlated with the active span.
type Logger struct {
	zerolog.Logger
}

// Output is where component loggers write. The CLI swaps it for a console writer.
var Output io.Writer = os.Stderr

// NewLogger returns a logger tagged with component.
func NewLogger(component string) *Logger {
	zl := zerolog.New(Output).With().Timestamp().Str("component", component).Logger()
	return &Logger{Logger: zl.Hook(OTELHook{})}
}

// WithContext binds ctx so the hook can find its span.
func (l *Logger) WithContext(ctx context.Context) *zerolog.Logger {
	zl := l.Logger.With().Ctx(ctx).Logger()
	return &zl
}

// LogRegionFailure logs a region whose collection was substituted.
func (l *Logger) LogRegionFailure(ctx context.Context, region string, err error) {
	l.WithContext(ctx).Error().
		Err(err).
		Str("region", region).
		Msg("region collection failed, substituting empty record")
}

// LogCategoryErrors logs the failed categories of a completed region.
func (l *Logger) LogCategoryErrors(ctx context.Context, region string, failed int) {
	if failed == 0 {
		return
	}
	l.WithContext(ctx).Warn().
		Str("region", region).
		Int("failed_categories", failed).
		Msg("region collected with errors")
}
