package saturation

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/perf-analysis/internal/eclass"
	"github.com/perf-analysis/internal/egraph"
	"github.com/perf-analysis/pkg/parallel"
)

const instrumentationName = "github.com/perf-analysis/internal/saturation"

var (
	tracer = otel.Tracer(instrumentationName)
	meter  = otel.Meter(instrumentationName)
)

// instrumentedCounters holds the instruments one Instrument wrapper reports
// to; each Instrument call creates its own set from the package meter.
type instrumentedCounters struct {
	iterations metric.Int64Counter
	classes    metric.Int64Gauge
}

func newInstrumentedCounters() instrumentedCounters {
	iterations, _ := meter.Int64Counter(
		"saturation.iterations",
		metric.WithDescription("number of saturation strategy iterations applied"),
	)
	classes, _ := meter.Int64Gauge(
		"saturation.eclasses",
		metric.WithDescription("e-class count observed after a saturation iteration"),
	)
	return instrumentedCounters{iterations: iterations, classes: classes}
}

// Instrument wraps s so every Apply call is wrapped in a span named
// "saturation.iterate" and reports an iteration counter plus an e-class
// count gauge, labeled by the wrapped strategy's label. This is purely an
// observability wrapper: it never changes s's Strategy[N,D] contract or its
// return values, so it composes with every other combinator in this package
// in any order.
func Instrument[N eclass.NodeType, D any](s Strategy[N, D], label string) Strategy[N, D] {
	counters := newInstrumentedCounters()
	attrs := metric.WithAttributes(attribute.String("strategy", label))
	return Func[N, D]{
		InitialFn: s.InitialData,
		ApplyFn: func(ctx context.Context, g *egraph.EGraph[N], data D, pm parallel.Map) (*egraph.EGraph[N], D, bool, error) {
			ctx, span := tracer.Start(ctx, "saturation.iterate",
				trace.WithAttributes(attribute.String("strategy", label)))
			defer span.End()

			next, nd, changed, err := s.Apply(ctx, g, data, pm)
			if err != nil {
				span.RecordError(err)
				return next, nd, changed, err
			}

			counters.iterations.Add(ctx, 1, attrs)
			if next != nil {
				counters.classes.Record(ctx, int64(next.ClassCount()), attrs)
			}
			span.SetAttributes(attribute.Bool("changed", changed))
			return next, nd, changed, nil
		},
	}
}
