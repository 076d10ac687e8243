// Package otel bootstraps the [OpenTelemetry] tracing pipeline used by the
// server spans and the upstream calls.
//
// [OpenTelemetry]: https://opentelemetry.io/
package otel

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/bombsimon/logrusr/v4"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/exporters/autoexport"
	"go.opentelemetry.io/contrib/propagators/autoprop"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
)

var log = logrus.WithField("package", "otel")

// DebugExporter is the name of the span exporter writing the spans to the
// debug log. Select it with OTEL_TRACES_EXPORTER.
const DebugExporter = "waypoint-debug"

// Options configure the OpenTelemetry pipeline.
type Options struct {

	// Initialized indicates whether the pipeline has been initialized
	// externally. If true, Init returns immediately.
	Initialized bool `yaml:"initialized"`

	// ServiceName is recorded as the service.name resource attribute,
	// unless OTEL_RESOURCE_ATTRIBUTES sets it.
	ServiceName string `yaml:"service-name"`
}

// Init bootstraps the pipeline from the environment and the options. The
// returned shutdown function flushes the pending spans and must be
// called when err is nil.
//
// Supported environment variables:
//
//   - OTEL_TRACES_EXPORTER
//   - OTEL_EXPORTER_OTLP_PROTOCOL
//   - OTEL_EXPORTER_OTLP_ENDPOINT
//   - OTEL_EXPORTER_OTLP_HEADERS
//   - OTEL_RESOURCE_ATTRIBUTES
//   - OTEL_PROPAGATORS
//   - OTEL_BSP_MAX_QUEUE_SIZE
//   - OTEL_BSP_MAX_EXPORT_BATCH_SIZE
//   - OTEL_BSP_SCHEDULE_DELAY
//   - OTEL_BSP_EXPORT_TIMEOUT
func Init(ctx context.Context, o *Options) (shutdown func(context.Context) error, err error) {
	if o.Initialized {
		log.Debug("OpenTelemetry pipeline initialized externally")
		return func(context.Context) error { return nil }, nil
	}

	// OTEL_EXPORTER_OTLP_HEADERS is not logged, it may contain credentials
	for _, name := range []string{
		"OTEL_TRACES_EXPORTER",
		"OTEL_EXPORTER_OTLP_PROTOCOL",
		"OTEL_EXPORTER_OTLP_ENDPOINT",
		"OTEL_RESOURCE_ATTRIBUTES",
		"OTEL_PROPAGATORS",
	} {
		log.Debugf("%s: %s", name, os.Getenv(name))
	}

	tp, err := newTracerProvider(ctx, o)
	if err != nil {
		return nil, err
	}

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(autoprop.NewTextMapPropagator())
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) { log.Error(err) }))
	otel.SetLogger(logrusr.New(log))

	return tp.Shutdown, nil
}

func newTracerProvider(ctx context.Context, o *Options) (*trace.TracerProvider, error) {
	exporter, err := autoexport.NewSpanExporter(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create span exporter: %w", err)
	}

	res := resource.Environment()
	if o.ServiceName != "" {
		// merged last, so OTEL_RESOURCE_ATTRIBUTES takes precedence
		res, err = resource.Merge(resource.NewSchemaless(attribute.String("service.name", o.ServiceName)), res)
		if err != nil {
			return nil, errors.Join(err, exporter.Shutdown(ctx))
		}
	}

	return trace.NewTracerProvider(trace.WithBatcher(exporter), trace.WithResource(res)), nil
}

func init() {
	// spans are flushed by the shutdown of the tracer provider
	autoexport.RegisterSpanExporter(DebugExporter, func(context.Context) (trace.SpanExporter, error) {
		return stdouttrace.New(stdouttrace.WithWriter(writerFunc(func(p []byte) (int, error) {
			log.Debugf("Span: %s", p)
			return len(p), nil
		})))
	})
}

type writerFunc func([]byte) (int, error)

func (wf writerFunc) Write(p []byte) (n int, err error) {
	return wf(p)
}
