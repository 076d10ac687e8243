package waypoint

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/zalando/waypoint/endpoint"
	"github.com/zalando/waypoint/logging"
	"github.com/zalando/waypoint/metrics"
	"github.com/zalando/waypoint/otel"
	"github.com/zalando/waypoint/responder"
	"github.com/zalando/waypoint/server"
)

const otelShutdownTimeout = 5 * time.Second

// Options to start waypoint.
type Options struct {

	// Network address that waypoint should listen on.
	Address string

	// Network address of the listener serving /metrics and /healthz. An
	// empty value disables the support listener.
	SupportListener string

	ReadTimeoutServer       time.Duration
	ReadHeaderTimeoutServer time.Duration
	WriteTimeoutServer      time.Duration
	IdleTimeoutServer       time.Duration
	MaxHeaderBytes          int

	// Time to report the server unhealthy before the listeners are shut
	// down.
	WaitForHealthcheckInterval time.Duration

	// Maximum time to wait for the active requests during shutdown.
	ShutdownTimeout time.Duration

	// Limit of the execution of a single request.
	RequestTimeout time.Duration

	// Clean the request path before matching.
	CleanPath bool

	// Output file for the application log. When empty, stderr is used.
	ApplicationLogOutput string

	ApplicationLogPrefix      string
	ApplicationLogLevel       log.Level
	ApplicationLogJSONEnabled bool

	// Output file for the access log. When empty, stderr is used.
	AccessLogOutput string

	AccessLogDisabled    bool
	AccessLogJSONEnabled bool

	// Metrics backends, "codahale" and/or "prometheus". Defaults to
	// codahale.
	MetricsFlavours []string

	MetricsPrefix            string
	EnableRuntimeMetrics     bool
	EnableServeRouteMetrics  bool
	MetricsUseExpDecaySample bool
	HistogramMetricBuckets   []float64

	// When set, the OpenTelemetry pipeline is initialized from the
	// environment, otherwise tracing is a no-op.
	OpenTelemetry *otel.Options

	// Compress the responses for clients accepting gzip.
	EnableCompression bool

	// Responses smaller than this are not compressed.
	MinCompressSize int
}

func openLogOutput(name string) (io.Writer, error) {
	if name == "" {
		return nil, nil
	}

	return os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
}

func initLog(o Options) error {
	appOut, err := openLogOutput(o.ApplicationLogOutput)
	if err != nil {
		return fmt.Errorf("failed to open application log: %w", err)
	}

	accessOut, err := openLogOutput(o.AccessLogOutput)
	if err != nil {
		return fmt.Errorf("failed to open access log: %w", err)
	}

	logging.Init(logging.Options{
		ApplicationLogPrefix:      o.ApplicationLogPrefix,
		ApplicationLogOutput:      appOut,
		ApplicationLogLevel:       o.ApplicationLogLevel,
		ApplicationLogJSONEnabled: o.ApplicationLogJSONEnabled,
		AccessLogOutput:           accessOut,
		AccessLogDisabled:         o.AccessLogDisabled,
		AccessLogJSONEnabled:      o.AccessLogJSONEnabled,
	})

	return nil
}

func (o Options) metricsOptions() (metrics.Options, error) {
	mo := metrics.Options{
		Prefix:               o.MetricsPrefix,
		EnableRuntimeMetrics: o.EnableRuntimeMetrics,
		EnableRouteMetrics:   o.EnableServeRouteMetrics,
		HistogramBuckets:     o.HistogramMetricBuckets,
		UseExpDecaySample:    o.MetricsUseExpDecaySample,
	}

	for _, f := range o.MetricsFlavours {
		k, err := metrics.ParseKind(f)
		if err != nil {
			return metrics.Options{}, err
		}

		mo.Format |= k
	}

	if mo.Format == metrics.UnknownKind {
		mo.Format = metrics.CodaHaleKind
	}

	return mo, nil
}

// Run initializes logging, tracing and metrics, and serves the root
// endpoint until the context is done.
//
// The metrics backend is set as metrics.Default before the listeners are
// started, so the upstream clients created without an explicit backend
// report to it.
func Run(ctx context.Context, root endpoint.Endpoint, o Options) error {
	if err := initLog(o); err != nil {
		return err
	}

	if o.OpenTelemetry != nil {
		shutdown, err := otel.Init(ctx, o.OpenTelemetry)
		if err != nil {
			return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
		}

		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), otelShutdownTimeout)
			defer cancel()
			if err := shutdown(sctx); err != nil {
				log.Errorf("Failed to shut down OpenTelemetry: %v", err)
			}
		}()
	}

	mo, err := o.metricsOptions()
	if err != nil {
		return err
	}

	mtr := metrics.NewDefault(mo)
	defer mtr.Close()
	metrics.Default = mtr

	log.Infof("Metrics: %s", mo.Format)

	return server.Run(ctx, root, server.Options{
		Address:             o.Address,
		SupportListener:     o.SupportListener,
		ReadTimeout:         o.ReadTimeoutServer,
		ReadHeaderTimeout:   o.ReadHeaderTimeoutServer,
		WriteTimeout:        o.WriteTimeoutServer,
		IdleTimeout:         o.IdleTimeoutServer,
		MaxHeaderBytes:      o.MaxHeaderBytes,
		ShutdownGracePeriod: o.WaitForHealthcheckInterval,
		ShutdownTimeout:     o.ShutdownTimeout,
		RequestTimeout:      o.RequestTimeout,
		CleanPath:           o.CleanPath,
		Responder: responder.New(responder.Options{
			Gzip:        o.EnableCompression,
			MinGzipSize: o.MinCompressSize,
		}),
		Metrics:           mtr,
		AccessLogDisabled: o.AccessLogDisabled,
	})
}
