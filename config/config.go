// Package config reads the settings of waypoint from the command line flags
// and, optionally, from a YAML config file.
//
// Every flag can be set in the config file, using the flag name as the key.
// The flags given on the command line take precedence over the file.
package config

import (
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/zalando/waypoint"
	"github.com/zalando/waypoint/endpoints/body"
	"github.com/zalando/waypoint/endpoints/upstream"
	"github.com/zalando/waypoint/otel"
)

type Config struct {
	ConfigFile   string
	Flags        *flag.FlagSet
	PrintVersion bool `yaml:"version"`

	// server:
	Address                    string        `yaml:"address"`
	SupportListener            string        `yaml:"support-listener"`
	ReadTimeoutServer          time.Duration `yaml:"read-timeout-server"`
	ReadHeaderTimeoutServer    time.Duration `yaml:"read-header-timeout-server"`
	WriteTimeoutServer         time.Duration `yaml:"write-timeout-server"`
	IdleTimeoutServer          time.Duration `yaml:"idle-timeout-server"`
	MaxHeaderBytes             int           `yaml:"max-header-bytes"`
	WaitForHealthcheckInterval time.Duration `yaml:"wait-for-healthcheck-interval"`
	ShutdownTimeout            time.Duration `yaml:"shutdown-timeout"`
	RequestTimeout             time.Duration `yaml:"request-timeout"`
	CleanPath                  bool          `yaml:"clean-path"`
	MaxBodySize                int64         `yaml:"max-body-size"`
	EnableCompression          bool          `yaml:"enable-compression"`
	MinCompressSize            int           `yaml:"min-compress-size"`

	// logging:
	ApplicationLog            string    `yaml:"application-log"`
	ApplicationLogLevel       log.Level `yaml:"-"`
	ApplicationLogLevelString string    `yaml:"application-log-level"`
	ApplicationLogPrefix      string    `yaml:"application-log-prefix"`
	ApplicationLogJSONEnabled bool      `yaml:"application-log-json-enabled"`
	AccessLog                 string    `yaml:"access-log"`
	AccessLogDisabled         bool      `yaml:"access-log-disabled"`
	AccessLogJSONEnabled      bool      `yaml:"access-log-json-enabled"`

	// metrics:
	MetricsFlavour               *listFlag `yaml:"metrics-flavour"`
	MetricsPrefix                string    `yaml:"metrics-prefix"`
	RuntimeMetrics               bool      `yaml:"runtime-metrics"`
	ServeRouteMetrics            bool      `yaml:"serve-route-metrics"`
	MetricsUseExpDecaySample     bool      `yaml:"metrics-exp-decay-sample"`
	HistogramMetricBucketsString string    `yaml:"histogram-metric-buckets"`
	HistogramMetricBuckets       []float64 `yaml:"-"`

	// tracing:
	OpenTelemetryFlag *yamlFlag[otel.Options] `yaml:"open-telemetry"`
	OpenTelemetry     *otel.Options           `yaml:"-"`

	// demo routes:
	RatelimitRate           float64       `yaml:"ratelimit-rate"`
	RatelimitBurst          int           `yaml:"ratelimit-burst"`
	UpstreamURL             string        `yaml:"upstream-url"`
	UpstreamTimeout         time.Duration `yaml:"upstream-timeout"`
	UpstreamMaxTries        uint          `yaml:"upstream-max-tries"`
	UpstreamBreakerFailures int           `yaml:"upstream-breaker-failures"`
	UpstreamBreakerTimeout  time.Duration `yaml:"upstream-breaker-timeout"`
}

const (
	defaultAddress                 = ":9090"
	defaultSupportListener         = ":9911"
	defaultReadTimeoutServer       = 5 * time.Minute
	defaultReadHeaderTimeoutServer = 60 * time.Second
	defaultWriteTimeoutServer      = 60 * time.Second
	defaultIdleTimeoutServer       = 60 * time.Second
	defaultShutdownTimeout         = 30 * time.Second
	defaultMinCompressSize         = 512
	defaultApplicationLogLevel     = "INFO"
	defaultApplicationLogPrefix    = "[APP]"
	defaultMetricsPrefix           = "waypoint."
	defaultRatelimitRate           = 100
	defaultRatelimitBurst          = 10
	defaultUpstreamTimeout         = 10 * time.Second
	defaultUpstreamMaxTries        = 3
	defaultUpstreamBreakerTimeout  = 60 * time.Second
)

func NewConfig() *Config {
	cfg := new(Config)
	cfg.MetricsFlavour = commaListFlag("codahale", "prometheus")
	cfg.OpenTelemetryFlag = newYamlFlag(&cfg.OpenTelemetry)

	flag := flag.NewFlagSet("", flag.ExitOnError)
	flag.StringVar(&cfg.ConfigFile, "config-file", "", "if provided the flags will be loaded/overwritten by the values on the file (yaml)")
	flag.BoolVar(&cfg.PrintVersion, "version", false, "print waypoint version")

	// server:
	flag.StringVar(&cfg.Address, "address", defaultAddress, "network address that waypoint should listen on")
	flag.StringVar(&cfg.SupportListener, "support-listener", defaultSupportListener, "network address used for exposing the /metrics and /healthz endpoints. An empty value disables support endpoint.")
	flag.DurationVar(&cfg.ReadTimeoutServer, "read-timeout-server", defaultReadTimeoutServer, "set ReadTimeout for http server connections")
	flag.DurationVar(&cfg.ReadHeaderTimeoutServer, "read-header-timeout-server", defaultReadHeaderTimeoutServer, "set ReadHeaderTimeout for http server connections")
	flag.DurationVar(&cfg.WriteTimeoutServer, "write-timeout-server", defaultWriteTimeoutServer, "set WriteTimeout for http server connections")
	flag.DurationVar(&cfg.IdleTimeoutServer, "idle-timeout-server", defaultIdleTimeoutServer, "set IdleTimeout for http server connections")
	flag.IntVar(&cfg.MaxHeaderBytes, "max-header-bytes", http.DefaultMaxHeaderBytes, "set MaxHeaderBytes for http server connections")
	flag.DurationVar(&cfg.WaitForHealthcheckInterval, "wait-for-healthcheck-interval", 0, "period waiting to become unhealthy in the loadbalancer pool in front of waypoint, before shutdown triggered by the context")
	flag.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", defaultShutdownTimeout, "maximum time to wait for the active requests during shutdown")
	flag.DurationVar(&cfg.RequestTimeout, "request-timeout", 0, "limit of the execution of a single request, the request fails with 504 when exceeded. 0 disables the limit")
	flag.BoolVar(&cfg.CleanPath, "clean-path", false, "clean the request path before matching, e.g. /a/../b//c is matched as /b/c")
	flag.Int64Var(&cfg.MaxBodySize, "max-body-size", body.DefaultMaxSize, "maximum size of the request bodies read by the demo routes")
	flag.BoolVar(&cfg.EnableCompression, "enable-compression", false, "compress the responses with gzip for the clients accepting it")
	flag.IntVar(&cfg.MinCompressSize, "min-compress-size", defaultMinCompressSize, "responses smaller than this number of bytes are not compressed")

	// logging:
	flag.StringVar(&cfg.ApplicationLog, "application-log", "", "output file for the application log. When not set, /dev/stderr is used")
	flag.StringVar(&cfg.ApplicationLogLevelString, "application-log-level", defaultApplicationLogLevel, "log level for application logs, possible values: PANIC, FATAL, ERROR, WARN, INFO, DEBUG")
	flag.StringVar(&cfg.ApplicationLogPrefix, "application-log-prefix", defaultApplicationLogPrefix, "prefix for each log entry")
	flag.BoolVar(&cfg.ApplicationLogJSONEnabled, "application-log-json-enabled", false, "when this flag is set, log in JSON format is used")
	flag.StringVar(&cfg.AccessLog, "access-log", "", "output file for the access log, When not set, /dev/stderr is used")
	flag.BoolVar(&cfg.AccessLogDisabled, "access-log-disabled", false, "when this flag is set, no access log is printed")
	flag.BoolVar(&cfg.AccessLogJSONEnabled, "access-log-json-enabled", false, "when this flag is set, log in JSON format is used")

	// metrics:
	flag.Var(cfg.MetricsFlavour, "metrics-flavour", "Metrics flavour is used to change the exposed metrics format. Supported metric formats: 'codahale' and 'prometheus', you can select both of them")
	flag.StringVar(&cfg.MetricsPrefix, "metrics-prefix", defaultMetricsPrefix, "allows setting a custom path prefix for metrics export")
	flag.BoolVar(&cfg.RuntimeMetrics, "runtime-metrics", true, "enables reporting of the Go runtime statistics exported in runtime and specifically runtime.MemStats")
	flag.BoolVar(&cfg.ServeRouteMetrics, "serve-route-metrics", false, "enables reporting total serve time metrics for each route")
	flag.BoolVar(&cfg.MetricsUseExpDecaySample, "metrics-exp-decay-sample", false, "use exponentially decaying sample in metrics")
	flag.StringVar(&cfg.HistogramMetricBucketsString, "histogram-metric-buckets", "", "use custom buckets for prometheus histograms, must be a comma-separated list of numbers")

	// tracing:
	flag.Var(cfg.OpenTelemetryFlag, "open-telemetry", "sets OpenTelemetry configuration in YAML format and enables tracing, the exporter is configured with the OTEL_* environment variables")

	// demo routes:
	flag.Float64Var(&cfg.RatelimitRate, "ratelimit-rate", defaultRatelimitRate, "number of requests per second allowed by the rate limited demo routes")
	flag.IntVar(&cfg.RatelimitBurst, "ratelimit-burst", defaultRatelimitBurst, "number of requests allowed at once by the rate limited demo routes")
	flag.StringVar(&cfg.UpstreamURL, "upstream-url", "", "base URL of the upstream service of the /proxy demo route. When not set, the route is disabled")
	flag.DurationVar(&cfg.UpstreamTimeout, "upstream-timeout", defaultUpstreamTimeout, "timeout of a single upstream call")
	flag.UintVar(&cfg.UpstreamMaxTries, "upstream-max-tries", defaultUpstreamMaxTries, "maximum number of attempts of the idempotent upstream calls")
	flag.IntVar(&cfg.UpstreamBreakerFailures, "upstream-breaker-failures", 0, "number of consecutive failures opening the circuit breaker of the upstream. 0 disables the breaker")
	flag.DurationVar(&cfg.UpstreamBreakerTimeout, "upstream-breaker-timeout", defaultUpstreamBreakerTimeout, "time after which an open circuit breaker lets the upstream calls through again")

	cfg.Flags = flag
	return cfg
}

func validate(c *Config) error {
	if _, err := log.ParseLevel(c.ApplicationLogLevelString); err != nil {
		return err
	}

	if _, err := c.parseHistogramBuckets(); err != nil {
		return err
	}

	if c.MaxBodySize <= 0 {
		return fmt.Errorf("invalid max-body-size: %d", c.MaxBodySize)
	}

	if c.RatelimitRate <= 0 || c.RatelimitBurst <= 0 {
		return fmt.Errorf("invalid rate limit: %v requests per second, burst %d", c.RatelimitRate, c.RatelimitBurst)
	}

	if c.UpstreamURL != "" {
		u, err := url.Parse(c.UpstreamURL)
		if err != nil {
			return fmt.Errorf("invalid upstream-url: %w", err)
		}

		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("invalid upstream-url scheme: %q", c.UpstreamURL)
		}
	}

	return nil
}

func (c *Config) Parse() error {
	return c.ParseArgs(os.Args[0], os.Args[1:])
}

func (c *Config) ParseArgs(progname string, args []string) error {
	c.Flags.Init(progname, flag.ExitOnError)
	err := c.Flags.Parse(args)
	if err != nil {
		return err
	}

	// check if arguments were correctly parsed.
	if len(c.Flags.Args()) != 0 {
		return fmt.Errorf("invalid arguments: %s", c.Flags.Args())
	}

	if c.ConfigFile != "" {
		yamlFile, err := os.ReadFile(c.ConfigFile)
		if err != nil {
			return fmt.Errorf("invalid config file: %w", err)
		}

		err = yaml.Unmarshal(yamlFile, c)
		if err != nil {
			return fmt.Errorf("unmarshalling config file error: %w", err)
		}

		err = c.Flags.Parse(args)
		if err != nil {
			return err
		}
	}

	if err := validate(c); err != nil {
		return err
	}

	c.ApplicationLogLevel, _ = log.ParseLevel(c.ApplicationLogLevelString)
	c.HistogramMetricBuckets, _ = c.parseHistogramBuckets()
	return nil
}

func (c *Config) ToOptions() waypoint.Options {
	return waypoint.Options{
		// server:
		Address:                    c.Address,
		SupportListener:            c.SupportListener,
		ReadTimeoutServer:          c.ReadTimeoutServer,
		ReadHeaderTimeoutServer:    c.ReadHeaderTimeoutServer,
		WriteTimeoutServer:         c.WriteTimeoutServer,
		IdleTimeoutServer:          c.IdleTimeoutServer,
		MaxHeaderBytes:             c.MaxHeaderBytes,
		WaitForHealthcheckInterval: c.WaitForHealthcheckInterval,
		ShutdownTimeout:            c.ShutdownTimeout,
		RequestTimeout:             c.RequestTimeout,
		CleanPath:                  c.CleanPath,
		EnableCompression:          c.EnableCompression,
		MinCompressSize:            c.MinCompressSize,

		// logging:
		ApplicationLogOutput:      c.ApplicationLog,
		ApplicationLogPrefix:      c.ApplicationLogPrefix,
		ApplicationLogLevel:       c.ApplicationLogLevel,
		ApplicationLogJSONEnabled: c.ApplicationLogJSONEnabled,
		AccessLogOutput:           c.AccessLog,
		AccessLogDisabled:         c.AccessLogDisabled,
		AccessLogJSONEnabled:      c.AccessLogJSONEnabled,

		// metrics:
		MetricsFlavours:          c.MetricsFlavour.values,
		MetricsPrefix:            c.MetricsPrefix,
		EnableRuntimeMetrics:     c.RuntimeMetrics,
		EnableServeRouteMetrics:  c.ServeRouteMetrics,
		MetricsUseExpDecaySample: c.MetricsUseExpDecaySample,
		HistogramMetricBuckets:   c.HistogramMetricBuckets,

		// tracing:
		OpenTelemetry: c.OpenTelemetry,
	}
}

// UpstreamOptions returns the settings of the upstream client of the demo
// proxy route.
func (c *Config) UpstreamOptions() upstream.Options {
	return upstream.Options{
		URL:      c.UpstreamURL,
		Timeout:  c.UpstreamTimeout,
		MaxTries: c.UpstreamMaxTries,
		Breaker: upstream.BreakerSettings{
			Failures: c.UpstreamBreakerFailures,
			Timeout:  c.UpstreamBreakerTimeout,
		},
	}
}

func (c *Config) parseHistogramBuckets() ([]float64, error) {
	if c.HistogramMetricBucketsString == "" {
		return prometheus.DefBuckets, nil
	}

	var result []float64
	thresholds := strings.Split(c.HistogramMetricBucketsString, ",")
	for _, v := range thresholds {
		bucket, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("unable to parse histogram-metric-buckets: %w", err)
		}
		result = append(result, bucket)
	}
	sort.Float64s(result)
	return result, nil
}
