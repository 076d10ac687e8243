package config

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zalando/waypoint/otel"
)

func defaultConfig(with func(*Config)) *Config {
	cfg := &Config{
		Address:                   ":9090",
		SupportListener:           ":9911",
		ReadTimeoutServer:         5 * time.Minute,
		ReadHeaderTimeoutServer:   60 * time.Second,
		WriteTimeoutServer:        60 * time.Second,
		IdleTimeoutServer:         60 * time.Second,
		MaxHeaderBytes:            1048576,
		ShutdownTimeout:           30 * time.Second,
		MaxBodySize:               10 << 20,
		MinCompressSize:           512,
		ApplicationLogLevel:       log.InfoLevel,
		ApplicationLogLevelString: "INFO",
		ApplicationLogPrefix:      "[APP]",
		MetricsFlavour:            commaListFlag("codahale", "prometheus"),
		MetricsPrefix:             "waypoint.",
		RuntimeMetrics:            true,
		HistogramMetricBuckets:    prometheus.DefBuckets,
		RatelimitRate:             100,
		RatelimitBurst:            10,
		UpstreamTimeout:           10 * time.Second,
		UpstreamMaxTries:          3,
		UpstreamBreakerTimeout:    60 * time.Second,
	}

	if with != nil {
		with(cfg)
	}

	return cfg
}

func compareConfig(t *testing.T, expected, got *Config) {
	t.Helper()
	d := cmp.Diff(expected, got,
		cmp.AllowUnexported(listFlag{}),
		cmpopts.IgnoreFields(Config{}, "Flags", "OpenTelemetryFlag"),
	)

	if d != "" {
		t.Errorf("config mismatch (-want +got):\n%s", d)
	}
}

func TestDefaults(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, cfg.ParseArgs("waypoint", nil))
	compareConfig(t, defaultConfig(nil), cfg)
}

func TestParseArgs(t *testing.T) {
	for _, tt := range []struct {
		name     string
		args     []string
		expected *Config
		fail     bool
	}{{
		name: "extra arguments",
		args: []string{"arg1"},
		fail: true,
	}, {
		name: "non-existing config file",
		args: []string{"-config-file=non-existent.yaml"},
		fail: true,
	}, {
		name: "invalid value in the config file",
		args: []string{"-config-file=testdata/invalid.yaml"},
		fail: true,
	}, {
		name: "invalid log level",
		args: []string{"-application-log-level=loud"},
		fail: true,
	}, {
		name: "invalid upstream scheme",
		args: []string{"-upstream-url=ftp://files.example.org"},
		fail: true,
	}, {
		name: "flags",
		args: []string{"-address=:8080", "-metrics-flavour=prometheus", "-open-telemetry={service-name: todos}", "-ratelimit-burst=3"},
		expected: defaultConfig(func(c *Config) {
			c.Address = ":8080"
			c.MetricsFlavour = &listFlag{
				sep:     ",",
				allowed: map[string]bool{"codahale": true, "prometheus": true},
				value:   "prometheus",
				values:  []string{"prometheus"},
			}
			c.OpenTelemetry = &otel.Options{ServiceName: "todos"}
			c.RatelimitBurst = 3
		}),
	}, {
		name: "flags overwrite the config file",
		args: []string{"-config-file=testdata/test.yaml", "-address=localhost:8080", "-upstream-max-tries=1"},
		expected: defaultConfig(func(c *Config) {
			c.ConfigFile = "testdata/test.yaml"
			c.Address = "localhost:8080"
			c.RequestTimeout = 2 * time.Second
			c.CleanPath = true
			c.ApplicationLogLevelString = "warn"
			c.ApplicationLogLevel = log.WarnLevel
			c.MetricsFlavour = &listFlag{
				sep:     ",",
				allowed: map[string]bool{"codahale": true, "prometheus": true},
				value:   "codahale,prometheus",
				values:  []string{"codahale", "prometheus"},
			}
			c.HistogramMetricBucketsString = "0.5,0.1,1"
			c.HistogramMetricBuckets = []float64{0.1, 0.5, 1}
			c.OpenTelemetry = &otel.Options{ServiceName: "todos"}
			c.UpstreamURL = "http://todos.example.org"
			c.UpstreamMaxTries = 1
		}),
	}} {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			err := cfg.ParseArgs("waypoint", tt.args)
			if tt.fail {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			compareConfig(t, tt.expected, cfg)
		})
	}
}

func TestValidate(t *testing.T) {
	for _, tt := range []struct {
		name     string
		change   func(*Config)
		expected error
	}{{
		name:   "valid",
		change: func(*Config) {},
	}, {
		name:     "log level",
		change:   func(c *Config) { c.ApplicationLogLevelString = "wrongLevel" },
		expected: errors.New(`not a valid logrus Level: "wrongLevel"`),
	}, {
		name:     "histogram buckets",
		change:   func(c *Config) { c.HistogramMetricBucketsString = "5,10,abc" },
		expected: errors.New(`unable to parse histogram-metric-buckets: strconv.ParseFloat: parsing "abc": invalid syntax`),
	}, {
		name:     "body size",
		change:   func(c *Config) { c.MaxBodySize = 0 },
		expected: errors.New("invalid max-body-size: 0"),
	}, {
		name:     "rate limit",
		change:   func(c *Config) { c.RatelimitBurst = 0 },
		expected: errors.New("invalid rate limit: 100 requests per second, burst 0"),
	}, {
		name:     "upstream scheme",
		change:   func(c *Config) { c.UpstreamURL = "todos.example.org" },
		expected: errors.New(`invalid upstream-url scheme: "todos.example.org"`),
	}} {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig(tt.change)
			err := validate(cfg)
			if tt.expected == nil {
				assert.NoError(t, err)
				return
			}

			assert.EqualError(t, err, tt.expected.Error())
		})
	}
}

func TestParseHistogramBuckets(t *testing.T) {
	for _, tt := range []struct {
		input    string
		expected []float64
	}{
		{"", prometheus.DefBuckets},
		{"1", []float64{1}},
		{"1,1.33,1.5,1.66,2", []float64{1, 1.33, 1.5, 1.66, 2}},
		{" 2, 0.5 ", []float64{0.5, 2}},
	} {
		cfg := &Config{HistogramMetricBucketsString: tt.input}
		got, err := cfg.parseHistogramBuckets()
		require.NoError(t, err)
		assert.Equal(t, tt.expected, got, tt.input)
	}
}

func TestToOptions(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, cfg.ParseArgs("waypoint", []string{
		"-config-file=testdata/test.yaml",
		"-access-log-disabled",
		"-enable-compression",
		"-wait-for-healthcheck-interval=3s",
	}))

	o := cfg.ToOptions()
	assert.Equal(t, "localhost:9999", o.Address)
	assert.Equal(t, ":9911", o.SupportListener)
	assert.Equal(t, 2*time.Second, o.RequestTimeout)
	assert.Equal(t, 3*time.Second, o.WaitForHealthcheckInterval)
	assert.True(t, o.CleanPath)
	assert.True(t, o.AccessLogDisabled)
	assert.True(t, o.EnableCompression)
	assert.Equal(t, log.WarnLevel, o.ApplicationLogLevel)
	assert.Equal(t, []string{"codahale", "prometheus"}, o.MetricsFlavours)
	assert.Equal(t, []float64{0.1, 0.5, 1}, o.HistogramMetricBuckets)
	assert.Equal(t, &otel.Options{ServiceName: "todos"}, o.OpenTelemetry)

	uo := cfg.UpstreamOptions()
	assert.Equal(t, "http://todos.example.org", uo.URL)
	assert.Equal(t, uint(5), uo.MaxTries)
	assert.Equal(t, 10*time.Second, uo.Timeout)
	assert.Equal(t, 0, uo.Breaker.Failures)
}
