package metrics

import (
	"strings"
	"time"

	metrics "github.com/rcrowley/go-metrics"
)

const (
	defaultUniformReservoirSize  = 1024
	defaultExpDecayReservoirSize = 1028
	defaultExpDecayAlpha         = 0.015
)

func newUniformSample() metrics.Sample {
	return metrics.NewUniformSample(defaultUniformReservoirSize)
}

func newExpDecaySample() metrics.Sample {
	return metrics.NewExpDecaySample(defaultExpDecayReservoirSize, defaultExpDecayAlpha)
}

func createTimer(sample metrics.Sample) metrics.Timer {
	return metrics.NewCustomTimer(metrics.NewHistogram(sample), metrics.NewMeter())
}

// HostKey escapes a host name for use in a CodaHale metrics key.
func HostKey(h string) string {
	h = strings.ReplaceAll(h, ".", "_")
	h = strings.ReplaceAll(h, ":", "__")
	return h
}

func measuredMethod(m string) string {
	switch m {
	case "OPTIONS",
		"GET",
		"HEAD",
		"POST",
		"PUT",
		"PATCH",
		"DELETE",
		"TRACE",
		"CONNECT":
		return m
	default:
		return "_unknownmethod_"
	}
}

func measuredRoute(route string) string {
	if route == "" {
		return "_unnamed_"
	}

	return route
}

func sinceS(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Second)
}
