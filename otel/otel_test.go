package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInit(t *testing.T) {
	t.Setenv("OTEL_TRACES_EXPORTER", "none")

	shutdown, err := Init(context.Background(), &Options{ServiceName: "waypoint"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestInitDebugExporter(t *testing.T) {
	t.Setenv("OTEL_TRACES_EXPORTER", DebugExporter)

	shutdown, err := Init(context.Background(), &Options{})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestInitializedExternally(t *testing.T) {
	shutdown, err := Init(context.Background(), &Options{Initialized: true})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
