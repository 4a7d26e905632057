package telemetry

import (
	"context"
	"testing"

	"github.com/academvault/discussions/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_None(t *testing.T) {
	shutdown, err := Init(context.Background(), config.AppConfig{Name: "test"}, config.TelemetryConfig{Exporter: "none"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInit_Stdout(t *testing.T) {
	shutdown, err := Init(context.Background(), config.AppConfig{Name: "test"}, config.TelemetryConfig{Exporter: "stdout"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInit_Unknown(t *testing.T) {
	_, err := Init(context.Background(), config.AppConfig{}, config.TelemetryConfig{Exporter: "zipkin"})
	assert.ErrorIs(t, err, ErrUnknownExporter)
}
