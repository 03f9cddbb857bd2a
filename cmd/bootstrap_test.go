package main

import (
	"testing"

	"capkv/internal/configuration"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServices_optionalParts(t *testing.T) {
	cfg := configuration.Default()
	cfg.App.MetricsAddr = ""
	cfg.Simulation.JournalDir = ""

	s, err := NewServices(cfg)
	require.NoError(t, err)
	assert.Nil(t, s.Metrics)
	assert.Nil(t, s.Journal)
	assert.NotNil(t, s.Runner)
	require.NoError(t, s.Close())
}

func TestNewServices_journalAndMetrics(t *testing.T) {
	cfg := configuration.Default()
	cfg.App.MetricsAddr = "127.0.0.1:0"
	cfg.Simulation.JournalDir = t.TempDir()

	s, err := NewServices(cfg)
	require.NoError(t, err)
	require.NotNil(t, s.Metrics)
	require.NotNil(t, s.Journal)
	assert.Equal(t, cfg.Simulation.JournalDir, s.Journal.Dir())
	require.NoError(t, s.Close())
}

func TestNewServices_badMetricsAddr(t *testing.T) {
	cfg := configuration.Default()
	cfg.App.MetricsAddr = "not-an-address"

	_, err := NewServices(cfg)
	require.Error(t, err)
}
