package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	cfg, err := LoadConfig()
	require.Error(t, err, "empty driver is rejected")

	t.Setenv("STORE_DRIVER", "Memory")
	cfg, err = LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, StoreDriverMemory, cfg.StoreDriver)
	assert.Equal(t, 8, cfg.CostFanout)
	assert.Equal(t, 5*time.Second, cfg.PartitionReadTimeout)
	assert.Equal(t, 2*time.Minute, cfg.CostCacheTTL)
	assert.Equal(t, "sitecost_session", cfg.SessionCookie)
	assert.Equal(t, ":9091", cfg.WorkerMetricsAddr)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	t.Setenv("STORE_DRIVER", "mongo")
	t.Setenv("COST_FANOUT", "0")
	t.Setenv("PARTITION_READ_TIMEOUT", "-1s")
	t.Setenv("WORKER_METRICS_ADDR", " ")
	t.Setenv("DEMO_DATA", "true")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store driver")
	assert.Contains(t, err.Error(), "cost fanout")
	assert.Contains(t, err.Error(), "partition read timeout")
	assert.Contains(t, err.Error(), "worker metrics address")
	assert.Contains(t, err.Error(), "demo data requires the memory store driver")
}

func TestIsProduction(t *testing.T) {
	var nilCfg *Config
	assert.False(t, nilCfg.IsProduction())
	assert.True(t, (&Config{AppEnv: "production"}).IsProduction())
}
