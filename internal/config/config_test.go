package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("RECONCILE_INTERVAL", "")
	t.Setenv("JWT_SECRET", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "mysql", cfg.DBDriver)
	assert.Equal(t, 5*time.Minute, cfg.ReconcileInterval)
	assert.Equal(t, 500, cfg.ReconcileBatch)
	assert.False(t, cfg.KafkaEnabled())
	assert.NotEmpty(t, cfg.JWTSecret)
}

func TestLoad_DotEnvAndOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("DB_DRIVER=sqlite\nKAFKA_BROKERS=a:9092, b:9092\nNOTIFY_WORKERS=4\n"), 0o600))
	t.Setenv("NOTIFY_WORKERS", "8")
	t.Setenv("RECONCILE_INTERVAL", "30s")
	// godotenv 不覆盖已有变量；t.Setenv 会在结束时恢复
	t.Setenv("DB_DRIVER", "")
	t.Setenv("KAFKA_BROKERS", "")
	os.Unsetenv("DB_DRIVER")
	os.Unsetenv("KAFKA_BROKERS")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 8, cfg.NotifyWorkers)
	assert.Equal(t, 30*time.Second, cfg.ReconcileInterval)
}

func TestLoad_BadNumber(t *testing.T) {
	t.Setenv("REDIS_DB", "zero")
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorContains(t, err, "REDIS_DB")
}
