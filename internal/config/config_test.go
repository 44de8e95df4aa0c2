package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, "storage:\n  driver: memory\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, StorageDriverMemory, cfg.Storage.Driver)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, time.Hour, cfg.Aggregation.Interval)
	assert.Equal(t, 10*time.Second, cfg.Aggregation.StoreTimeout)
	assert.True(t, cfg.Aggregation.PreferPresence)
	assert.True(t, cfg.Aggregation.PreferPermission)
	assert.True(t, cfg.Aggregation.RunOnStart)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfig_YamlAndEnvOverride(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  trigger_token: from-yaml
storage:
  driver: postgres
database:
  dsn: postgres://u:p@localhost:5432/attendance
aggregation:
  interval: 15m
  timezone: UTC
  prefer_permission: false
`)
	t.Setenv("TRIGGER_TOKEN", "from-env")
	t.Setenv("ATTENDANCE_AGGREGATION_STORE_TIMEOUT", "3s")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "from-env", cfg.Server.TriggerToken)
	assert.Equal(t, 15*time.Minute, cfg.Aggregation.Interval)
	assert.Equal(t, 3*time.Second, cfg.Aggregation.StoreTimeout)
	assert.Equal(t, "UTC", cfg.Aggregation.Timezone)
	assert.False(t, cfg.Aggregation.PreferPermission)
	assert.True(t, cfg.Aggregation.PreferPresence)
}

func TestLoadConfig_Invalid(t *testing.T) {
	cases := map[string]string{
		"缺少DSN":   "storage:\n  driver: postgres\n",
		"未知存储":    "storage:\n  driver: mongo\n",
		"非法时区":    "storage:\n  driver: memory\naggregation:\n  timezone: Mars/Base\n",
		"非正周期":    "storage:\n  driver: memory\naggregation:\n  interval: 0s\n",
		"文件缺失不允许": "",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "missing.yaml")
			if content != "" {
				path = writeConfig(t, content)
			}
			_, err := LoadConfig(path)
			assert.Error(t, err)
		})
	}
}
