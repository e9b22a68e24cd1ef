package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRuntimeConfig_NoFilePresentUsesDefaults(t *testing.T) {
	rc, err := LoadRuntimeConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))

	require.NoError(t, err)
	assert.Equal(t, DefaultRuntimeConfig(), rc)
}

func TestLoadRuntimeConfig_FilePresentOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "runtime.yaml")
	writeYAML(t, path, `
feed_concurrency: 7
fanout_cron: "*/5 * * * *"
`)

	rc, err := LoadRuntimeConfig(path)

	require.NoError(t, err)
	assert.Equal(t, 7, rc.FeedConcurrency)
	assert.Equal(t, "*/5 * * * *", rc.FanoutCron)
	// Fields the file didn't set still fall back to the package defaults.
	assert.Equal(t, DefaultRuntimeConfig().JobRetention, rc.JobRetention)
	assert.Equal(t, DefaultConsumerGroup, rc.ConsumerGroup)
}

func TestRuntimeConfig_ConversionMethods(t *testing.T) {
	rc := DefaultRuntimeConfig()

	assert.Equal(t, rc.IngestWindow, rc.ProcessorConfig().Window)
	assert.Equal(t, rc.FanoutCron, rc.SchedulerConfig().FanoutCron)
	assert.Equal(t, rc.JobRetention, rc.GCConfig().JobRetention)
}

func writeYAML(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}
