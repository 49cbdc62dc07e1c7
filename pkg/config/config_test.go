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
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const minimalConfig = `
watch:
  dir: /tmp/incoming
schema:
  fields:
    - name: name
      type: string
      required: true
    - name: age
      type: int
      min: 0
`

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/incoming", cfg.Watch.Dir)
	assert.Equal(t, 2*time.Second, cfg.Watch.PollInterval.Std())
	assert.Equal(t, time.Second, cfg.Watch.StabilityDelay.Std())
	assert.Equal(t, 4, cfg.Watch.Workers)
	assert.Equal(t, 60, cfg.Watch.MaxRetries)
	assert.Equal(t, "parquet", cfg.Sink.Type)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.DryRun)
}

func TestLoadDurations(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
watch:
  dir: /tmp/incoming
  pollInterval: 500ms
  stabilityDelay: 2
schema:
  fields:
    - name: id
      type: int
`))
	require.NoError(t, err)

	assert.Equal(t, 500*time.Millisecond, cfg.Watch.PollInterval.Std())
	// A bare number means seconds.
	assert.Equal(t, 2*time.Second, cfg.Watch.StabilityDelay.Std())
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("TEST_MONGO_URI", "mongodb://db.internal:27017")

	cfg, err := Load(writeConfig(t, `
watch:
  dir: /tmp/incoming
schema:
  fields:
    - name: id
      type: int
sink:
  type: mongodb
  mongodb:
    uri: ${TEST_MONGO_URI}
    database: mydb
    collection: records
`))
	require.NoError(t, err)
	assert.Equal(t, "mongodb://db.internal:27017", cfg.Sink.Mongo.URI)
}

func TestLoadMissingDir(t *testing.T) {
	_, err := Load(writeConfig(t, `
schema:
  fields:
    - name: id
      type: int
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "watch.dir")
}

func TestLoadInvalidSchema(t *testing.T) {
	_, err := Load(writeConfig(t, `
watch:
  dir: /tmp/incoming
schema:
  fields:
    - name: id
      type: uuid
`))
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
