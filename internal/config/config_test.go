package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stumelius/cranio-sub000/internal/db"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Empty()
	assert.Equal(t, "cranio.db", cfg.GetDatabasePath())
	assert.Equal(t, "/dev/ttyUSB0", cfg.GetSerialPort())
	assert.Equal(t, db.DistractorKLSRED, cfg.GetDefaultDistractor())
	assert.Equal(t, 10*time.Millisecond, cfg.GetSampleDelay())
	assert.Equal(t, 50*time.Millisecond, cfg.GetUIPollInterval())
	assert.Equal(t, time.Second, cfg.GetJoinTimeout())
	assert.Equal(t, 1024, cfg.GetQueueCapacity())
}

func TestLoadPartialConfig(t *testing.T) {
	path := writeConfig(t, `{"database_path": "/tmp/test.db", "ui_poll_interval": "100ms"}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/test.db", cfg.GetDatabasePath())
	assert.Equal(t, 100*time.Millisecond, cfg.GetUIPollInterval())
	assert.Equal(t, time.Second, cfg.GetJoinTimeout(), "omitted fields keep defaults")
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := writeConfig(t, `{"join_timeout": "banana"}`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsUnknownDistractor(t *testing.T) {
	path := writeConfig(t, `{"default_distractor": "no such device"}`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsNonJSONExtension(t *testing.T) {
	_, err := Load("config.yaml")
	assert.Error(t, err)
}

func TestLoadRejectsNonPositiveQueue(t *testing.T) {
	path := writeConfig(t, `{"queue_capacity": 0}`)
	_, err := Load(path)
	assert.Error(t, err)
}
