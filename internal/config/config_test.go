package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calgrid/internal/calendar"
	"calgrid/internal/config"
)

func TestLoad_FirstRunWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sunday", cfg.WeekStart)
	assert.Equal(t, calendar.DefaultInlineLimit, cfg.InlineLimit)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoad_NormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
timezone: Asia/Seoul
week_start: friday
inline_limit: 0
sources:
  - url: https://example.com/a.ics
    name: Acme
  - url: https://example.com/b.ics
    id: acme-ops
    entity: acme
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sunday", cfg.WeekStart, "unknown week start falls back")
	assert.Equal(t, 3, cfg.InlineLimit)
	assert.Equal(t, "*/15 * * * *", cfg.RefreshCron)
	require.Len(t, cfg.Sources, 2)
	assert.Equal(t, "Acme", cfg.Sources[0].ID)
	assert.Equal(t, "Acme", cfg.Sources[0].Entity)
	assert.Equal(t, "acme", cfg.Sources[1].Entity)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [oops"), 0o600))

	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestCalendarOptions(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.WeekStart = "monday"
	cfg.Timezone = "UTC"

	opts, err := cfg.CalendarOptions()
	require.NoError(t, err)
	assert.Equal(t, calendar.WeekStartMonday, opts.WeekStart)
	assert.Equal(t, time.UTC, opts.Location)

	cfg.Timezone = "Mars/Olympus"
	_, err = cfg.CalendarOptions()
	assert.Error(t, err)
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := config.DefaultConfig()
	cfg.Sources = append(cfg.Sources, config.SourceConfig{URL: "https://example.com/x.ics", ID: "x"})

	require.NoError(t, config.Save(path, cfg))
	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestSave_Rejects(t *testing.T) {
	assert.Error(t, config.Save("", config.DefaultConfig()))
	assert.Error(t, config.Save(filepath.Join(t.TempDir(), "c.yaml"), nil))
}
