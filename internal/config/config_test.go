package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func validConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	downloads := filepath.Join(dir, "downloads")
	require.NoError(t, os.MkdirAll(downloads, 0o755))

	cfg := DefaultConfig(dir)
	cfg.Paths.DownloadRoots = []string{downloads}
	return cfg
}

func TestValidateRequiresDownloadRoots(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())
	require.Error(t, cfg.Validate())
}

func TestValidateAcceptsDefaults(t *testing.T) {
	cfg := validConfig(t)
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsUnknownArrType(t *testing.T) {
	cfg := validConfig(t)
	cfg.Arrs = []ArrInstanceConfig{{Name: "x", Type: "lidarr", URL: "http://x", APIKey: "k"}}
	require.Error(t, cfg.Validate())
}

func TestLoadConfigOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	downloads := filepath.Join(dir, "downloads")
	require.NoError(t, os.MkdirAll(downloads, 0o755))

	file := filepath.Join(dir, "config.yaml")
	content := `
paths:
  download_roots:
    - ` + downloads + `
log:
  level: debug
`
	require.NoError(t, os.WriteFile(file, []byte(content), 0o644))

	cfg, err := LoadConfig(file)
	require.NoError(t, err)
	require.Equal(t, []string{downloads}, cfg.Paths.DownloadRoots)
	require.Equal(t, "debug", cfg.Log.Level)
	// Defaults survive for unset sections.
	require.Equal(t, []string{"7z", "7za", "7zr"}, cfg.Tool.Candidates)
	require.Equal(t, "$T{ ($6)}{ ($Y)}", cfg.Rename.FolderPattern)
	require.NoError(t, cfg.Validate())
}

func TestManagerUpdateNotifiesCallbacks(t *testing.T) {
	cfg := validConfig(t)
	m := NewManager(cfg, "")

	var gotOld, gotNew *Config
	m.OnConfigChange(func(oldConfig, newConfig *Config) {
		gotOld, gotNew = oldConfig, newConfig
	})

	updated := cfg.DeepCopy()
	updated.Log.Level = "debug"
	require.NoError(t, m.UpdateConfig(updated))

	require.NotNil(t, gotOld)
	require.Equal(t, "debug", gotNew.Log.Level)
	require.Equal(t, "debug", m.GetConfig().Log.Level)
}

func TestManagerGetConfigReturnsCopy(t *testing.T) {
	cfg := validConfig(t)
	m := NewManager(cfg, "")

	snap := m.GetConfig()
	snap.Log.Level = "mutated"
	require.NotEqual(t, "mutated", m.GetConfig().Log.Level)
}

func TestSaveAndReloadRoundTrip(t *testing.T) {
	cfg := validConfig(t)
	file := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, SaveToFile(cfg, file))

	loaded, err := LoadConfig(file)
	require.NoError(t, err)
	require.Equal(t, cfg.Paths.DownloadRoots, loaded.Paths.DownloadRoots)
}
