package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	require.NoError(t, err)

	assert.Equal(t, "FullscreenOverlayPipe", cfg.Pipe.Name)
	assert.Equal(t, 500*time.Millisecond, cfg.Pipe.ReconnectDelay)
	assert.Equal(t, 10000, cfg.Injector.LoadTimeoutMs)
	assert.Equal(t, 50, cfg.Radio.Volume())
	assert.Equal(t, []int{5, 10, 15, 30, 60}, cfg.Warning.Minutes)
	assert.Equal(t, "Off", cfg.Warning.DisableLabel)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestParse_ExplicitZeroVolumeKept(t *testing.T) {
	cfg, err := Parse([]byte("radio:\n  default_volume: 0\n"))
	require.NoError(t, err)
	require.NotNil(t, cfg.Radio.DefaultVolume)
	assert.Equal(t, 0, cfg.Radio.Volume())
}

func TestParse_ButtonTableNormalized(t *testing.T) {
	data := []byte(`
buttons:
  table: |
    game.exe|Pause|ESC

    game.exe|Map|M
`)
	cfg, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "game.exe|Pause|ESC;game.exe|Map|M", cfg.Buttons.Table)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"pipe name with separator", "pipe:\n  name: 'a\\b'\n"},
		{"volume out of range", "radio:\n  default_volume: 120\n"},
		{"station without url", "radio:\n  stations:\n    - name: Jazz\n"},
		{"station name with comma", "radio:\n  stations:\n    - name: 'A,B'\n      url: http://x\n"},
		{"negative warning", "warning:\n  minutes: [5, -1]\n"},
		{"bad log level", "logging:\n  level: verbose\n"},
		{"not yaml", "pipe: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	cfg := Default()
	cfg.Buttons.Table = "game.exe|Pause|ESC;game.exe|Map|M"
	cfg.Radio.Stations = []StationEntry{{Name: "Jazz", URL: "http://radio.example/jazz"}}
	require.NoError(t, SaveConfig(cfg, path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "game.exe|Pause|ESC\n")

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Buttons.Table, loaded.Buttons.Table)
	assert.Equal(t, cfg.Radio.Stations, loaded.Radio.Stations)
}

func TestLoadConfig_Missing(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestConfigWatcher_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("policy:\n  forced_external_apps: a\n"), 0644))

	old := reloadDebounce
	reloadDebounce = 10 * time.Millisecond
	t.Cleanup(func() { reloadDebounce = old })

	cw, err := NewConfigWatcher(path, nil)
	require.NoError(t, err)
	defer cw.Close()

	reloaded := make(chan *Config, 1)
	cw.AddReloadCallback(func(c *Config) {
		select {
		case reloaded <- c:
		default:
		}
	})

	assert.Equal(t, "a", cw.GetConfig().Policy.ForcedExternalApps)

	// 保证修改时间前进
	time.Sleep(20 * time.Millisecond)
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.WriteFile(path, []byte("policy:\n  forced_external_apps: b;c\n"), 0644))
	require.NoError(t, os.Chtimes(path, future, future))

	select {
	case c := <-reloaded:
		assert.Equal(t, "b;c", c.Policy.ForcedExternalApps)
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}
	assert.Equal(t, "b;c", cw.GetConfig().Policy.ForcedExternalApps)
}
