package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"fullscreen-overlay/internal/buttons"
)

type Config struct {
	Pipe      PipeConfig      `yaml:"pipe"`
	Injector  InjectorConfig  `yaml:"injector"`
	Policy    PolicyConfig    `yaml:"policy"`
	Buttons   ButtonsConfig   `yaml:"buttons"`
	Radio     RadioConfig     `yaml:"radio"`
	Warning   WarningConfig   `yaml:"warning"`
	StatusAPI StatusAPIConfig `yaml:"status_api"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type PipeConfig struct {
	Name           string        `yaml:"name"`            // Well-known channel name shared with the injected module
	ReconnectDelay time.Duration `yaml:"reconnect_delay"` // Pause between a closed connection and the next listen
	BufferSize     int           `yaml:"buffer_size"`     // Pipe in/out buffer size in bytes
}

type InjectorConfig struct {
	Helper32      string `yaml:"helper_32"`       // 32-bit injection helper executable
	Helper64      string `yaml:"helper_64"`       // 64-bit injection helper executable
	Module32      string `yaml:"module_32"`       // 32-bit rendering module
	Module64      string `yaml:"module_64"`       // 64-bit rendering module
	LoadTimeoutMs int    `yaml:"load_timeout_ms"` // Budget for the helper's internal load attempt
}

type PolicyConfig struct {
	SimpleOverlayApps  string `yaml:"simple_overlay_apps"`  // Semicolon separated, exact match
	ForcedExternalApps string `yaml:"forced_external_apps"` // Semicolon separated, exact match
	DefaultBrowser     string `yaml:"default_browser"`      // Overrides registry lookup when set
}

type ButtonsConfig struct {
	// Table is kept in single-line form (entries separated by ';') after load.
	Table string `yaml:"table"`
}

type RadioConfig struct {
	// nil 表示未配置；显式的 0 是合法的静音默认值
	DefaultVolume *int           `yaml:"default_volume"`
	PlayerCommand string         `yaml:"player_command"` // e.g. "ffplay -nodisp -loglevel quiet -volume {volume} {url}"
	Stations      []StationEntry `yaml:"stations"`
}

// Volume 返回默认音量
func (r RadioConfig) Volume() int {
	if r.DefaultVolume == nil {
		return defaultRadioVolume
	}
	return *r.DefaultVolume
}

const defaultRadioVolume = 50

type StationEntry struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

type WarningConfig struct {
	Minutes      []int  `yaml:"minutes"`       // Menu entries, in order
	DisableLabel string `yaml:"disable_label"` // Trailing sentinel entry
}

type StatusAPIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

type LoggingConfig struct {
	Level       string `yaml:"level"`
	FileEnabled bool   `yaml:"file_enabled"`  // Enable file logging
	FilePath    string `yaml:"file_path"`     // Log file path
	MaxFileSize string `yaml:"max_file_size"` // Max file size (e.g., "10MB")
	MaxFiles    int    `yaml:"max_files"`     // Max number of rotated files to keep
}

// LoadConfig loads configuration from file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML bytes, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.setDefaults()

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var c Config
	c.setDefaults()
	return &c
}

// setDefaults sets default values for configuration
func (c *Config) setDefaults() {
	if c.Pipe.Name == "" {
		c.Pipe.Name = "FullscreenOverlayPipe"
	}
	if c.Pipe.ReconnectDelay == 0 {
		c.Pipe.ReconnectDelay = 500 * time.Millisecond
	}
	if c.Pipe.BufferSize == 0 {
		c.Pipe.BufferSize = 4096
	}

	if c.Injector.LoadTimeoutMs == 0 {
		c.Injector.LoadTimeoutMs = 10000
	}
	if c.Injector.Helper32 == "" {
		c.Injector.Helper32 = filepath.Join("bin", "injector32.exe")
	}
	if c.Injector.Helper64 == "" {
		c.Injector.Helper64 = filepath.Join("bin", "injector64.exe")
	}
	if c.Injector.Module32 == "" {
		c.Injector.Module32 = filepath.Join("bin", "overlay32.dll")
	}
	if c.Injector.Module64 == "" {
		c.Injector.Module64 = filepath.Join("bin", "overlay64.dll")
	}

	// The table may be written as a YAML block; everything downstream expects
	// the single-line form.
	c.Buttons.Table = buttons.ConvertToSingleLine(c.Buttons.Table)

	if c.Radio.DefaultVolume == nil {
		v := defaultRadioVolume
		c.Radio.DefaultVolume = &v
	}

	if len(c.Warning.Minutes) == 0 {
		c.Warning.Minutes = []int{5, 10, 15, 30, 60}
	}
	if c.Warning.DisableLabel == "" {
		c.Warning.DisableLabel = "Off"
	}

	if c.StatusAPI.Listen == "" {
		c.StatusAPI.Listen = "127.0.0.1:18765"
	}

	if c.Storage.DatabasePath == "" {
		c.Storage.DatabasePath = filepath.Join(getConfigAppDataDir(), "overlay.db")
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = filepath.Join(getConfigAppDataDir(), "logs", "overlay.log")
	}
	if c.Logging.MaxFileSize == "" {
		c.Logging.MaxFileSize = "10MB"
	}
	if c.Logging.MaxFiles == 0 {
		c.Logging.MaxFiles = 5
	}
}

// validate validates the configuration
func (c *Config) validate() error {
	if strings.ContainsAny(c.Pipe.Name, `\/`) {
		return fmt.Errorf("pipe name must not contain path separators: %q", c.Pipe.Name)
	}
	if c.Pipe.ReconnectDelay < 0 {
		return fmt.Errorf("pipe reconnect_delay must be non-negative")
	}
	if c.Injector.LoadTimeoutMs < 0 {
		return fmt.Errorf("injector load_timeout_ms must be non-negative")
	}
	if v := c.Radio.Volume(); v < 0 || v > 100 {
		return fmt.Errorf("radio default_volume must be between 0 and 100, got %d", v)
	}
	for i, s := range c.Radio.Stations {
		if s.Name == "" || s.URL == "" {
			return fmt.Errorf("radio station %d: name and url are required", i)
		}
		if strings.Contains(s.Name, ",") {
			return fmt.Errorf("radio station %q: name must not contain ','", s.Name)
		}
	}
	for _, m := range c.Warning.Minutes {
		if m <= 0 {
			return fmt.Errorf("warning minutes must be positive, got %d", m)
		}
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging level: %s", c.Logging.Level)
	}
	return nil
}

// reloadDebounce collapses bursts of write events from editors into one reload
var reloadDebounce = 500 * time.Millisecond

// ConfigWatcher handles automatic configuration reloading
type ConfigWatcher struct {
	configPath    string
	config        *Config
	mutex         sync.RWMutex
	watcher       *fsnotify.Watcher
	logger        *slog.Logger
	callbacks     []func(*Config)
	lastModTime   time.Time
	debounceTimer *time.Timer
	debounce      time.Duration
}

// NewConfigWatcher creates a new configuration watcher
func NewConfigWatcher(configPath string, logger *slog.Logger) (*ConfigWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	// Load initial configuration
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load initial config: %w", err)
	}

	// Get initial modification time
	fileInfo, err := os.Stat(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}

	// Create file watcher
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	cw := &ConfigWatcher{
		configPath:  configPath,
		config:      config,
		watcher:     watcher,
		logger:      logger,
		callbacks:   make([]func(*Config), 0),
		lastModTime: fileInfo.ModTime(),
		debounce:    reloadDebounce,
	}

	// Add config file to watcher
	if err := watcher.Add(configPath); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch config file: %w", err)
	}

	// Start watching in background
	go cw.watchLoop()

	return cw, nil
}

// GetConfig returns the current configuration (thread-safe)
func (cw *ConfigWatcher) GetConfig() *Config {
	cw.mutex.RLock()
	defer cw.mutex.RUnlock()
	return cw.config
}

// UpdateLogger updates the logger used by the config watcher
func (cw *ConfigWatcher) UpdateLogger(logger *slog.Logger) {
	cw.mutex.Lock()
	defer cw.mutex.Unlock()
	cw.logger = logger
}

// AddReloadCallback adds a callback function that will be called when config is reloaded
func (cw *ConfigWatcher) AddReloadCallback(callback func(*Config)) {
	cw.mutex.Lock()
	defer cw.mutex.Unlock()
	cw.callbacks = append(cw.callbacks, callback)
}

func (cw *ConfigWatcher) log() *slog.Logger {
	cw.mutex.RLock()
	defer cw.mutex.RUnlock()
	return cw.logger
}

// watchLoop monitors the config file for changes
func (cw *ConfigWatcher) watchLoop() {
	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}

			// Handle file write events
			if event.Has(fsnotify.Write) {
				// Check if file was actually modified by comparing modification time
				fileInfo, err := os.Stat(cw.configPath)
				if err != nil {
					cw.log().Warn(fmt.Sprintf("⚠️ 无法获取配置文件信息: %v", err))
					continue
				}

				// Skip if modification time hasn't changed
				if !fileInfo.ModTime().After(cw.lastModTime) {
					continue
				}

				cw.lastModTime = fileInfo.ModTime()

				// Cancel any existing debounce timer
				if cw.debounceTimer != nil {
					cw.debounceTimer.Stop()
				}

				// Set up debounce timer to avoid multiple rapid reloads
				cw.debounceTimer = time.AfterFunc(cw.debounce, func() {
					cw.log().Info(fmt.Sprintf("🔄 检测到配置文件变更，正在重新加载... - 文件: %s", event.Name))
					if err := cw.reloadConfig(); err != nil {
						cw.log().Error(fmt.Sprintf("❌ 配置文件重新加载失败: %v", err))
					} else {
						cw.log().Info("✅ 配置文件重新加载成功")
					}
				})
			}

			// Handle file rename/remove events (some editors rename files during save)
			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				// Re-add the file to watcher in case it was recreated
				time.Sleep(100 * time.Millisecond) // Give time for the file to be recreated
				if _, err := os.Stat(cw.configPath); err == nil {
					cw.watcher.Add(cw.configPath)
					cw.log().Info(fmt.Sprintf("🔄 重新监听配置文件: %s", cw.configPath))
					if err := cw.reloadConfig(); err != nil {
						cw.log().Error(fmt.Sprintf("❌ 配置文件重新加载失败: %v", err))
					}
				}
			}

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.log().Error(fmt.Sprintf("⚠️ 配置文件监听错误: %v", err))
		}
	}
}

// reloadConfig reloads the configuration from file
func (cw *ConfigWatcher) reloadConfig() error {
	newConfig, err := LoadConfig(cw.configPath)
	if err != nil {
		return err
	}

	cw.mutex.Lock()
	oldConfig := cw.config
	cw.config = newConfig
	callbacks := make([]func(*Config), len(cw.callbacks))
	copy(callbacks, cw.callbacks)
	cw.mutex.Unlock()

	// Call all registered callbacks
	for _, callback := range callbacks {
		callback(newConfig)
	}

	cw.logConfigChanges(oldConfig, newConfig)

	return nil
}

// logConfigChanges logs the key differences between old and new configurations
func (cw *ConfigWatcher) logConfigChanges(oldConfig, newConfig *Config) {
	logger := cw.log()

	if oldConfig.Policy != newConfig.Policy {
		logger.Info("🛡️ 覆盖策略变更",
			"simple_overlay_apps", newConfig.Policy.SimpleOverlayApps,
			"forced_external_apps", newConfig.Policy.ForcedExternalApps)
	}

	if oldConfig.Buttons.Table != newConfig.Buttons.Table {
		logger.Info("🎛️ 自定义按钮表变更",
			"entries", strings.Count(newConfig.Buttons.Table, ";")+1)
	}

	if len(oldConfig.Radio.Stations) != len(newConfig.Radio.Stations) {
		logger.Info("📻 电台数量变更",
			"old_count", len(oldConfig.Radio.Stations),
			"new_count", len(newConfig.Radio.Stations))
	}

	if oldConfig.Pipe.Name != newConfig.Pipe.Name {
		logger.Warn("🔌 管道名称变更需要重启后生效",
			"old_name", oldConfig.Pipe.Name,
			"new_name", newConfig.Pipe.Name)
	}
}

// Close stops the configuration watcher
func (cw *ConfigWatcher) Close() error {
	// Cancel any pending debounce timer
	if cw.debounceTimer != nil {
		cw.debounceTimer.Stop()
	}
	return cw.watcher.Close()
}

// SaveConfig saves configuration to file. The button table is written in its
// multi-line form so it stays editable by hand.
func SaveConfig(config *Config, path string) error {
	out := *config
	out.Buttons.Table = buttons.ConvertToMultiLine(config.Buttons.Table)

	// Marshal config to YAML
	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Write to a temp file first, then rename so the watcher never reads a half-written file
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace config file: %w", err)
	}
	return nil
}

// AppDataDir 返回应用数据目录
func AppDataDir() string {
	return getConfigAppDataDir()
}

// getConfigAppDataDir 获取应用数据目录（跨平台）
// Windows: %APPDATA%\FullscreenOverlay
// macOS: ~/Library/Application Support/FullscreenOverlay
// Linux: ~/.local/share/fullscreen-overlay
func getConfigAppDataDir() string {
	var baseDir string

	switch runtime.GOOS {
	case "windows":
		baseDir = os.Getenv("APPDATA")
		if baseDir == "" {
			baseDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		return filepath.Join(baseDir, "FullscreenOverlay")

	case "darwin":
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "Library", "Application Support", "FullscreenOverlay")

	case "linux":
		homeDir, _ := os.UserHomeDir()
		xdgDataHome := os.Getenv("XDG_DATA_HOME")
		if xdgDataHome != "" {
			return filepath.Join(xdgDataHome, "fullscreen-overlay")
		}
		return filepath.Join(homeDir, ".local", "share", "fullscreen-overlay")

	default:
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".fullscreen-overlay")
	}
}
