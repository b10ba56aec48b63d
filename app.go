// app.go - 宿主应用核心结构
// 组装注入器、管道服务、会话协调器与各协作者，并管理生命周期

package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"fullscreen-overlay/config"
	"fullscreen-overlay/internal/inject"
	"fullscreen-overlay/internal/input"
	"fullscreen-overlay/internal/logging"
	"fullscreen-overlay/internal/overlay"
	"fullscreen-overlay/internal/pipe"
	"fullscreen-overlay/internal/policy"
	"fullscreen-overlay/internal/process"
	"fullscreen-overlay/internal/radio"
	"fullscreen-overlay/internal/session"
	"fullscreen-overlay/internal/statusapi"
	"fullscreen-overlay/internal/store"
	"fullscreen-overlay/internal/tray"
	"fullscreen-overlay/internal/warning"
)

// AppOptions 启动参数
type AppOptions struct {
	ConfigPath string
	InjectPID  uint32
	Tray       bool
}

// App 封装所有业务组件
type App struct {
	opts AppOptions
	ctx  context.Context

	configWatcher *config.ConfigWatcher
	logger        *slog.Logger
	logHandler    *logging.SimpleHandler

	db       *sql.DB
	settings *store.SQLiteSettingsStore

	state       *session.State
	coordinator *session.Coordinator
	pipeServer  *pipe.Server
	injector    *inject.Injector
	policy      *policy.Classifier
	radio       *radio.Service
	warning     *warning.Timer
	legacy      *overlay.Legacy
	keys        *input.Simulator
	tray        tray.Controller

	mu         sync.RWMutex
	attachment *inject.Attachment
	wg         sync.WaitGroup
}

// NewApp 创建新的应用实例
func NewApp(opts AppOptions) *App {
	return &App{opts: opts}
}

// Run starts every component and blocks until ctx is cancelled or the user
// quits from the tray.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.ctx = ctx

	// 1. 配置与日志
	if err := a.loadConfig(); err != nil {
		return err
	}
	a.setupLogger()
	a.logger.Info("🚀 全屏浮层宿主启动中...",
		"version", Version,
		"config_file", a.opts.ConfigPath)

	// 2. 本地设置存储（失败时继续运行，只是不持久化）
	a.setupSettingsStore()

	// 3. 会话与协作者
	a.setupComponents()
	a.setupConfigReload()

	// 4. 托盘先于后台服务启动，状态回调会读取托盘
	a.startTray(cancel)
	a.startPipeServer()
	a.startStatusAPI()

	if a.opts.InjectPID != 0 {
		if _, err := a.Inject(ctx, a.opts.InjectPID); err != nil {
			a.logger.Error("❌ 启动时注入失败", "pid", a.opts.InjectPID, "error", err)
		}
	}

	a.logger.Info("✅ 宿主已就绪", "pipe", a.cfg().Pipe.Name)
	<-ctx.Done()

	a.shutdown()
	return nil
}

func (a *App) cfg() *config.Config {
	return a.configWatcher.GetConfig()
}

// loadConfig 加载配置；配置文件不存在时写入内置默认配置
func (a *App) loadConfig() error {
	tempLogger := slog.Default()

	if a.opts.ConfigPath == "" {
		a.opts.ConfigPath = filepath.Join(config.AppDataDir(), "config.yaml")
	}

	if _, err := os.Stat(a.opts.ConfigPath); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(a.opts.ConfigPath), 0755); err != nil {
			return fmt.Errorf("无法创建配置目录: %w", err)
		}
		if err := os.WriteFile(a.opts.ConfigPath, defaultConfigContent, 0644); err != nil {
			return fmt.Errorf("无法写入默认配置: %w", err)
		}
		tempLogger.Info("📝 已写入默认配置", "path", a.opts.ConfigPath)
	}

	watcher, err := config.NewConfigWatcher(a.opts.ConfigPath, tempLogger)
	if err != nil {
		return fmt.Errorf("无法加载配置: %w", err)
	}
	a.configWatcher = watcher
	return nil
}

// setupLogger 设置日志
func (a *App) setupLogger() {
	cfg := a.cfg()
	logger, handler := logging.Setup(cfg.Logging)
	a.logger = logger
	a.logHandler = handler
	slog.SetDefault(logger)
	a.configWatcher.UpdateLogger(logger)

	a.logger.Info("✅ 日志系统初始化完成",
		"level", cfg.Logging.Level,
		"file_enabled", cfg.Logging.FileEnabled)
}

// setupSettingsStore 初始化 SQLite 设置存储
func (a *App) setupSettingsStore() {
	db, err := store.Open(a.cfg().Storage.DatabasePath, a.logger)
	if err != nil {
		a.logger.Warn("⚠️ 设置数据库不可用，音量等设置将不会保存", "error", err)
		return
	}
	a.db = db
	a.settings = store.NewSQLiteSettingsStore(db)
}

// radioSettings avoids handing a typed nil store to the radio service.
func (a *App) radioSettings() radio.SettingsStore {
	if a.settings == nil {
		return nil
	}
	return a.settings
}

func (a *App) setupComponents() {
	cfg := a.cfg()

	a.state = session.NewState()
	a.legacy = overlay.NewLegacy()
	a.keys = input.NewSimulator(a.logger)
	a.policy = policy.NewClassifier(a.cfg, nil)

	a.radio = radio.NewService(radio.Options{
		Stations:      stationsFrom(cfg),
		DefaultVolume: cfg.Radio.Volume(),
		Player:        radio.CommandPlayer{Template: cfg.Radio.PlayerCommand, Logger: a.logger},
		Store:         a.radioSettings(),
		OnCurrent:     func(i int) { a.coordinator.SetRadioCurrent(i) },
		Logger:        a.logger,
	})
	if err := a.radio.Load(a.ctx); err != nil {
		a.logger.Warn("⚠️ 读取电台设置失败", "error", err)
	}

	a.warning = warning.New(warning.Options{
		IdleLabel: session.DefaultButtonText,
		OnLabel: func(label string) {
			a.coordinator.SetButtonText(label)
			a.refreshTray()
		},
		OnFire: func(minutes int) {
			a.logger.Info("🔔 预警时间已到", "minutes", minutes)
			a.refreshTray()
		},
		Logger: a.logger,
	})

	a.coordinator = session.NewCoordinator(a.state, session.Deps{
		Warning: a.warning,
		Radio:   a.radio,
		Keys:    a.keys,
		Links:   a.keys,
		Legacy:  a.legacy,
		Policy:  a.policy,
		Buttons: func() string { return a.cfg().Buttons.Table },
		Logger:  a.logger,
	})
	a.coordinator.SetWarningOptions(cfg.Warning.Minutes, cfg.Warning.DisableLabel)
	a.coordinator.SetRadioList(a.radio.Names())
	a.coordinator.SetRadioVolume(a.radio.Volume())

	a.legacy.OnChange(func(active bool) {
		a.logger.Info("🪟 后备浮层状态变更", "active", active)
		if a.tray != nil {
			a.tray.SetLegacyChecked(active)
		}
	})

	a.injector = inject.New(inject.Options{
		Config: a.cfg,
		State:  a.state,
		Legacy: a.legacy,
		Radio:  a.radio,
		Logger: a.logger,
	})
}

func stationsFrom(cfg *config.Config) []radio.Station {
	out := make([]radio.Station, len(cfg.Radio.Stations))
	for i, s := range cfg.Radio.Stations {
		out[i] = radio.Station{Name: s.Name, URL: s.URL}
	}
	return out
}

// setupConfigReload 设置配置热重载
func (a *App) setupConfigReload() {
	a.configWatcher.AddReloadCallback(func(newCfg *config.Config) {
		// 日志级别即时生效，文件输出相关配置需重启
		a.logHandler.SetLevel(logging.ParseLevel(newCfg.Logging.Level))

		a.coordinator.SetWarningOptions(newCfg.Warning.Minutes, newCfg.Warning.DisableLabel)

		a.radio.SetStations(stationsFrom(newCfg))
		a.coordinator.SetRadioList(a.radio.Names())

		if target, ok := a.state.Target(); ok {
			force := a.policy.IsForcedExternal(target.Name) || a.policy.ProblematicCase(target.Name)
			a.coordinator.SetForceExternal(force)
		}

		a.logger.Info("🔄 配置已重新加载并推送到浮层")
	})
}

// startPipeServer 启动命名管道服务
func (a *App) startPipeServer() {
	cfg := a.cfg()
	a.pipeServer = pipe.NewServer(pipe.Options{
		Name:           cfg.Pipe.Name,
		ReconnectDelay: cfg.Pipe.ReconnectDelay,
		BufferSize:     cfg.Pipe.BufferSize,
		Logger:         a.logger,
	}, a.coordinator)
	a.pipeServer.OnStateChange(func(pipe.State) { a.refreshTray() })

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.pipeServer.Run(a.ctx); err != nil {
			a.logger.Error("❌ 管道服务异常退出", "error", err)
		}
	}()
}

// startStatusAPI 启动本机状态接口
func (a *App) startStatusAPI() {
	cfg := a.cfg().StatusAPI
	if !cfg.Enabled {
		return
	}
	handler := statusapi.NewHandler(a, a.logger)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := statusapi.Serve(a.ctx, cfg.Listen, handler, a.logger); err != nil {
			a.logger.Error("❌ 状态接口启动失败", "error", err)
		}
	}()
}

// startTray 启动托盘；失败只记录日志
func (a *App) startTray(quit context.CancelFunc) {
	if !a.opts.Tray {
		return
	}
	ctrl, err := tray.Start(a.ctx, tray.Options{
		Icon:  icon,
		Title: "Fullscreen Overlay " + Version,
		OnToggleLegacy: func() {
			a.legacy.Toggle()
		},
		OnQuit: func() {
			a.logger.Info("👋 用户从托盘退出")
			quit()
		},
	})
	if err != nil {
		a.logger.Warn("⚠️ 托盘启动失败", "error", err)
		return
	}
	a.tray = ctrl
	a.refreshTray()
}

func (a *App) refreshTray() {
	if a.tray == nil {
		return
	}
	a.tray.SetStatus(a.statusLine())
}

// statusLine 托盘提示中的单行状态
func (a *App) statusLine() string {
	target, ok := a.state.Target()
	if !ok {
		return "未注入"
	}
	line := fmt.Sprintf("%s (%s)", target.ExeName(), target.Arch)
	if _, connected := a.coordinator.Connected(); connected {
		line += " · 已连接"
	} else {
		line += " · 等待连接"
	}
	if left, running := a.warning.Remaining(); running {
		line += " · " + warning.Label(left)
	}
	return line
}

// Inject implements statusapi.Backend. The attachment is bound to the app's
// lifetime, not the caller's.
func (a *App) Inject(_ context.Context, pid uint32) (process.Target, error) {
	att, err := a.injector.Inject(a.ctx, pid)
	if err != nil {
		return process.Target{}, err
	}

	a.mu.Lock()
	a.attachment = att
	a.mu.Unlock()
	a.refreshTray()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		<-att.Done()
		a.mu.Lock()
		if a.attachment == att {
			a.attachment = nil
		}
		a.mu.Unlock()
		a.refreshTray()
	}()
	return att.Target, nil
}

// Status implements statusapi.Backend.
func (a *App) Status() statusapi.Status {
	st := statusapi.Status{
		PipeState: a.pipeServer.State().String(),
		Legacy:    a.legacy.Active(),
		Outbound:  a.coordinator.Snapshot(),
	}
	st.ConnID, st.Connected = a.coordinator.Connected()
	if t, ok := a.state.Target(); ok {
		st.Target = &t
	}
	idx, playing := a.radio.Current()
	st.Radio = statusapi.RadioStatus{
		Playing:     playing,
		Current:     idx,
		Volume:      a.radio.Volume(),
		RichControl: a.radio.RichControlAttached(),
	}
	return st
}

// Policy implements statusapi.Backend.
func (a *App) Policy(exe string) statusapi.PolicyInfo {
	name := process.BaseName(exe)
	return statusapi.PolicyInfo{
		Exe:            exe,
		SimpleOverlay:  a.policy.UsesSimpleOverlay(name),
		ForcedExternal: a.policy.IsForcedExternal(name),
	}
}

// PushHeadline implements statusapi.Backend.
func (a *App) PushHeadline(text, url string) { a.coordinator.PushHeadline(text, url) }

// PushWeather implements statusapi.Backend.
func (a *App) PushWeather(text string) { a.coordinator.PushWeather(text) }

// SetRadioRichControl implements statusapi.Backend.
func (a *App) SetRadioRichControl(attached bool) {
	a.radio.SetRichControl(attached)
	a.logger.Info("📻 外部媒体控制状态已更新", "attached", attached)
}

// shutdown 按依赖顺序停止组件
func (a *App) shutdown() {
	a.logger.Info("🛑 宿主正在关闭...")

	a.warning.Close()
	if err := a.radio.Stop(); err != nil {
		a.logger.Warn("⚠️ 停止电台失败", "error", err)
	}
	if a.tray != nil {
		a.tray.Stop()
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		a.logger.Warn("⚠️ 部分后台任务未在超时内退出")
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("⚠️ 关闭设置数据库失败", "error", err)
		}
	}
	if err := a.configWatcher.Close(); err != nil {
		a.logger.Warn("⚠️ 关闭配置监听失败", "error", err)
	}

	a.logger.Info("👋 宿主已退出")
	if a.logHandler != nil {
		_ = a.logHandler.Close()
	}
}
