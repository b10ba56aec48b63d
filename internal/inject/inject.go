// Package inject 选择与目标位数匹配的渲染模块，并通过提权辅助进程完成注入
package inject

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"sync"

	"fullscreen-overlay/config"
	"fullscreen-overlay/internal/process"
	"fullscreen-overlay/internal/session"
)

// ErrNoTarget is returned when the target has no resolvable identity.
var ErrNoTarget = errors.New("no target process")

// ErrTargetActive 已有目标进程被注入
var ErrTargetActive = session.ErrTargetActive

// InjectionAbortedError wraps an architecture probe failure.
type InjectionAbortedError struct {
	PID uint32
	Err error
}

func (e *InjectionAbortedError) Error() string {
	return fmt.Sprintf("injection into pid %d aborted: %v", e.PID, e.Err)
}

func (e *InjectionAbortedError) Unwrap() error { return e.Err }

// InjectionLaunchError reports that the helper could not be started, for
// example because the elevation prompt was declined.
type InjectionLaunchError struct {
	Helper string
	Err    error
}

func (e *InjectionLaunchError) Error() string {
	return fmt.Sprintf("launch injection helper %s: %v", e.Helper, e.Err)
}

func (e *InjectionLaunchError) Unwrap() error { return e.Err }

// Payload is an architecture-matched (module, helper) pair.
type Payload struct {
	Arch   process.Arch
	Module string
	Helper string
}

// Prober 位数探测
type Prober interface {
	Probe(pid uint32) (process.Arch, error)
}

// Launcher starts the injection helper with elevated privileges.
type Launcher interface {
	Launch(helper string, args []string) error
}

// ExitWaiter blocks until a process terminates.
type ExitWaiter interface {
	WaitExit(ctx context.Context, pid uint32) error
}

// Lookup resolves a pid to its executable base name.
type Lookup func(pid uint32) (string, error)

// Legacy is the host-drawn overlay that is switched off when the target exits.
type Legacy interface {
	Deactivate()
}

// Radio 目标退出时需要检查的播放器状态
type Radio interface {
	Playing() bool
	RichControlAttached() bool
	Stop() error
}

// Options 注入器依赖
type Options struct {
	Config   func() *config.Config
	State    *session.State
	Prober   Prober
	Launcher Launcher
	Waiter   ExitWaiter
	Lookup   Lookup
	Legacy   Legacy
	Radio    Radio
	Logger   *slog.Logger
}

// Injector owns the TargetProcess lifecycle.
type Injector struct {
	opts Options
	log  *slog.Logger

	// mu 串行化从检查目标到记录目标的整个过程，同一时间只允许一个辅助进程
	mu sync.Mutex
}

// New 创建注入器；未提供的平台依赖使用默认实现
func New(opts Options) *Injector {
	if opts.Prober == nil {
		opts.Prober = process.NewProber()
	}
	if opts.Launcher == nil {
		opts.Launcher = NewElevatedLauncher()
	}
	if opts.Waiter == nil {
		opts.Waiter = waiterFunc(process.WaitExit)
	}
	if opts.Lookup == nil {
		opts.Lookup = process.Lookup
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Injector{opts: opts, log: opts.Logger}
}

type waiterFunc func(ctx context.Context, pid uint32) error

func (f waiterFunc) WaitExit(ctx context.Context, pid uint32) error { return f(ctx, pid) }

// SelectPayload returns the module and helper built for arch. A loader
// cannot bridge address-space widths, so the pair always matches.
func SelectPayload(cfg config.InjectorConfig, arch process.Arch) Payload {
	if arch == process.Arch32 {
		return Payload{Arch: arch, Module: cfg.Module32, Helper: cfg.Helper32}
	}
	return Payload{Arch: process.Arch64, Module: cfg.Module64, Helper: cfg.Helper64}
}

// HelperArgs builds the helper command line:
// inject "<name>.exe" "<modulePath>" <timeoutMs>.
func HelperArgs(target process.Target, modulePath string, timeoutMs int) []string {
	return []string{"inject", target.ExeName(), modulePath, strconv.Itoa(timeoutMs)}
}

// Attachment tracks one injected target until it exits.
type Attachment struct {
	Target  process.Target
	Payload Payload

	done chan struct{}
	err  error
}

// Done is closed after the target exited and host-side state was torn down.
func (a *Attachment) Done() <-chan struct{} { return a.done }

// Err 返回等待过程中的错误（在 Done 关闭后有效）
func (a *Attachment) Err() error {
	<-a.done
	return a.err
}

// Inject launches the helper for pid and records the target. Errors up to and
// including the launch are returned synchronously. Waiting for the target to
// exit happens on a dedicated goroutine; cancelling ctx stops the wait and
// still tears the target down.
func (i *Injector) Inject(ctx context.Context, pid uint32) (*Attachment, error) {
	if pid == 0 {
		return nil, ErrNoTarget
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if _, ok := i.opts.State.Target(); ok {
		return nil, ErrTargetActive
	}

	name, err := i.opts.Lookup(pid)
	if err != nil {
		return nil, fmt.Errorf("%w: pid %d: %v", ErrNoTarget, pid, err)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: pid %d has no executable name", ErrNoTarget, pid)
	}

	arch, err := i.opts.Prober.Probe(pid)
	if err != nil {
		return nil, &InjectionAbortedError{PID: pid, Err: err}
	}

	target := process.Target{PID: pid, Name: name, Arch: arch}
	cfg := i.injectorConfig()
	payload := SelectPayload(cfg, arch)
	modulePath, err := filepath.Abs(payload.Module)
	if err != nil {
		return nil, fmt.Errorf("resolve module path: %w", err)
	}

	i.log.Info("💉 启动注入辅助进程",
		"pid", pid, "exe", target.ExeName(), "arch", arch, "helper", payload.Helper)

	if err := i.opts.Launcher.Launch(payload.Helper, HelperArgs(target, modulePath, cfg.LoadTimeoutMs)); err != nil {
		return nil, &InjectionLaunchError{Helper: payload.Helper, Err: err}
	}

	if err := i.opts.State.SetTarget(target); err != nil {
		return nil, err
	}

	a := &Attachment{Target: target, Payload: payload, done: make(chan struct{})}
	go i.watch(ctx, a)
	return a, nil
}

func (i *Injector) watch(ctx context.Context, a *Attachment) {
	defer close(a.done)

	err := i.opts.Waiter.WaitExit(ctx, a.Target.PID)
	if err != nil && !errors.Is(err, context.Canceled) {
		i.log.Warn("⚠️ 等待目标进程退出失败", "pid", a.Target.PID, "error", err)
		a.err = err
	}
	i.log.Info("🏁 目标进程已结束", "pid", a.Target.PID, "exe", a.Target.ExeName())
	i.teardown()
}

// teardown 清理宿主侧状态，所有失败只记录日志
func (i *Injector) teardown() {
	i.opts.State.ClearTarget()

	if i.opts.Legacy != nil {
		safely(i.log, "deactivate legacy overlay", i.opts.Legacy.Deactivate)
	}

	if r := i.opts.Radio; r != nil && r.Playing() && !r.RichControlAttached() {
		safely(i.log, "stop radio", func() {
			if err := r.Stop(); err != nil {
				i.log.Warn("⚠️ 停止电台失败", "error", err)
			}
		})
	}
}

func (i *Injector) injectorConfig() config.InjectorConfig {
	if i.opts.Config != nil {
		if cfg := i.opts.Config(); cfg != nil {
			return cfg.Injector
		}
	}
	return config.Default().Injector
}

func safely(log *slog.Logger, step string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("❌ 清理步骤异常", "step", step, "panic", r)
		}
	}()
	fn()
}
