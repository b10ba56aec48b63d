// Package warning implements the countdown behind the overlay's warning menu.
package warning

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Options 计时器配置
type Options struct {
	Unit      time.Duration // 一个"分钟"的长度，测试中可缩短
	IdleLabel string        // 未计时时的按钮标题
	OnLabel   func(label string)
	OnFire    func(minutes int)
	Logger    *slog.Logger
}

// Timer counts down whole minutes and reports the remaining time as a short
// button label ("15m"). At most one countdown runs at a time.
type Timer struct {
	opts Options
	log  *slog.Logger

	mu        sync.Mutex
	gen       uint64
	minutes   int
	remaining int
	stop      chan struct{}
}

// New 创建计时器
func New(opts Options) *Timer {
	if opts.Unit <= 0 {
		opts.Unit = time.Minute
	}
	if opts.IdleLabel == "" {
		opts.IdleLabel = "X"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Timer{opts: opts, log: opts.Logger}
}

// Label formats a remaining-minutes count.
func Label(minutes int) string {
	return fmt.Sprintf("%dm", minutes)
}

// Set starts a countdown of minutes, replacing any running one.
func (t *Timer) Set(minutes int) {
	if minutes <= 0 {
		t.Disable()
		return
	}

	t.mu.Lock()
	t.stopLocked()
	t.gen++
	gen := t.gen
	t.minutes = minutes
	t.remaining = minutes
	stop := make(chan struct{})
	t.stop = stop
	t.mu.Unlock()

	t.log.Info("⏰ 预警计时开始", "minutes", minutes)
	t.emit(Label(minutes))
	go t.run(gen, stop)
}

// Disable 取消当前计时并恢复空闲标题
func (t *Timer) Disable() {
	t.mu.Lock()
	wasRunning := t.stop != nil
	t.stopLocked()
	t.gen++
	t.remaining = 0
	t.mu.Unlock()

	if wasRunning {
		t.log.Info("⏰ 预警计时取消")
	}
	t.emit(t.opts.IdleLabel)
}

// Remaining reports the minutes left and whether a countdown is running.
func (t *Timer) Remaining() (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining, t.stop != nil
}

// Close 停止计时，不触发回调
func (t *Timer) Close() {
	t.mu.Lock()
	t.stopLocked()
	t.gen++
	t.mu.Unlock()
}

func (t *Timer) stopLocked() {
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
}

func (t *Timer) run(gen uint64, stop <-chan struct{}) {
	ticker := time.NewTicker(t.opts.Unit)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		t.mu.Lock()
		if t.gen != gen {
			t.mu.Unlock()
			return
		}
		t.remaining--
		left := t.remaining
		total := t.minutes
		if left <= 0 {
			t.stopLocked()
		}
		t.mu.Unlock()

		if left > 0 {
			t.emit(Label(left))
			continue
		}

		t.log.Info("🔔 预警时间到", "minutes", total)
		t.emit(t.opts.IdleLabel)
		if t.opts.OnFire != nil {
			t.opts.OnFire(total)
		}
		return
	}
}

func (t *Timer) emit(label string) {
	if t.opts.OnLabel != nil {
		t.opts.OnLabel(label)
	}
}
