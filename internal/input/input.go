package input

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"fullscreen-overlay/internal/process"
)

// ErrUnsupportedURL 只允许 http/https 链接
var ErrUnsupportedURL = errors.New("unsupported url")

// platform is the OS-specific half of the simulator.
type platform interface {
	focus(pid uint32) error
	sendKey(k Key) error
	openURL(u string) error
}

// Simulator presses keys in the target and opens links on its behalf.
type Simulator struct {
	os  platform
	log *slog.Logger

	// RestoreDelay 打开链接后等待多久再把焦点还给目标进程
	RestoreDelay time.Duration
}

// NewSimulator 使用当前平台的实现
func NewSimulator(logger *slog.Logger) *Simulator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Simulator{os: newPlatform(), log: logger, RestoreDelay: 1500 * time.Millisecond}
}

// PressKey brings the target to the foreground and taps the key.
func (s *Simulator) PressKey(target process.Target, keyID string) error {
	k, err := LookupKey(keyID)
	if err != nil {
		return err
	}
	if err := s.os.focus(target.PID); err != nil {
		s.log.Debug("聚焦目标窗口失败", "pid", target.PID, "error", err)
	}
	if err := s.os.sendKey(k); err != nil {
		return fmt.Errorf("send key %s: %w", k.ID, err)
	}
	s.log.Debug("已模拟按键", "key", k.ID, "pid", target.PID)
	return nil
}

// OpenLink opens an http(s) URL in the default browser, then hands focus back
// to the target after RestoreDelay. The restore happens asynchronously.
func (s *Simulator) OpenLink(target process.Target, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrUnsupportedURL, raw)
	}
	if err := s.os.openURL(u.String()); err != nil {
		return fmt.Errorf("open url: %w", err)
	}
	s.log.Info("🌐 已打开链接", "url", u.String())

	time.AfterFunc(s.RestoreDelay, func() {
		if err := s.os.focus(target.PID); err != nil {
			s.log.Debug("恢复焦点失败", "pid", target.PID, "error", err)
		}
	})
	return nil
}
