//go:build !stub

package tray

import (
	"context"
	"sync"

	"github.com/getlantern/systray"
)

type systrayController struct {
	opts   Options
	quitCh chan struct{}
	once   sync.Once

	mu      sync.Mutex
	running bool
	ready   bool
	status  string
	legacy  bool
	mLegacy *systray.MenuItem
}

func (c *systrayController) SetStatus(status string) {
	c.mu.Lock()
	c.status = status
	ready := c.ready
	c.mu.Unlock()
	if ready {
		systray.SetTooltip(Tooltip(c.opts.Title, status))
	}
}

func (c *systrayController) SetLegacyChecked(active bool) {
	c.mu.Lock()
	c.legacy = active
	item := c.mLegacy
	c.mu.Unlock()
	if item == nil {
		return
	}
	if active {
		item.Check()
	} else {
		item.Uncheck()
	}
}

func (c *systrayController) Stop() {
	c.once.Do(func() {
		c.mu.Lock()
		if c.running {
			systray.Quit()
			c.running = false
		}
		c.mu.Unlock()
		close(c.quitCh)
	})
}

func start(ctx context.Context, opts Options) (Controller, error) {
	ctrl := &systrayController{
		opts:   opts,
		quitCh: make(chan struct{}),
	}

	// systray.Run 会阻塞，在单独的 goroutine 中运行
	go func() {
		ctrl.mu.Lock()
		ctrl.running = true
		ctrl.mu.Unlock()

		systray.Run(ctrl.onReady, func() {})
	}()

	go func() {
		select {
		case <-ctx.Done():
			ctrl.Stop()
		case <-ctrl.quitCh:
		}
	}()

	return ctrl, nil
}

func (c *systrayController) onReady() {
	if len(c.opts.Icon) > 0 {
		systray.SetIcon(c.opts.Icon)
	}

	mLegacy := systray.AddMenuItemCheckbox("后备浮层", "由宿主绘制浮层", false)
	systray.AddSeparator()
	mQuit := systray.AddMenuItem("退出", "退出应用")

	c.mu.Lock()
	c.ready = true
	c.mLegacy = mLegacy
	status, legacy := c.status, c.legacy
	c.mu.Unlock()

	systray.SetTooltip(Tooltip(c.opts.Title, status))
	if legacy {
		mLegacy.Check()
	}

	go func() {
		for {
			select {
			case <-c.quitCh:
				return
			case <-mLegacy.ClickedCh:
				if c.opts.OnToggleLegacy != nil {
					c.opts.OnToggleLegacy()
				}
			case <-mQuit.ClickedCh:
				if c.opts.OnQuit != nil {
					c.opts.OnQuit()
				}
			}
		}
	}()
}
