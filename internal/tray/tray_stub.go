//go:build stub

package tray

import (
	"context"
	"sync"
)

// noopController 无图形环境下使用，只记录最近状态
type noopController struct {
	mu     sync.Mutex
	status string
	legacy bool
}

func (c *noopController) SetStatus(status string) {
	c.mu.Lock()
	c.status = status
	c.mu.Unlock()
}

func (c *noopController) SetLegacyChecked(active bool) {
	c.mu.Lock()
	c.legacy = active
	c.mu.Unlock()
}

func (*noopController) Stop() {}

func start(_ context.Context, _ Options) (Controller, error) {
	return &noopController{}, nil
}
