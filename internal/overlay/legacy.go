// Package overlay tracks the host-drawn fallback overlay.
package overlay

import "sync"

// Legacy is the activation switch for the overlay the host draws itself when
// the injected renderer asks to hand over.
type Legacy struct {
	mu       sync.Mutex
	active   bool
	onChange []func(active bool)
}

// NewLegacy 创建后备浮层开关
func NewLegacy() *Legacy { return &Legacy{} }

// OnChange registers fn for activation changes. fn runs outside the lock.
func (l *Legacy) OnChange(fn func(active bool)) {
	l.mu.Lock()
	l.onChange = append(l.onChange, fn)
	l.mu.Unlock()
}

func (l *Legacy) Activate()   { l.set(true) }
func (l *Legacy) Deactivate() { l.set(false) }

// Toggle 切换状态并返回新状态
func (l *Legacy) Toggle() bool {
	l.mu.Lock()
	next := !l.active
	l.mu.Unlock()
	l.set(next)
	return next
}

// Active 是否已激活
func (l *Legacy) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

func (l *Legacy) set(active bool) {
	l.mu.Lock()
	if l.active == active {
		l.mu.Unlock()
		return
	}
	l.active = active
	fns := append(([]func(bool))(nil), l.onChange...)
	l.mu.Unlock()

	for _, fn := range fns {
		fn(active)
	}
}
