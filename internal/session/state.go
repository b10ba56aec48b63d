package session

import (
	"context"
	"errors"
	"sync"

	"fullscreen-overlay/internal/process"
)

// ErrTargetActive is returned when a second target is recorded while one is
// still live. Only one full-screen application is overlaid at a time.
var ErrTargetActive = errors.New("a target process is already attached")

// State is the session-scoped state shared by the injector and the
// coordinator: the current target and the last value of every pushable field.
// Field values survive disconnects so each new client receives a full snapshot.
type State struct {
	mu sync.Mutex

	target *process.Target
	// ready 在目标记录时关闭，目标清除后重新创建
	ready chan struct{}

	warningMinutes []int
	disableLabel   string
	buttonText     string
	lastSentButton *string
	stations       []string
	volume         int
	forceExternal  bool
}

// NewState 创建空状态
func NewState() *State {
	return &State{
		ready:        make(chan struct{}),
		disableLabel: "Off",
		buttonText:   DefaultButtonText,
	}
}

// SetTarget records t as the current target and releases anyone waiting in
// WaitTarget.
func (s *State) SetTarget(t process.Target) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.target != nil {
		return ErrTargetActive
	}
	tc := t
	s.target = &tc
	close(s.ready)
	return nil
}

// ClearTarget forgets the current target. It reports whether one was set.
func (s *State) ClearTarget() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.target == nil {
		return false
	}
	s.target = nil
	s.ready = make(chan struct{})
	return true
}

// Target 返回当前目标
func (s *State) Target() (process.Target, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.target == nil {
		return process.Target{}, false
	}
	return *s.target, true
}

// WaitTarget blocks until a target is recorded or ctx is done.
func (s *State) WaitTarget(ctx context.Context) (process.Target, error) {
	for {
		s.mu.Lock()
		if s.target != nil {
			t := *s.target
			s.mu.Unlock()
			return t, nil
		}
		ready := s.ready
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return process.Target{}, ctx.Err()
		case <-ready:
			// 目标可能在唤醒后又被清除，回到循环重新检查
		}
	}
}

// optionLabels 预警选项 + 末尾的关闭哨兵
func (s *State) optionLabels() []string {
	labels := make([]string, 0, len(s.warningMinutes)+1)
	for _, m := range s.warningMinutes {
		labels = append(labels, formatMinutes(m))
	}
	return append(labels, s.disableLabel)
}

// claimButtonText records label as sent and reports whether it differs from
// the previously sent value. Callers hold s.mu.
func (s *State) claimButtonText(label string) bool {
	if s.lastSentButton != nil && *s.lastSentButton == label {
		return false
	}
	l := label
	s.lastSentButton = &l
	return true
}
