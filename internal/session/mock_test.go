package session

import (
	"sync"

	"fullscreen-overlay/internal/process"
)

type fakeWarning struct {
	mu       sync.Mutex
	set      []int
	disabled int
}

func (f *fakeWarning) Set(m int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.set = append(f.set, m)
}

func (f *fakeWarning) Disable() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disabled++
}

func (f *fakeWarning) snapshot() ([]int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.set...), f.disabled
}

type fakeRadio struct {
	mu       sync.Mutex
	current  int
	playing  bool
	selected []int
	volumes  []int
	stops    int
}

func (f *fakeRadio) Current() (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current, f.playing
}

func (f *fakeRadio) Select(i int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selected = append(f.selected, i)
	return nil
}

func (f *fakeRadio) SetVolume(v int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volumes = append(f.volumes, v)
	return f.playing, nil
}

func (f *fakeRadio) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return nil
}

type fakeKeys struct {
	mu      sync.Mutex
	pressed []string
	target  process.Target
}

func (f *fakeKeys) PressKey(t process.Target, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pressed = append(f.pressed, key)
	f.target = t
	return nil
}

func (f *fakeKeys) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.pressed...)
}

type fakeLinks struct {
	mu   sync.Mutex
	urls []string
}

func (f *fakeLinks) OpenLink(_ process.Target, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, url)
	return nil
}

func (f *fakeLinks) opened() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.urls...)
}

type fakeLegacy struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeLegacy) Activate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, "on")
}

func (f *fakeLegacy) Deactivate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, "off")
}

func (f *fakeLegacy) log() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

type fakePolicy struct {
	forced map[string]bool
}

func (f fakePolicy) IsForcedExternal(name string) bool { return f.forced[name] }
func (f fakePolicy) ProblematicCase(string) bool       { return false }
