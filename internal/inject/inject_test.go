package inject

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fullscreen-overlay/config"
	"fullscreen-overlay/internal/process"
	"fullscreen-overlay/internal/session"
)

type fakeProber struct {
	arch process.Arch
	err  error
}

func (p fakeProber) Probe(uint32) (process.Arch, error) { return p.arch, p.err }

type fakeLauncher struct {
	mu       sync.Mutex
	helper   string
	args     []string
	err      error
	delay    time.Duration
	launches int
}

func (l *fakeLauncher) Launch(helper string, args []string) error {
	time.Sleep(l.delay)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.helper, l.args = helper, args
	l.launches++
	return l.err
}

// exitGate blocks WaitExit until Exit is called.
type exitGate struct{ ch chan struct{} }

func newExitGate() *exitGate { return &exitGate{ch: make(chan struct{})} }

func (g *exitGate) Exit() { close(g.ch) }

func (g *exitGate) WaitExit(ctx context.Context, _ uint32) error {
	select {
	case <-g.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type fakeLegacy struct {
	mu    sync.Mutex
	calls int
}

func (l *fakeLegacy) Deactivate() {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()
}

type fakeRadio struct {
	mu      sync.Mutex
	playing bool
	rich    bool
	stops   int
}

func (r *fakeRadio) Playing() bool             { r.mu.Lock(); defer r.mu.Unlock(); return r.playing }
func (r *fakeRadio) RichControlAttached() bool { return r.rich }
func (r *fakeRadio) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stops++
	r.playing = false
	return nil
}

type fixture struct {
	inj      *Injector
	state    *session.State
	launcher *fakeLauncher
	gate     *exitGate
	legacy   *fakeLegacy
	radio    *fakeRadio
}

func newFixture(t *testing.T, prober Prober) *fixture {
	t.Helper()
	cfg := config.Default()
	cfg.Injector.Helper32 = "bin/helper32.exe"
	cfg.Injector.Helper64 = "bin/helper64.exe"
	cfg.Injector.Module32 = "bin/overlay32.dll"
	cfg.Injector.Module64 = "bin/overlay64.dll"
	cfg.Injector.LoadTimeoutMs = 5000

	f := &fixture{
		state:    session.NewState(),
		launcher: &fakeLauncher{},
		gate:     newExitGate(),
		legacy:   &fakeLegacy{},
		radio:    &fakeRadio{},
	}
	f.inj = New(Options{
		Config:   func() *config.Config { return cfg },
		State:    f.state,
		Prober:   prober,
		Launcher: f.launcher,
		Waiter:   f.gate,
		Lookup:   func(uint32) (string, error) { return "game", nil },
		Legacy:   f.legacy,
		Radio:    f.radio,
	})
	return f
}

func waitDone(t *testing.T, a *Attachment) {
	t.Helper()
	select {
	case <-a.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("attachment not torn down")
	}
}

func TestSelectPayload(t *testing.T) {
	cfg := config.InjectorConfig{Helper32: "h32", Helper64: "h64", Module32: "m32", Module64: "m64"}

	p := SelectPayload(cfg, process.Arch32)
	assert.Equal(t, Payload{Arch: process.Arch32, Module: "m32", Helper: "h32"}, p)

	p = SelectPayload(cfg, process.Arch64)
	assert.Equal(t, Payload{Arch: process.Arch64, Module: "m64", Helper: "h64"}, p)
}

func TestHelperArgs(t *testing.T) {
	args := HelperArgs(process.Target{PID: 1, Name: "game"}, `C:\mods\overlay.dll`, 5000)
	assert.Equal(t, []string{"inject", "game.exe", `C:\mods\overlay.dll`, "5000"}, args)
}

func TestInject_64Bit(t *testing.T) {
	f := newFixture(t, fakeProber{arch: process.Arch64})

	a, err := f.inj.Inject(context.Background(), 4242)
	require.NoError(t, err)
	defer f.gate.Exit()

	module, _ := filepath.Abs("bin/overlay64.dll")
	assert.Equal(t, "bin/helper64.exe", f.launcher.helper)
	assert.Equal(t, []string{"inject", "game.exe", module, "5000"}, f.launcher.args)

	target, ok := f.state.Target()
	require.True(t, ok)
	assert.Equal(t, process.Target{PID: 4242, Name: "game", Arch: process.Arch64}, target)
	assert.Equal(t, target, a.Target)
}

func TestInject_32Bit(t *testing.T) {
	f := newFixture(t, fakeProber{arch: process.Arch32})

	_, err := f.inj.Inject(context.Background(), 7)
	require.NoError(t, err)
	defer f.gate.Exit()

	assert.Equal(t, "bin/helper32.exe", f.launcher.helper)
	module, _ := filepath.Abs("bin/overlay32.dll")
	assert.Equal(t, module, f.launcher.args[2])
}

func TestInject_NoTarget(t *testing.T) {
	f := newFixture(t, fakeProber{arch: process.Arch64})

	_, err := f.inj.Inject(context.Background(), 0)
	assert.ErrorIs(t, err, ErrNoTarget)
	assert.Empty(t, f.launcher.helper)
}

func TestInject_LookupFailure(t *testing.T) {
	f := newFixture(t, fakeProber{arch: process.Arch64})
	f.inj.opts.Lookup = func(uint32) (string, error) { return "", errors.New("gone") }

	_, err := f.inj.Inject(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNoTarget)
	_, ok := f.state.Target()
	assert.False(t, ok)
}

func TestInject_ProbeFailureAborts(t *testing.T) {
	probeErr := &process.PlatformQueryError{PID: 5, Code: 5, Err: errors.New("access denied")}
	f := newFixture(t, fakeProber{err: probeErr})

	_, err := f.inj.Inject(context.Background(), 5)
	var aborted *InjectionAbortedError
	require.ErrorAs(t, err, &aborted)
	var pq *process.PlatformQueryError
	require.ErrorAs(t, err, &pq)
	assert.Equal(t, uint32(5), pq.Code)

	assert.Empty(t, f.launcher.helper, "helper must not start after a failed probe")
	_, ok := f.state.Target()
	assert.False(t, ok)
}

func TestInject_LaunchFailure(t *testing.T) {
	f := newFixture(t, fakeProber{arch: process.Arch64})
	f.launcher.err = errors.New("operation cancelled by user")

	_, err := f.inj.Inject(context.Background(), 10)
	var launchErr *InjectionLaunchError
	require.ErrorAs(t, err, &launchErr)
	assert.Equal(t, "bin/helper64.exe", launchErr.Helper)

	_, ok := f.state.Target()
	assert.False(t, ok)
}

func TestInject_SecondTargetRejected(t *testing.T) {
	f := newFixture(t, fakeProber{arch: process.Arch64})

	_, err := f.inj.Inject(context.Background(), 1)
	require.NoError(t, err)
	defer f.gate.Exit()

	_, err = f.inj.Inject(context.Background(), 2)
	assert.ErrorIs(t, err, ErrTargetActive)

	target, _ := f.state.Target()
	assert.Equal(t, uint32(1), target.PID)
}

func TestInject_ConcurrentCallsLaunchOnce(t *testing.T) {
	f := newFixture(t, fakeProber{arch: process.Arch64})
	f.launcher.delay = 50 * time.Millisecond
	defer f.gate.Exit()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for n := range errs {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, errs[n] = f.inj.Inject(context.Background(), uint32(100+n))
		}(n)
	}
	wg.Wait()

	assert.Equal(t, 1, f.launcher.launches, "helper must start exactly once")
	failed := 0
	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, ErrTargetActive)
			failed++
		}
	}
	assert.Equal(t, 1, failed)
	_, ok := f.state.Target()
	assert.True(t, ok)
}

func TestInject_FailedLaunchFreesSlot(t *testing.T) {
	f := newFixture(t, fakeProber{arch: process.Arch64})
	f.launcher.err = errors.New("operation cancelled by user")

	_, err := f.inj.Inject(context.Background(), 40)
	require.Error(t, err)

	f.launcher.err = nil
	_, err = f.inj.Inject(context.Background(), 41)
	require.NoError(t, err)
	defer f.gate.Exit()
	assert.Equal(t, 2, f.launcher.launches)
}

func TestTeardown_OnExit(t *testing.T) {
	f := newFixture(t, fakeProber{arch: process.Arch64})
	f.radio.playing = true

	a, err := f.inj.Inject(context.Background(), 11)
	require.NoError(t, err)

	f.gate.Exit()
	waitDone(t, a)
	require.NoError(t, a.Err())

	_, ok := f.state.Target()
	assert.False(t, ok)
	assert.Equal(t, 1, f.legacy.calls)
	assert.Equal(t, 1, f.radio.stops)
}

func TestTeardown_RadioWithRichControlKeepsPlaying(t *testing.T) {
	f := newFixture(t, fakeProber{arch: process.Arch64})
	f.radio.playing = true
	f.radio.rich = true

	a, err := f.inj.Inject(context.Background(), 12)
	require.NoError(t, err)

	f.gate.Exit()
	waitDone(t, a)

	assert.Equal(t, 0, f.radio.stops)
	assert.Equal(t, 1, f.legacy.calls)
}

func TestTeardown_IdleRadioNotStopped(t *testing.T) {
	f := newFixture(t, fakeProber{arch: process.Arch64})

	a, err := f.inj.Inject(context.Background(), 13)
	require.NoError(t, err)

	f.gate.Exit()
	waitDone(t, a)
	assert.Equal(t, 0, f.radio.stops)
}

func TestTeardown_OnCancel(t *testing.T) {
	f := newFixture(t, fakeProber{arch: process.Arch64})
	ctx, cancel := context.WithCancel(context.Background())

	a, err := f.inj.Inject(ctx, 14)
	require.NoError(t, err)

	cancel()
	waitDone(t, a)
	assert.NoError(t, a.Err())

	_, ok := f.state.Target()
	assert.False(t, ok)
}

func TestInject_AgainAfterExit(t *testing.T) {
	f := newFixture(t, fakeProber{arch: process.Arch64})

	a, err := f.inj.Inject(context.Background(), 20)
	require.NoError(t, err)
	f.gate.Exit()
	waitDone(t, a)

	f.gate = newExitGate()
	f.inj.opts.Waiter = f.gate
	_, err = f.inj.Inject(context.Background(), 21)
	require.NoError(t, err)
	defer f.gate.Exit()

	target, _ := f.state.Target()
	assert.Equal(t, uint32(21), target.PID)
}

func TestTeardown_PanicRecovered(t *testing.T) {
	f := newFixture(t, fakeProber{arch: process.Arch64})
	f.inj.opts.Legacy = panicLegacy{}
	f.radio.playing = true

	a, err := f.inj.Inject(context.Background(), 30)
	require.NoError(t, err)
	f.gate.Exit()
	waitDone(t, a)

	assert.Equal(t, 1, f.radio.stops)
}

type panicLegacy struct{}

func (panicLegacy) Deactivate() { panic("boom") }
