package session

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fullscreen-overlay/internal/process"
	"fullscreen-overlay/internal/protocol"
)

type harness struct {
	coord  *Coordinator
	state  *State
	client net.Conn
	reader *protocol.Reader
	done   chan error
	cancel context.CancelFunc

	warning *fakeWarning
	radio   *fakeRadio
	keys    *fakeKeys
	links   *fakeLinks
	legacy  *fakeLegacy
}

func newHarness(t *testing.T, table string, forced map[string]bool) *harness {
	t.Helper()
	h := &harness{
		state:   NewState(),
		warning: &fakeWarning{},
		radio:   &fakeRadio{},
		keys:    &fakeKeys{},
		links:   &fakeLinks{},
		legacy:  &fakeLegacy{},
	}
	h.coord = NewCoordinator(h.state, Deps{
		Warning: h.warning,
		Radio:   h.radio,
		Keys:    h.keys,
		Links:   h.links,
		Legacy:  h.legacy,
		Policy:  fakePolicy{forced: forced},
		Buttons: func() string { return table },
	})
	h.coord.SetWarningOptions([]int{5, 10}, "Off")
	h.coord.SetRadioList([]string{"Jazz", "Rock"})
	h.coord.SetRadioVolume(40)
	return h
}

// connect 启动一次 ServeConn，返回客户端一侧
func (h *harness) connect(t *testing.T) {
	t.Helper()
	server, client := net.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	h.client = client
	h.reader = protocol.NewReader(client)
	h.cancel = cancel
	h.done = make(chan error, 1)
	go func() {
		err := h.coord.ServeConn(ctx, server)
		server.Close()
		h.done <- err
	}()
	t.Cleanup(func() {
		cancel()
		client.Close()
	})
}

func (h *harness) readLines(t *testing.T, n int) []string {
	t.Helper()
	require.NoError(t, h.client.SetReadDeadline(time.Now().Add(2*time.Second)))
	lines := make([]string, 0, n)
	for i := 0; i < n; i++ {
		line, err := h.reader.ReadLine()
		require.NoError(t, err, "line %d", i)
		lines = append(lines, line)
	}
	return lines
}

func (h *harness) send(t *testing.T, lines ...string) {
	t.Helper()
	for _, l := range lines {
		_, err := h.client.Write([]byte(l + "\n"))
		require.NoError(t, err)
	}
}

func TestHandshake_Order(t *testing.T) {
	h := newHarness(t, "", nil)
	require.NoError(t, h.state.SetTarget(process.Target{PID: 10, Name: "game", Arch: process.Arch64}))
	h.connect(t)

	assert.Equal(t, []string{
		"OPTIONS:5 min,10 min,Off",
		"SET_BUTTON_TEXT:X",
		"OPTIONS:5 min,10 min,Off",
		"RADIO_LIST:Jazz,Rock",
		"RADIO_VOLUME:40",
		"FORCE_EXTERNAL_OVERLAY:false",
	}, h.readLines(t, 6))
}

func TestHandshake_ButtonsForcedAndRadio(t *testing.T) {
	table := "other.exe|Jump|SPACE;game.exe|Pause|ESC;GAME.exe|Map|M"
	h := newHarness(t, table, map[string]bool{"game": true})
	h.radio.playing = true
	h.radio.current = 1
	require.NoError(t, h.state.SetTarget(process.Target{PID: 10, Name: "game"}))
	h.connect(t)

	assert.Equal(t, []string{
		"OPTIONS:5 min,10 min,Off",
		"SET_BUTTON_TEXT:X",
		"OPTIONS:5 min,10 min,Off",
		"RADIO_LIST:Jazz,Rock",
		"RADIO_VOLUME:40",
		"BUTTONS:Pause|ESC,Map|M",
		"FORCE_EXTERNAL_OVERLAY:true",
		"RADIO_CURRENT:1",
	}, h.readLines(t, 8))
	assert.True(t, h.coord.Snapshot().ForceExternal)
}

func TestHandshake_WaitsForTarget(t *testing.T) {
	h := newHarness(t, "", nil)
	h.connect(t)

	require.NoError(t, h.client.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, err := h.reader.ReadLine()
	require.Error(t, err, "nothing may be sent before the target is known")

	require.NoError(t, h.state.SetTarget(process.Target{PID: 3, Name: "game"}))
	lines := h.readLines(t, 6)
	assert.Equal(t, "OPTIONS:5 min,10 min,Off", lines[0])
}

func TestHandshake_ButtonTextSuppressedOnReconnect(t *testing.T) {
	h := newHarness(t, "", nil)
	require.NoError(t, h.state.SetTarget(process.Target{PID: 10, Name: "game"}))

	h.connect(t)
	first := h.readLines(t, 6)
	assert.Equal(t, "SET_BUTTON_TEXT:X", first[1])
	h.client.Close()
	waitDone(t, h.done)

	h.connect(t)
	second := h.readLines(t, 5)
	assert.Equal(t, []string{
		"OPTIONS:5 min,10 min,Off",
		"OPTIONS:5 min,10 min,Off",
		"RADIO_LIST:Jazz,Rock",
		"RADIO_VOLUME:40",
		"FORCE_EXTERNAL_OVERLAY:false",
	}, second)
}

func TestHandshake_ButtonTextResentAfterChange(t *testing.T) {
	h := newHarness(t, "", nil)
	require.NoError(t, h.state.SetTarget(process.Target{PID: 10, Name: "game"}))

	h.connect(t)
	h.readLines(t, 6)
	go h.coord.SetButtonText("4m")
	assert.Equal(t, []string{"SET_BUTTON_TEXT:4m"}, h.readLines(t, 1))
	h.client.Close()
	waitDone(t, h.done)

	h.connect(t)
	lines := h.readLines(t, 6)
	assert.Equal(t, "SET_BUTTON_TEXT:X", lines[1])
}

func TestPushes_SerializedAndDeduplicated(t *testing.T) {
	h := newHarness(t, "", nil)
	require.NoError(t, h.state.SetTarget(process.Target{PID: 10, Name: "game"}))
	h.connect(t)
	h.readLines(t, 6)

	go func() {
		h.coord.SetButtonText("5m")
		h.coord.SetButtonText("5m")
		h.coord.SetRadioVolume(3)
		h.coord.SetRadioCurrent(0)
		h.coord.PushHeadline("Patch notes", "https://example.com/p?a=1")
		h.coord.PushWeather("Rain")
		h.coord.SetForceExternal(true)
	}()

	assert.Equal(t, []string{
		"SET_BUTTON_TEXT:5m",
		"RADIO_VOLUME:3",
		"RADIO_CURRENT:0",
		"HEADLINE:Patch notes|https://example.com/p?a=1",
		"WEATHER:Rain",
		"FORCE_EXTERNAL_OVERLAY:true",
	}, h.readLines(t, 6))
}

func TestPushes_WithoutConnectionOnlyUpdateState(t *testing.T) {
	h := newHarness(t, "", nil)
	h.coord.SetButtonText("7m")
	h.coord.SetRadioVolume(80)
	h.coord.PushWeather("ignored")

	snap := h.coord.Snapshot()
	assert.Equal(t, "7m", snap.ButtonText)
	assert.Equal(t, 80, snap.Volume)
	_, connected := h.coord.Connected()
	assert.False(t, connected)
}

func TestDispatch_Actions(t *testing.T) {
	h := newHarness(t, "", nil)
	require.NoError(t, h.state.SetTarget(process.Target{PID: 10, Name: "game"}))
	h.connect(t)
	h.readLines(t, 6)

	h.send(t,
		"SELECTED_OPTION:1",
		"SELECTED_OPTION:not-a-number",
		"SELECTED_OPTION:2",
		"SELECTED_OPTION:7",
		"WHATEVER:1",
		"button_clicked:F5",
		"HEADLINE_CLICKED:https://example.com:443/a",
		"RADIO_SELECTED:1",
		"RADIO_VOLUME_CHANGED:65",
		"RADIO_VOLUME_CHANGED:abc",
		"RADIO_STOP",
		"ACTIVATE_LEGACY",
		"DEACTIVATE_LEGACY",
	)

	require.Eventually(t, func() bool { return len(h.legacy.log()) == 2 }, 2*time.Second, 10*time.Millisecond)

	set, disabled := h.warning.snapshot()
	assert.Equal(t, []int{10}, set)
	assert.Equal(t, 1, disabled)
	assert.Equal(t, []string{"F5"}, h.keys.keys())
	assert.Equal(t, uint32(10), h.keys.target.PID)
	assert.Equal(t, []string{"https://example.com:443/a"}, h.links.opened())

	h.radio.mu.Lock()
	assert.Equal(t, []int{1}, h.radio.selected)
	assert.Equal(t, []int{65}, h.radio.volumes)
	assert.Equal(t, 1, h.radio.stops)
	h.radio.mu.Unlock()

	assert.Equal(t, []string{"on", "off"}, h.legacy.log())
	assert.Equal(t, 65, h.coord.Snapshot().Volume)

	_, connected := h.coord.Connected()
	assert.True(t, connected, "malformed lines must not close the connection")
}

func TestServeConn_ClientClose(t *testing.T) {
	h := newHarness(t, "", nil)
	require.NoError(t, h.state.SetTarget(process.Target{PID: 10, Name: "game"}))
	h.connect(t)
	h.readLines(t, 6)

	h.client.Close()
	assert.NoError(t, waitDone(t, h.done))
	_, connected := h.coord.Connected()
	assert.False(t, connected)
}

func TestServeConn_CancelWhileWaiting(t *testing.T) {
	h := newHarness(t, "", nil)
	h.connect(t)
	h.cancel()
	assert.ErrorIs(t, waitDone(t, h.done), context.Canceled)
}

func waitDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("ServeConn did not return")
		return nil
	}
}
