// Package session 负责每个新连接的握手以及入站动作的分发
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"fullscreen-overlay/internal/buttons"
	"fullscreen-overlay/internal/process"
	"fullscreen-overlay/internal/protocol"
)

// DefaultButtonText 新连接握手时的主按钮标题
const DefaultButtonText = "X"

// Deps 协调器依赖的外部协作者，均可为 nil
type Deps struct {
	Warning WarningTimer
	Radio   Radio
	Keys    KeyPresser
	Links   LinkOpener
	Legacy  LegacyOverlay
	Policy  Policy
	Buttons ButtonTable
	Logger  *slog.Logger
}

// Coordinator sequences the handshake on every new connection and dispatches
// client actions. It is the only writer on the live connection.
type Coordinator struct {
	state *State
	deps  Deps
	log   *slog.Logger

	// connMu 保护 writer/connID，并串行化所有出站写入
	connMu sync.Mutex
	writer *protocol.Writer
	connID string
}

// NewCoordinator 创建协调器
func NewCoordinator(state *State, deps Deps) *Coordinator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{state: state, deps: deps, log: logger}
}

// State 返回共享状态
func (c *Coordinator) State() *State { return c.state }

// Connected 报告当前是否有客户端
func (c *Coordinator) Connected() (string, bool) {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.connID, c.writer != nil
}

// ServeConn runs one connection: wait for the target, send the handshake,
// then read and dispatch lines until the stream ends. The caller owns closing
// conn; returning an error only signals why the session ended.
func (c *Coordinator) ServeConn(ctx context.Context, conn io.ReadWriter) error {
	id := uuid.NewString()
	log := c.log.With("conn", id[:8])

	target, err := c.state.WaitTarget(ctx)
	if err != nil {
		return err
	}
	log.Info("🔌 注入模块已连接", "pid", target.PID, "exe", target.ExeName())

	w := protocol.NewWriter(conn)
	c.connMu.Lock()
	c.writer = w
	c.connID = id
	err = c.handshakeLocked(w, target)
	c.connMu.Unlock()

	defer func() {
		c.connMu.Lock()
		if c.writer == w {
			c.writer = nil
			c.connID = ""
		}
		c.connMu.Unlock()
	}()

	if err != nil {
		return fmt.Errorf("handshake: %w", err)
	}

	r := protocol.NewReader(conn)
	for {
		line, err := r.ReadLine()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				log.Info("🔌 注入模块已断开")
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		c.handleLine(log, target, line)
	}
}

// handshakeLocked sends the fixed connection preamble. Callers hold connMu.
func (c *Coordinator) handshakeLocked(w *protocol.Writer, target process.Target) error {
	s := c.state
	s.mu.Lock()
	options := protocol.Options{Labels: s.optionLabels()}
	s.buttonText = DefaultButtonText
	sendButton := s.claimButtonText(DefaultButtonText)
	stations := protocol.RadioList{Stations: append([]string(nil), s.stations...)}
	volume := protocol.RadioVolume{Volume: s.volume}
	s.mu.Unlock()

	msgs := []protocol.Outbound{options}
	if sendButton {
		msgs = append(msgs, protocol.ButtonText{Label: DefaultButtonText})
	}
	// 第二次 OPTIONS 用于对付客户端在按钮标题切换前就开始渲染的竞争
	msgs = append(msgs, options, stations, volume)

	if c.deps.Buttons != nil {
		if btns := buttons.ButtonsForExecutable(c.deps.Buttons(), target.Name); len(btns) > 0 {
			msgs = append(msgs, protocol.Buttons{Buttons: btns})
		}
	}

	force := false
	if c.deps.Policy != nil {
		force = c.deps.Policy.IsForcedExternal(target.Name) || c.deps.Policy.ProblematicCase(target.Name)
	}
	s.mu.Lock()
	s.forceExternal = force
	s.mu.Unlock()
	msgs = append(msgs, protocol.ForceExternal{Enabled: force})

	if c.deps.Radio != nil {
		if idx, playing := c.deps.Radio.Current(); playing {
			msgs = append(msgs, protocol.RadioCurrent{Index: idx})
		}
	}

	return w.WriteAll(msgs...)
}

func (c *Coordinator) handleLine(log *slog.Logger, target process.Target, line string) {
	msg, err := protocol.Decode(line)
	if err != nil {
		if errors.Is(err, protocol.ErrUnknownTag) {
			log.Debug("忽略未知消息", "line", line)
		} else {
			log.Warn("⚠️ 丢弃格式错误的消息", "error", err)
		}
		return
	}
	c.dispatch(log, target, msg)
}

func (c *Coordinator) dispatch(log *slog.Logger, target process.Target, msg protocol.Inbound) {
	switch m := msg.(type) {
	case protocol.SelectedOption:
		c.selectOption(log, m.Index)

	case protocol.ButtonClicked:
		if c.deps.Keys == nil {
			return
		}
		if err := c.deps.Keys.PressKey(target, m.KeyID); err != nil {
			log.Warn("⚠️ 模拟按键失败", "key", m.KeyID, "error", err)
		}

	case protocol.HeadlineClicked:
		if c.deps.Links == nil {
			return
		}
		if err := c.deps.Links.OpenLink(target, m.URL); err != nil {
			log.Warn("⚠️ 打开链接失败", "url", m.URL, "error", err)
		}

	case protocol.RadioSelected:
		if c.deps.Radio == nil {
			return
		}
		if err := c.deps.Radio.Select(m.Index); err != nil {
			log.Warn("⚠️ 切换电台失败", "index", m.Index, "error", err)
		}

	case protocol.RadioVolumeChanged:
		c.state.mu.Lock()
		c.state.volume = m.Volume
		c.state.mu.Unlock()
		if c.deps.Radio == nil {
			return
		}
		applied, err := c.deps.Radio.SetVolume(m.Volume)
		if err != nil {
			log.Warn("⚠️ 设置音量失败", "volume", m.Volume, "error", err)
			return
		}
		log.Debug("音量已更新", "volume", m.Volume, "applied_to_player", applied)

	case protocol.RadioStop:
		if c.deps.Radio == nil {
			return
		}
		if err := c.deps.Radio.Stop(); err != nil {
			log.Warn("⚠️ 停止播放失败", "error", err)
		}

	case protocol.ActivateLegacy:
		if c.deps.Legacy != nil {
			c.deps.Legacy.Activate()
		}

	case protocol.DeactivateLegacy:
		if c.deps.Legacy != nil {
			c.deps.Legacy.Deactivate()
		}

	default:
		log.Debug("未处理的消息类型", "type", fmt.Sprintf("%T", msg))
	}
}

// selectOption applies a warning menu choice. The index equal to the number
// of configured options is the trailing "off" entry.
func (c *Coordinator) selectOption(log *slog.Logger, index int) {
	c.state.mu.Lock()
	minutes := append([]int(nil), c.state.warningMinutes...)
	c.state.mu.Unlock()

	if c.deps.Warning == nil {
		return
	}
	switch {
	case index == len(minutes):
		c.deps.Warning.Disable()
		log.Info("⏰ 预警已关闭")
	case index < len(minutes):
		c.deps.Warning.Set(minutes[index])
		log.Info("⏰ 预警已设置", "minutes", minutes[index])
	default:
		log.Warn("⚠️ 预警选项越界", "index", index, "options", len(minutes)+1)
	}
}

// send writes m to the live connection if there is one. Write failures are
// left to the read loop, which sees the same broken stream.
func (c *Coordinator) send(m protocol.Outbound) {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	c.sendLocked(m)
}

func (c *Coordinator) sendLocked(m protocol.Outbound) {
	if c.writer == nil {
		return
	}
	if err := c.writer.Write(m); err != nil {
		c.log.Debug("出站写入失败", "tag", m.Tag(), "error", err)
	}
}

// SetWarningOptions replaces the warning menu and pushes it.
func (c *Coordinator) SetWarningOptions(minutes []int, disableLabel string) {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	c.state.mu.Lock()
	c.state.warningMinutes = append([]int(nil), minutes...)
	if disableLabel != "" {
		c.state.disableLabel = disableLabel
	}
	msg := protocol.Options{Labels: c.state.optionLabels()}
	c.state.mu.Unlock()

	c.sendLocked(msg)
}

// SetButtonText updates the home-button caption. Unchanged captions are not
// resent, including across reconnects.
func (c *Coordinator) SetButtonText(label string) {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	c.state.mu.Lock()
	c.state.buttonText = label
	send := c.writer != nil && c.state.claimButtonText(label)
	c.state.mu.Unlock()

	if send {
		c.sendLocked(protocol.ButtonText{Label: label})
	}
}

// SetRadioList 更新电台列表
func (c *Coordinator) SetRadioList(stations []string) {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	c.state.mu.Lock()
	c.state.stations = append([]string(nil), stations...)
	c.state.mu.Unlock()

	c.sendLocked(protocol.RadioList{Stations: stations})
}

// SetRadioVolume 更新音量
func (c *Coordinator) SetRadioVolume(v int) {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	c.state.mu.Lock()
	c.state.volume = v
	c.state.mu.Unlock()

	c.sendLocked(protocol.RadioVolume{Volume: v})
}

// SetRadioCurrent 推送当前电台
func (c *Coordinator) SetRadioCurrent(index int) {
	c.send(protocol.RadioCurrent{Index: index})
}

// SetForceExternal pushes a new forced-external decision, e.g. after the
// policy lists changed.
func (c *Coordinator) SetForceExternal(enabled bool) {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	c.state.mu.Lock()
	c.state.forceExternal = enabled
	c.state.mu.Unlock()

	c.sendLocked(protocol.ForceExternal{Enabled: enabled})
}

// PushHeadline 推送新闻条目（不保存，重连后不重发）
func (c *Coordinator) PushHeadline(text, url string) {
	c.send(protocol.Headline{Text: text, URL: url})
}

// PushWeather 推送天气摘要
func (c *Coordinator) PushWeather(text string) {
	c.send(protocol.Weather{Text: text})
}

// Snapshot is a read-only view of the outbound state.
type Snapshot struct {
	Options       []string `json:"options"`
	ButtonText    string   `json:"button_text"`
	Stations      []string `json:"stations"`
	Volume        int      `json:"volume"`
	ForceExternal bool     `json:"force_external"`
}

// Snapshot 返回当前出站状态的副本
func (c *Coordinator) Snapshot() Snapshot {
	s := c.state
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Options:       s.optionLabels(),
		ButtonText:    s.buttonText,
		Stations:      append([]string(nil), s.stations...),
		Volume:        s.volume,
		ForceExternal: s.forceExternal,
	}
}

func formatMinutes(m int) string {
	return strconv.Itoa(m) + " min"
}
