// Package protocol 实现宿主与注入模块之间的行文本协议
// 每行格式为 TAG:PAYLOAD，以 \n 结尾，UTF-8 编码
package protocol

import (
	"strconv"
	"strings"
)

// 出站标签（宿主 → 客户端）
const (
	TagOptions       = "OPTIONS"
	TagButtonText    = "SET_BUTTON_TEXT"
	TagRadioList     = "RADIO_LIST"
	TagRadioVolume   = "RADIO_VOLUME"
	TagRadioCurrent  = "RADIO_CURRENT"
	TagButtons       = "BUTTONS"
	TagForceExternal = "FORCE_EXTERNAL_OVERLAY"
	TagHeadline      = "HEADLINE"
	TagWeather       = "WEATHER"
)

// 入站标签（客户端 → 宿主）
const (
	TagSelectedOption     = "SELECTED_OPTION"
	TagButtonClicked      = "BUTTON_CLICKED"
	TagHeadlineClicked    = "HEADLINE_CLICKED"
	TagRadioSelected      = "RADIO_SELECTED"
	TagRadioVolumeChanged = "RADIO_VOLUME_CHANGED"
	TagRadioStop          = "RADIO_STOP"
	TagActivateLegacy     = "ACTIVATE_LEGACY"
	TagDeactivateLegacy   = "DEACTIVATE_LEGACY"
)

const (
	listSeparator  = ","
	fieldSeparator = "|"
)

// Outbound is a host-to-client state push. The set of implementations is
// closed; every push is idempotent and safe to resend.
type Outbound interface {
	Tag() string
	Payload() string
	outbound()
}

// Options 预警时间菜单选项，最后一项为"关闭"哨兵
type Options struct{ Labels []string }

// ButtonText 主按钮标题
type ButtonText struct{ Label string }

// RadioList 可用电台名称
type RadioList struct{ Stations []string }

// RadioVolume 当前音量 (0-100)
type RadioVolume struct{ Volume int }

// RadioCurrent 当前播放电台下标
type RadioCurrent struct{ Index int }

// Button 单个自定义按钮：显示文本 + 按键标识
type Button struct {
	Label string
	KeyID string
}

func (b Button) String() string {
	return b.Label + fieldSeparator + b.KeyID
}

// Buttons 针对当前程序的自定义按钮
type Buttons struct{ Buttons []Button }

// ForceExternal 通知客户端把全屏绘制交给宿主的置顶覆盖层
type ForceExternal struct{ Enabled bool }

// Headline 新闻条目
type Headline struct {
	Text string
	URL  string
}

// Weather 天气摘要
type Weather struct{ Text string }

func (Options) Tag() string       { return TagOptions }
func (ButtonText) Tag() string    { return TagButtonText }
func (RadioList) Tag() string     { return TagRadioList }
func (RadioVolume) Tag() string   { return TagRadioVolume }
func (RadioCurrent) Tag() string  { return TagRadioCurrent }
func (Buttons) Tag() string       { return TagButtons }
func (ForceExternal) Tag() string { return TagForceExternal }
func (Headline) Tag() string      { return TagHeadline }
func (Weather) Tag() string       { return TagWeather }

func (m Options) Payload() string      { return strings.Join(m.Labels, listSeparator) }
func (m ButtonText) Payload() string   { return m.Label }
func (m RadioList) Payload() string    { return strings.Join(m.Stations, listSeparator) }
func (m RadioVolume) Payload() string  { return strconv.Itoa(m.Volume) }
func (m RadioCurrent) Payload() string { return strconv.Itoa(m.Index) }
func (m ForceExternal) Payload() string {
	return strconv.FormatBool(m.Enabled)
}
func (m Headline) Payload() string { return m.Text + fieldSeparator + m.URL }
func (m Weather) Payload() string  { return m.Text }

func (m Buttons) Payload() string {
	parts := make([]string, len(m.Buttons))
	for i, b := range m.Buttons {
		parts[i] = b.String()
	}
	return strings.Join(parts, listSeparator)
}

func (Options) outbound()       {}
func (ButtonText) outbound()    {}
func (RadioList) outbound()     {}
func (RadioVolume) outbound()   {}
func (RadioCurrent) outbound()  {}
func (Buttons) outbound()       {}
func (ForceExternal) outbound() {}
func (Headline) outbound()      {}
func (Weather) outbound()       {}

// Inbound is a single parsed client action.
type Inbound interface {
	inbound()
}

// SelectedOption 用户选择了预警菜单中的某一项
type SelectedOption struct{ Index int }

// ButtonClicked 用户点击了自定义按钮
type ButtonClicked struct{ KeyID string }

// HeadlineClicked 用户点击了新闻条目
type HeadlineClicked struct{ URL string }

// RadioSelected 切换电台
type RadioSelected struct{ Index int }

// RadioVolumeChanged 调整音量
type RadioVolumeChanged struct{ Volume int }

// RadioStop 停止播放
type RadioStop struct{}

// ActivateLegacy 启用宿主绘制的兜底覆盖层
type ActivateLegacy struct{}

// DeactivateLegacy 关闭宿主绘制的兜底覆盖层
type DeactivateLegacy struct{}

func (SelectedOption) inbound()     {}
func (ButtonClicked) inbound()      {}
func (HeadlineClicked) inbound()    {}
func (RadioSelected) inbound()      {}
func (RadioVolumeChanged) inbound() {}
func (RadioStop) inbound()          {}
func (ActivateLegacy) inbound()     {}
func (DeactivateLegacy) inbound()   {}
