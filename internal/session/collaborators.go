package session

import "fullscreen-overlay/internal/process"

// WarningTimer 预警计时器
type WarningTimer interface {
	Set(minutes int)
	Disable()
}

// Radio is the in-process stream player as seen by the coordinator.
type Radio interface {
	// Current reports the playing station when the in-process player is active.
	Current() (index int, playing bool)
	Select(index int) error
	// SetVolume applies v to the active player, or persists it as the default
	// when nothing plays. It reports whether a player took the value.
	SetVolume(v int) (applied bool, err error)
	Stop() error
}

// KeyPresser simulates a key press inside the target process.
type KeyPresser interface {
	PressKey(target process.Target, keyID string) error
}

// LinkOpener opens a URL and hands focus back to the target.
type LinkOpener interface {
	OpenLink(target process.Target, url string) error
}

// LegacyOverlay 宿主绘制的兜底覆盖层
type LegacyOverlay interface {
	Activate()
	Deactivate()
}

// Policy 决定是否强制使用宿主覆盖层
type Policy interface {
	IsForcedExternal(name string) bool
	ProblematicCase(name string) bool
}

// ButtonTable 返回当前的自定义按钮表（单行形式）
type ButtonTable func() string
