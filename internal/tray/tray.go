// Package tray 提供系统托盘图标：显示注入/连接状态并提供常用开关
package tray

import "context"

// Controller 托盘控制器
type Controller interface {
	// SetStatus 更新悬浮提示中的状态行
	SetStatus(status string)
	// SetLegacyChecked 同步后备浮层菜单的勾选状态
	SetLegacyChecked(active bool)
	Stop()
}

// Options 托盘启动参数
type Options struct {
	// Icon 托盘图标内容（Windows 使用 .ico 字节）
	Icon []byte

	// Title 悬浮提示的第一行
	Title string

	// OnToggleLegacy 用户点击"后备浮层"菜单时触发
	OnToggleLegacy func()

	// OnQuit 用户选择"退出"时触发
	OnQuit func()
}

// Start 启动系统托盘（平台相关实现）
func Start(ctx context.Context, opts Options) (Controller, error) {
	if opts.Title == "" {
		opts.Title = "Fullscreen Overlay"
	}
	return start(ctx, opts)
}

// Tooltip joins the title and a status line.
func Tooltip(title, status string) string {
	if status == "" {
		return title
	}
	return title + "\n" + status
}
