// main.go - 全屏浮层宿主入口
// 负责注入渲染模块、维护命名管道会话并向浮层推送状态

package main

import (
	"context"
	_ "embed"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// 版本信息
var (
	Version   = "1.0.0"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// 命令行参数
var (
	configPath  = flag.String("config", "", "配置文件路径（默认位于应用数据目录）")
	injectPID   = flag.Uint("inject", 0, "启动后立即注入的目标进程 PID")
	noTray      = flag.Bool("no-tray", false, "不显示系统托盘图标")
	showVersion = flag.Bool("version", false, "显示版本信息")
)

// 嵌入托盘图标
//
//go:embed build/icon.ico
var icon []byte

// 嵌入默认配置文件，首次运行时写入配置路径
//
//go:embed config/config.example.yaml
var defaultConfigContent []byte

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("Fullscreen Overlay Host\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Commit: %s\n", Commit)
		fmt.Printf("Built: %s\n", BuildTime)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := NewApp(AppOptions{
		ConfigPath: *configPath,
		InjectPID:  uint32(*injectPID),
		Tray:       !*noTray,
	})

	if err := app.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
