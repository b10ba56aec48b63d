// Package logging 提供宿主进程的结构化日志输出
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"fullscreen-overlay/config"
)

const consoleLimit = 500

// Setup 根据配置创建日志器；文件日志创建失败时退化为仅控制台输出
func Setup(cfg config.LoggingConfig) (*slog.Logger, *SimpleHandler) {
	level := ParseLevel(cfg.Level)

	var rotator *FileRotator
	if cfg.FileEnabled {
		maxSize, err := ParseSize(cfg.MaxFileSize)
		if err != nil {
			fmt.Printf("警告：无法解析日志文件大小配置 '%s'，使用默认值 10MB: %v\n", cfg.MaxFileSize, err)
			maxSize = 10 * 1024 * 1024
		}
		rotator, err = NewFileRotator(cfg.FilePath, maxSize, cfg.MaxFiles)
		if err != nil {
			fmt.Printf("警告：无法创建日志文件轮转器: %v\n", err)
			rotator = nil
		}
	}

	h := NewSimpleHandler(os.Stdout, level, rotator)
	return slog.New(h), h
}

// ParseLevel maps a config level name to a slog level; unknown names map to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SimpleHandler 简化的日志处理器
// 输出格式: [时间] [PID:n] [GID:n] [LEVEL] message k=v ...
type SimpleHandler struct {
	mu          *sync.Mutex
	level       *slog.LevelVar
	console     io.Writer
	fileRotator *FileRotator
	attrs       []slog.Attr
}

// NewSimpleHandler 创建处理器；rotator 可为 nil
func NewSimpleHandler(console io.Writer, level slog.Level, rotator *FileRotator) *SimpleHandler {
	lv := &slog.LevelVar{}
	lv.Set(level)
	return &SimpleHandler{
		mu:          &sync.Mutex{},
		level:       lv,
		console:     console,
		fileRotator: rotator,
	}
}

func (h *SimpleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// SetLevel 修改日志级别，对所有 WithAttrs 派生的处理器同时生效
func (h *SimpleHandler) SetLevel(level slog.Level) {
	h.level.Set(level)
}

func (h *SimpleHandler) Handle(_ context.Context, r slog.Record) error {
	message := r.Message

	var attrs []string
	for _, a := range h.attrs {
		attrs = append(attrs, fmt.Sprintf("%s=%v", a.Key, a.Value))
	}
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, fmt.Sprintf("%s=%v", a.Key, a.Value))
		return true
	})

	if len(attrs) > 0 {
		message = message + " " + strings.Join(attrs, " ")
	}

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	timestamp := ts.Format("2006-01-02 15:04:05.000")
	line := fmt.Sprintf("[%s] [PID:%d] [GID:%d] [%s] ", timestamp, os.Getpid(), getGoroutineID(), r.Level.String())

	h.mu.Lock()
	defer h.mu.Unlock()

	// 文件输出不截断
	if h.fileRotator != nil {
		if _, err := h.fileRotator.Write([]byte(line + message + "\n")); err != nil {
			fmt.Fprintf(os.Stderr, "log file write failed: %v\n", err)
		}
	}

	// 控制台输出
	displayMessage := message
	if len(displayMessage) > consoleLimit {
		displayMessage = displayMessage[:consoleLimit] + "... (显示截断)"
	}
	if h.console != nil {
		fmt.Fprintln(h.console, line+displayMessage)
	}

	return nil
}

func (h *SimpleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &clone
}

func (h *SimpleHandler) WithGroup(name string) slog.Handler {
	return h
}

func (h *SimpleHandler) Close() error {
	if h.fileRotator != nil {
		return h.fileRotator.Close()
	}
	return nil
}

func getGoroutineID() int {
	buf := make([]byte, 64)
	buf = buf[:runtime.Stack(buf, false)]
	fields := strings.Fields(string(buf))
	if len(fields) < 2 {
		return 0
	}
	id, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0
	}
	return id
}
