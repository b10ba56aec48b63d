// Package pipe 提供注入模块回连宿主的命名管道服务端
package pipe

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"
)

// State is the lifecycle position of the channel server.
type State int

const (
	StateIdle State = iota
	StateListening
	StateConnected
	StateClosing
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Handler runs one accepted connection until it ends.
type Handler interface {
	ServeConn(ctx context.Context, conn io.ReadWriter) error
}

// ListenFunc creates a fresh listener for one connection cycle.
type ListenFunc func(name string) (net.Listener, error)

// Options 服务端配置
type Options struct {
	Name           string
	ReconnectDelay time.Duration
	BufferSize     int
	Listen         ListenFunc // nil 时使用平台默认实现
	Logger         *slog.Logger
}

// Server accepts at most one client at a time and re-listens after each
// disconnect until its context is cancelled.
type Server struct {
	opts    Options
	handler Handler
	log     *slog.Logger

	mu        sync.RWMutex
	state     State
	listeners []func(State)
}

// NewServer 创建管道服务端
func NewServer(opts Options, handler Handler) *Server {
	if opts.Listen == nil {
		bufSize := opts.BufferSize
		opts.Listen = func(name string) (net.Listener, error) {
			return Listen(name, bufSize)
		}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Server{
		opts:    opts,
		handler: handler,
		log:     opts.Logger.With("pipe", opts.Name),
	}
}

// State 返回当前状态
func (s *Server) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// OnStateChange registers fn to be called on every transition. Callbacks run
// on the server goroutine and must not block.
func (s *Server) OnStateChange(fn func(State)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func (s *Server) setState(st State) {
	s.mu.Lock()
	if s.state == st {
		s.mu.Unlock()
		return
	}
	s.state = st
	fns := append(([]func(State))(nil), s.listeners...)
	s.mu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}

// Run drives listen → accept → serve → close cycles. It returns nil once ctx
// is cancelled; failures inside a cycle are logged and followed by the
// reconnect delay.
func (s *Server) Run(ctx context.Context) error {
	defer s.setState(StateStopped)
	s.log.Info("🚀 管道服务已启动")

	for ctx.Err() == nil {
		s.cycle(ctx)
		if ctx.Err() != nil {
			break
		}
		s.wait(ctx)
	}

	s.log.Info("🛑 管道服务已停止")
	return nil
}

// cycle runs one listen/accept/serve round with panics contained.
func (s *Server) cycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("❌ 管道服务异常", "panic", r)
		}
	}()

	s.setState(StateListening)
	conn, err := s.accept(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Warn("⚠️ 等待连接失败", "error", err)
		}
		return
	}

	s.setState(StateConnected)
	s.log.Info("🔗 客户端已连接")

	// 取消时关闭连接以解除读阻塞
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	err = s.serve(ctx, conn)
	stop()

	s.setState(StateClosing)
	_ = conn.Close()
	if err != nil && ctx.Err() == nil {
		s.log.Warn("⚠️ 连接异常结束", "error", err)
	} else {
		s.log.Info("🔌 客户端已断开")
	}
}

// accept opens a listener, takes exactly one connection and closes the
// listener again, so no second client can attach while one is served.
func (s *Server) accept(ctx context.Context) (net.Conn, error) {
	ln, err := s.opts.Listen(s.opts.Name)
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}
	defer ln.Close()

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	conn, err := ln.Accept()
	if err != nil {
		return nil, fmt.Errorf("accept: %w", err)
	}
	return conn, nil
}

func (s *Server) serve(ctx context.Context, conn net.Conn) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return s.handler.ServeConn(ctx, conn)
}

func (s *Server) wait(ctx context.Context) {
	if s.opts.ReconnectDelay <= 0 {
		return
	}
	t := time.NewTimer(s.opts.ReconnectDelay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
