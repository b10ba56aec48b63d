// Package statusapi 提供仅监听本机的 HTTP 状态/控制接口
package statusapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"fullscreen-overlay/internal/inject"
	"fullscreen-overlay/internal/process"
	"fullscreen-overlay/internal/session"
)

// RadioStatus 电台状态
type RadioStatus struct {
	Playing     bool `json:"playing"`
	Current     int  `json:"current"`
	Volume      int  `json:"volume"`
	RichControl bool `json:"rich_control"`
}

// Status is the GET /api/status body.
type Status struct {
	PipeState string           `json:"pipe_state"`
	Connected bool             `json:"connected"`
	ConnID    string           `json:"conn_id,omitempty"`
	Target    *process.Target  `json:"target,omitempty"`
	Legacy    bool             `json:"legacy_overlay"`
	Radio     RadioStatus      `json:"radio"`
	Outbound  session.Snapshot `json:"outbound"`
}

// PolicyInfo is the GET /api/policy/:exe body.
type PolicyInfo struct {
	Exe            string `json:"exe"`
	SimpleOverlay  bool   `json:"simple_overlay"`
	ForcedExternal bool   `json:"forced_external"`
}

// Backend 由宿主应用实现
type Backend interface {
	Status() Status
	Inject(ctx context.Context, pid uint32) (process.Target, error)
	Policy(exe string) PolicyInfo
	PushHeadline(text, url string)
	PushWeather(text string)
	SetRadioRichControl(attached bool)
}

type injectRequest struct {
	PID uint32 `json:"pid" binding:"required"`
}

type headlineRequest struct {
	Text string `json:"text" binding:"required"`
	URL  string `json:"url"`
}

type weatherRequest struct {
	Text string `json:"text" binding:"required"`
}

type richControlRequest struct {
	Attached *bool `json:"attached" binding:"required"`
}

// NewHandler builds the gin engine with all routes.
func NewHandler(b Backend, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	api := r.Group("/api")
	api.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, b.Status())
	})

	api.POST("/inject", func(c *gin.Context) {
		var req injectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "pid is required"})
			return
		}
		target, err := b.Inject(c.Request.Context(), req.PID)
		if err != nil {
			c.JSON(injectStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, target)
	})

	api.GET("/policy/:exe", func(c *gin.Context) {
		c.JSON(http.StatusOK, b.Policy(c.Param("exe")))
	})

	api.POST("/headline", func(c *gin.Context) {
		var req headlineRequest
		if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
			return
		}
		b.PushHeadline(req.Text, req.URL)
		c.Status(http.StatusNoContent)
	})

	api.POST("/weather", func(c *gin.Context) {
		var req weatherRequest
		if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
			return
		}
		b.PushWeather(req.Text)
		c.Status(http.StatusNoContent)
	})

	// 外部媒体控制（如系统媒体面板）接管播放后，目标退出时不再停止电台
	api.POST("/radio/rich", func(c *gin.Context) {
		var req richControlRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "attached is required"})
			return
		}
		b.SetRadioRichControl(*req.Attached)
		c.Status(http.StatusNoContent)
	})

	return r
}

func injectStatus(err error) int {
	var (
		aborted *inject.InjectionAbortedError
		launch  *inject.InjectionLaunchError
	)
	switch {
	case errors.Is(err, inject.ErrNoTarget):
		return http.StatusNotFound
	case errors.Is(err, inject.ErrTargetActive):
		return http.StatusConflict
	case errors.As(err, &aborted):
		return http.StatusUnprocessableEntity
	case errors.As(err, &launch):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("HTTP 请求",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", strconv.Itoa(c.Writer.Status()),
			"duration", time.Since(start))
	}
}

// Serve listens on addr and serves until ctx is cancelled.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("状态接口端口绑定失败 %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("🌐 状态接口已启动", "address", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("关闭状态接口失败: %w", err)
		}
		logger.Info("🛑 状态接口已关闭")
		return nil
	}
}
