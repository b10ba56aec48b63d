package radio

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// Playback is one running stream.
type Playback interface {
	// SetVolume applies v to the running stream and reports whether the
	// player supports live volume changes.
	SetVolume(v int) bool
	Stop() error
	Done() <-chan struct{}
}

// Player starts streams.
type Player interface {
	Play(url string, volume int) (Playback, error)
}

// ErrNoPlayer 未配置播放器命令
var ErrNoPlayer = errors.New("no player command configured")

// CommandPlayer runs an external player built from a command template with
// {url} and {volume} placeholders, e.g. "mpv --no-video --volume={volume} {url}".
type CommandPlayer struct {
	Template string
	Logger   *slog.Logger
}

// Command expands the template into argv.
func (p CommandPlayer) Command(url string, volume int) ([]string, error) {
	fields := strings.Fields(p.Template)
	if len(fields) == 0 {
		return nil, ErrNoPlayer
	}
	r := strings.NewReplacer("{url}", url, "{volume}", strconv.Itoa(volume))
	for i, f := range fields {
		fields[i] = r.Replace(f)
	}
	return fields, nil
}

// Play 启动外部播放器进程
func (p CommandPlayer) Play(url string, volume int) (Playback, error) {
	argv, err := p.Command(url, volume)
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start player: %w", err)
	}

	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("播放器已启动", "pid", cmd.Process.Pid, "argv0", argv[0])

	pb := &cmdPlayback{cmd: cmd, done: make(chan struct{})}
	go func() {
		err := cmd.Wait()
		pb.mu.Lock()
		stopped := pb.stopped
		pb.mu.Unlock()
		if err != nil && !stopped {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				logger.Warn("⚠️ 播放器异常退出", "code", exitErr.ExitCode())
			}
		}
		close(pb.done)
	}()
	return pb, nil
}

type cmdPlayback struct {
	cmd  *exec.Cmd
	done chan struct{}

	mu      sync.Mutex
	stopped bool
}

// 命令行播放器不支持运行中调节音量，新音量在下次播放时生效
func (*cmdPlayback) SetVolume(int) bool { return false }

func (p *cmdPlayback) Stop() error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	p.mu.Unlock()

	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("stop player: %w", err)
	}
	<-p.done
	return nil
}

func (p *cmdPlayback) Done() <-chan struct{} { return p.done }
