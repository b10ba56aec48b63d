// Package process 描述被注入的目标进程：位数探测、名称查询与退出等待
package process

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Arch is the image width a process runs as.
type Arch int

const (
	Arch32 Arch = 32
	Arch64 Arch = 64
)

func (a Arch) String() string {
	switch a {
	case Arch32:
		return "x86"
	case Arch64:
		return "x64"
	default:
		return fmt.Sprintf("arch(%d)", int(a))
	}
}

// Target identifies the process currently hosting the injected overlay.
type Target struct {
	PID  uint32 `json:"pid"`
	Name string `json:"name"` // base name without .exe
	Arch Arch   `json:"arch"`
}

// ExeName 返回带 .exe 后缀的可执行文件名
func (t Target) ExeName() string {
	return t.Name + ".exe"
}

// BaseName strips directories and a trailing .exe (any case) from an
// executable path.
func BaseName(path string) string {
	path = strings.ReplaceAll(path, `\`, "/")
	name := filepath.Base(path)
	if name == "." || name == "/" {
		return ""
	}
	if strings.HasSuffix(strings.ToLower(name), ".exe") {
		name = name[:len(name)-4]
	}
	return name
}

// PlatformQueryError reports a failed architecture query. Code carries the
// OS error number when one is available.
type PlatformQueryError struct {
	PID  uint32
	Code uint32
	Err  error
}

func (e *PlatformQueryError) Error() string {
	return fmt.Sprintf("query architecture of pid %d failed (code %d): %v", e.PID, e.Code, e.Err)
}

func (e *PlatformQueryError) Unwrap() error { return e.Err }

// Prober determines whether a process runs as a 32-bit or 64-bit image.
type Prober struct {
	// is64BitOS 报告操作系统本身是否为 64 位
	is64BitOS func() bool
	// isCompat32 报告进程是否运行在 32 位兼容子系统（WOW64）下
	isCompat32 func(pid uint32) (bool, error)
}

// NewProber 返回当前平台的探测器
func NewProber() *Prober {
	return &Prober{is64BitOS: is64BitOS, isCompat32: isCompat32}
}

// Probe returns the architecture of pid. A 32-bit OS always yields Arch32
// without querying the process.
func (p *Prober) Probe(pid uint32) (Arch, error) {
	if !p.is64BitOS() {
		return Arch32, nil
	}
	compat, err := p.isCompat32(pid)
	if err != nil {
		return 0, err
	}
	if compat {
		return Arch32, nil
	}
	return Arch64, nil
}

// pollExit calls running every interval until it reports false or fails, or
// ctx is done.
func pollExit(ctx context.Context, interval time.Duration, running func() (bool, error)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		ok, err := running()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
