//go:build windows

package process

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sys/windows"
)

func is64BitOS() bool {
	if runtime.GOARCH == "amd64" || runtime.GOARCH == "arm64" {
		return true
	}
	// 32 位宿主运行在 64 位系统上时自身处于 WOW64 中
	var wow bool
	if err := windows.IsWow64Process(windows.CurrentProcess(), &wow); err != nil {
		return false
	}
	return wow
}

func isCompat32(pid uint32) (bool, error) {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, pid)
	if err != nil {
		return false, &PlatformQueryError{PID: pid, Code: errnoCode(err), Err: err}
	}
	defer windows.CloseHandle(h)

	var wow bool
	if err := windows.IsWow64Process(h, &wow); err != nil {
		return false, &PlatformQueryError{PID: pid, Code: errnoCode(err), Err: err}
	}
	return wow, nil
}

func errnoCode(err error) uint32 {
	var errno windows.Errno
	if errors.As(err, &errno) {
		return uint32(errno)
	}
	return 0
}

// Lookup 返回进程的可执行文件名（不含 .exe）
func Lookup(pid uint32) (string, error) {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, pid)
	if err != nil {
		return "", fmt.Errorf("open process %d: %w", pid, err)
	}
	defer windows.CloseHandle(h)

	buf := make([]uint16, windows.MAX_LONG_PATH)
	size := uint32(len(buf))
	if err := windows.QueryFullProcessImageName(h, 0, &buf[0], &size); err != nil {
		return "", fmt.Errorf("query image name of %d: %w", pid, err)
	}
	return BaseName(windows.UTF16ToString(buf[:size])), nil
}

// WaitExit blocks until pid terminates or ctx is done.
func WaitExit(ctx context.Context, pid uint32) error {
	h, err := windows.OpenProcess(windows.SYNCHRONIZE, false, pid)
	if err != nil {
		if errors.Is(err, windows.ERROR_INVALID_PARAMETER) {
			// 进程已不存在
			return nil
		}
		if errors.Is(err, windows.ERROR_ACCESS_DENIED) {
			// 提权目标拒绝 SYNCHRONIZE，退回到探测时可用的查询权限轮询退出码
			return pollExitCode(ctx, pid)
		}
		return fmt.Errorf("open process %d: %w", pid, err)
	}
	defer windows.CloseHandle(h)

	const slice = 250 * time.Millisecond
	for {
		ev, err := windows.WaitForSingleObject(h, uint32(slice/time.Millisecond))
		if err != nil {
			return fmt.Errorf("wait for process %d: %w", pid, err)
		}
		if ev == windows.WAIT_OBJECT_0 {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// STILL_ACTIVE
const stillActive = 259

func pollExitCode(ctx context.Context, pid uint32) error {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, pid)
	if err != nil {
		if errors.Is(err, windows.ERROR_INVALID_PARAMETER) {
			return nil
		}
		return fmt.Errorf("open process %d: %w", pid, err)
	}
	defer windows.CloseHandle(h)

	return pollExit(ctx, 250*time.Millisecond, func() (bool, error) {
		var code uint32
		if err := windows.GetExitCodeProcess(h, &code); err != nil {
			return false, fmt.Errorf("query exit code of %d: %w", pid, err)
		}
		return code == stillActive, nil
	})
}
