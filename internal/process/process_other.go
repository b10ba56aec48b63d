//go:build !windows

package process

import (
	"context"
	"debug/elf"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

func is64BitOS() bool {
	switch runtime.GOARCH {
	case "amd64", "arm64", "ppc64", "ppc64le", "s390x", "mips64", "mips64le", "riscv64", "loong64":
		return true
	}
	return false
}

// isCompat32 reads the ELF class of the process image; a 32-bit class on a
// 64-bit kernel is the compatibility case.
func isCompat32(pid uint32) (bool, error) {
	f, err := elf.Open(fmt.Sprintf("/proc/%d/exe", pid))
	if err != nil {
		return false, &PlatformQueryError{PID: pid, Code: errnoCode(err), Err: err}
	}
	defer f.Close()
	return f.Class == elf.ELFCLASS32, nil
}

func errnoCode(err error) uint32 {
	var errno unix.Errno
	if errors.As(err, &errno) {
		return uint32(errno)
	}
	return 0
}

// Lookup 返回进程名
func Lookup(pid uint32) (string, error) {
	data, err := os.ReadFile("/proc/" + strconv.FormatUint(uint64(pid), 10) + "/comm")
	if err != nil {
		return "", fmt.Errorf("lookup process %d: %w", pid, err)
	}
	return BaseName(strings.TrimSpace(string(data))), nil
}

// WaitExit blocks until pid terminates or ctx is done.
func WaitExit(ctx context.Context, pid uint32) error {
	return pollExit(ctx, 250*time.Millisecond, func() (bool, error) {
		return alive(pid), nil
	})
}

func alive(pid uint32) bool {
	err := unix.Kill(int(pid), 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
