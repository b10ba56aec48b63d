//go:build windows

package inject

import (
	"fmt"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/sys/windows"
)

// ElevatedLauncher starts the helper through ShellExecute with the "runas"
// verb and a hidden window.
type ElevatedLauncher struct{}

// NewElevatedLauncher 创建提权启动器
func NewElevatedLauncher() *ElevatedLauncher { return &ElevatedLauncher{} }

// Launch 启动辅助进程；用户拒绝 UAC 时返回 ERROR_CANCELLED
func (ElevatedLauncher) Launch(helper string, args []string) error {
	abs, err := filepath.Abs(helper)
	if err != nil {
		return fmt.Errorf("resolve helper path: %w", err)
	}

	verb, _ := syscall.UTF16PtrFromString("runas")
	file, err := syscall.UTF16PtrFromString(abs)
	if err != nil {
		return err
	}
	params, err := syscall.UTF16PtrFromString(joinArgs(args))
	if err != nil {
		return err
	}
	dir, _ := syscall.UTF16PtrFromString(filepath.Dir(abs))

	return windows.ShellExecute(0, verb, file, params, dir, windows.SW_HIDE)
}

// joinArgs quotes arguments that contain spaces or are executable/module
// paths, matching inject "<exe>" "<module>" <timeout>.
func joinArgs(args []string) string {
	parts := make([]string, len(args))
	for i, a := range args {
		if i == 1 || i == 2 || strings.ContainsAny(a, " \t") {
			parts[i] = `"` + a + `"`
		} else {
			parts[i] = a
		}
	}
	return strings.Join(parts, " ")
}
