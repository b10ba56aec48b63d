//go:build !windows

package inject

import (
	"fmt"
	"os/exec"
)

// ElevatedLauncher starts the helper directly; there is no elevation prompt
// outside Windows, the helper is expected to carry its own capabilities.
type ElevatedLauncher struct{}

// NewElevatedLauncher 创建启动器
func NewElevatedLauncher() *ElevatedLauncher { return &ElevatedLauncher{} }

// Launch 启动辅助进程但不等待其结束
func (ElevatedLauncher) Launch(helper string, args []string) error {
	cmd := exec.Command(helper, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start helper: %w", err)
	}
	go cmd.Wait()
	return nil
}
