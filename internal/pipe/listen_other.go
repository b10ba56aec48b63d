//go:build !windows

package pipe

import (
	"net"
	"os"
	"path/filepath"
)

// Path returns the unix socket standing in for the named pipe.
func Path(name string) string {
	return filepath.Join(os.TempDir(), name+".sock")
}

// Listen 在临时目录创建 unix socket，先清理残留文件
func Listen(name string, _ int) (net.Listener, error) {
	path := Path(name)
	_ = os.Remove(path)
	return net.Listen("unix", path)
}
