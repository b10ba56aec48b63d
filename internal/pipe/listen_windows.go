//go:build windows

package pipe

import (
	"net"

	"github.com/Microsoft/go-winio"
)

// 允许所有人与已认证用户访问，注入模块运行在游戏进程的权限下
const securityDescriptor = "D:(A;;GA;;;WD)(A;;GA;;;AU)"

// Path 返回命名管道的完整路径
func Path(name string) string {
	return `\\.\pipe\` + name
}

// Listen creates a single-instance message-mode pipe.
func Listen(name string, bufferSize int) (net.Listener, error) {
	return winio.ListenPipe(Path(name), &winio.PipeConfig{
		SecurityDescriptor: securityDescriptor,
		MessageMode:        true,
		InputBufferSize:    int32(bufferSize),
		OutputBufferSize:   int32(bufferSize),
	})
}
