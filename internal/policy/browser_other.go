//go:build !windows

package policy

import (
	"os/exec"
	"strings"
)

// DefaultBrowser 通过 xdg-settings 查询默认浏览器，失败返回空串
func DefaultBrowser() string {
	out, err := exec.Command("xdg-settings", "get", "default-web-browser").Output()
	if err != nil {
		return ""
	}
	// firefox.desktop → firefox
	name := strings.TrimSpace(string(out))
	return strings.TrimSuffix(name, ".desktop")
}
