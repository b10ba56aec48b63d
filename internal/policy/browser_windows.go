//go:build windows

package policy

import (
	"strings"

	"golang.org/x/sys/windows/registry"

	"fullscreen-overlay/internal/process"
)

const urlChoiceKey = `Software\Microsoft\Windows\Shell\Associations\UrlAssociations\http\UserChoice`

// DefaultBrowser 从注册表解析默认浏览器的可执行文件名，失败返回空串
func DefaultBrowser() string {
	k, err := registry.OpenKey(registry.CURRENT_USER, urlChoiceKey, registry.QUERY_VALUE)
	if err != nil {
		return ""
	}
	progID, _, err := k.GetStringValue("ProgId")
	k.Close()
	if err != nil || progID == "" {
		return ""
	}

	cmdKey, err := registry.OpenKey(registry.CLASSES_ROOT, progID+`\shell\open\command`, registry.QUERY_VALUE)
	if err != nil {
		return ""
	}
	defer cmdKey.Close()
	command, _, err := cmdKey.GetStringValue("")
	if err != nil {
		return ""
	}
	return process.BaseName(commandExecutable(command))
}

// commandExecutable extracts the program path from a shell open command such
// as `"C:\Program Files\Mozilla Firefox\firefox.exe" -osint -url "%1"`.
func commandExecutable(command string) string {
	command = strings.TrimSpace(command)
	if strings.HasPrefix(command, `"`) {
		if end := strings.Index(command[1:], `"`); end >= 0 {
			return command[1 : end+1]
		}
		return strings.Trim(command, `"`)
	}
	if i := strings.Index(strings.ToLower(command), ".exe"); i >= 0 {
		return command[:i+4]
	}
	if i := strings.IndexByte(command, ' '); i >= 0 {
		return command[:i]
	}
	return command
}
