// Package buttons 解析按程序配置的自定义按钮表
//
// 表的每一行是 exe|label|keyId，单行存储时行与行之间用 ; 分隔。
package buttons

import (
	"strings"

	"fullscreen-overlay/internal/protocol"
)

const (
	lineSeparator  = ";"
	fieldSeparator = "|"
)

// ConvertToSingleLine joins the non-blank lines of a multi-line table with
// semicolons. Surrounding whitespace on each line is dropped.
func ConvertToSingleLine(multi string) string {
	multi = strings.ReplaceAll(multi, "\r\n", "\n")
	multi = strings.ReplaceAll(multi, "\r", "\n")

	var lines []string
	for _, line := range strings.Split(multi, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, lineSeparator)
}

// ConvertToMultiLine splits a single-line table into one entry per line.
func ConvertToMultiLine(single string) string {
	var lines []string
	for _, line := range strings.Split(single, lineSeparator) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// ButtonsForExecutable 返回与 exe 匹配的按钮（大小写不敏感，保持配置顺序）
// 只有恰好三个字段的行才会被采纳
func ButtonsForExecutable(table, exe string) []protocol.Button {
	want := normalizeExe(exe)
	if want == "" {
		return nil
	}

	var out []protocol.Button
	for _, line := range strings.Split(ConvertToSingleLine(table), lineSeparator) {
		fields := strings.Split(line, fieldSeparator)
		if len(fields) != 3 {
			continue
		}
		if normalizeExe(fields[0]) != want {
			continue
		}
		// 空白标签或键也原样保留，条目数与配置行一一对应
		out = append(out, protocol.Button{
			Label: strings.TrimSpace(fields[1]),
			KeyID: strings.TrimSpace(fields[2]),
		})
	}
	return out
}

// GetConfigForExecutable returns the matching entries as label|id pairs
// joined with commas, or "" when nothing matches.
func GetConfigForExecutable(table, exe string) string {
	btns := ButtonsForExecutable(table, exe)
	parts := make([]string, len(btns))
	for i, b := range btns {
		parts[i] = b.String()
	}
	return strings.Join(parts, ",")
}

func normalizeExe(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.TrimSuffix(name, ".exe")
}
