// Package policy 根据可执行文件名判断目标应使用的覆盖层形态
package policy

import (
	"strings"

	"fullscreen-overlay/config"
	"fullscreen-overlay/internal/process"
)

// builtinBrowsers 内置浏览器黑名单（精确匹配）
var builtinBrowsers = []string{
	"chrome", "msedge", "firefox", "opera", "opera_gx", "brave",
	"vivaldi", "iexplore", "chromium", "waterfox", "librewolf", "yandex",
}

// builtinMediaPlayers 已知与注入不兼容的播放器（前缀匹配）
var builtinMediaPlayers = []string{
	"vlc", "mpc-hc", "mpc-be", "potplayer", "mpv", "wmplayer",
	"kmplayer", "gom", "smplayer", "zplayer", "daum",
}

// Classifier answers policy questions from live configuration. Nothing is
// cached: each call reads the current config through the provider.
type Classifier struct {
	cfg            func() *config.Config
	defaultBrowser func() string
}

// NewClassifier creates a classifier. defaultBrowser may be nil, in which case
// the platform lookup is used when the config does not name one.
func NewClassifier(cfg func() *config.Config, defaultBrowser func() string) *Classifier {
	if defaultBrowser == nil {
		defaultBrowser = DefaultBrowser
	}
	return &Classifier{cfg: cfg, defaultBrowser: defaultBrowser}
}

// UsesSimpleOverlay reports whether name should get the reduced overlay.
func (c *Classifier) UsesSimpleOverlay(name string) bool {
	n := normalize(name)
	if n == "" {
		return false
	}
	for _, b := range builtinBrowsers {
		if n == b {
			return true
		}
	}

	pc := c.policy()
	browser := pc.DefaultBrowser
	if browser == "" {
		browser = c.defaultBrowser()
	}
	if browser != "" && normalize(browser) == n {
		return true
	}

	return inList(pc.SimpleOverlayApps, n)
}

// IsForcedExternal reports whether name must use the host-drawn overlay.
// Built-in players match by prefix, user entries match exactly.
func (c *Classifier) IsForcedExternal(name string) bool {
	n := normalize(name)
	if n == "" {
		return false
	}
	for _, p := range builtinMediaPlayers {
		if strings.HasPrefix(n, p) {
			return true
		}
	}
	return inList(c.policy().ForcedExternalApps, n)
}

// ProblematicCase is the hook for module-presence heuristics on targets that
// misbehave with in-process rendering. No heuristic is defined yet.
func (c *Classifier) ProblematicCase(name string) bool {
	return false
}

func (c *Classifier) policy() config.PolicyConfig {
	if c.cfg == nil {
		return config.PolicyConfig{}
	}
	cfg := c.cfg()
	if cfg == nil {
		return config.PolicyConfig{}
	}
	return cfg.Policy
}

func inList(list, n string) bool {
	for _, item := range strings.Split(list, ";") {
		if normalize(item) == n && n != "" {
			return true
		}
	}
	return false
}

func normalize(name string) string {
	return strings.ToLower(process.BaseName(strings.TrimSpace(name)))
}
