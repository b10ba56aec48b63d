// Package input 向目标进程模拟按键，并负责打开链接后恢复焦点
package input

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnknownKey 无法识别的按键标识
var ErrUnknownKey = errors.New("unknown key id")

// Key is a resolved key: the Windows virtual-key code and the X11 keysym
// name used by xdotool.
type Key struct {
	ID  string
	VK  uint16
	X11 string
}

var namedKeys = map[string]Key{
	"ESC":         {VK: 0x1B, X11: "Escape"},
	"ESCAPE":      {VK: 0x1B, X11: "Escape"},
	"ENTER":       {VK: 0x0D, X11: "Return"},
	"RETURN":      {VK: 0x0D, X11: "Return"},
	"SPACE":       {VK: 0x20, X11: "space"},
	"TAB":         {VK: 0x09, X11: "Tab"},
	"BACKSPACE":   {VK: 0x08, X11: "BackSpace"},
	"PAUSE":       {VK: 0x13, X11: "Pause"},
	"PGUP":        {VK: 0x21, X11: "Prior"},
	"PAGEUP":      {VK: 0x21, X11: "Prior"},
	"PGDN":        {VK: 0x22, X11: "Next"},
	"PAGEDOWN":    {VK: 0x22, X11: "Next"},
	"END":         {VK: 0x23, X11: "End"},
	"HOME":        {VK: 0x24, X11: "Home"},
	"LEFT":        {VK: 0x25, X11: "Left"},
	"UP":          {VK: 0x26, X11: "Up"},
	"RIGHT":       {VK: 0x27, X11: "Right"},
	"DOWN":        {VK: 0x28, X11: "Down"},
	"PRINTSCREEN": {VK: 0x2C, X11: "Print"},
	"INSERT":      {VK: 0x2D, X11: "Insert"},
	"DELETE":      {VK: 0x2E, X11: "Delete"},
	"DEL":         {VK: 0x2E, X11: "Delete"},
	"MUTE":        {VK: 0xAD, X11: "XF86AudioMute"},
	"VOLDOWN":     {VK: 0xAE, X11: "XF86AudioLowerVolume"},
	"VOLUP":       {VK: 0xAF, X11: "XF86AudioRaiseVolume"},
	"PLAYPAUSE":   {VK: 0xB3, X11: "XF86AudioPlay"},
}

// LookupKey resolves a button key id. Accepted forms: letters and digits
// ("A", "7"), function keys ("F5"), numpad digits ("NUMPAD3"), the names in
// the table above, and raw virtual-key codes ("0x74"). Matching ignores case.
func LookupKey(id string) (Key, error) {
	norm := strings.ToUpper(strings.TrimSpace(id))
	if norm == "" {
		return Key{}, fmt.Errorf("%w: empty", ErrUnknownKey)
	}

	if k, ok := namedKeys[norm]; ok {
		k.ID = norm
		return k, nil
	}

	if len(norm) == 1 {
		c := norm[0]
		switch {
		case c >= 'A' && c <= 'Z':
			return Key{ID: norm, VK: uint16(c), X11: strings.ToLower(norm)}, nil
		case c >= '0' && c <= '9':
			return Key{ID: norm, VK: uint16(c), X11: norm}, nil
		}
	}

	if n, ok := suffixNumber(norm, "F"); ok && n >= 1 && n <= 24 {
		return Key{ID: norm, VK: uint16(0x70 + n - 1), X11: "F" + strconv.Itoa(n)}, nil
	}
	if n, ok := suffixNumber(norm, "NUMPAD"); ok && n >= 0 && n <= 9 {
		return Key{ID: norm, VK: uint16(0x60 + n), X11: "KP_" + strconv.Itoa(n)}, nil
	}

	if strings.HasPrefix(norm, "0X") {
		v, err := strconv.ParseUint(norm[2:], 16, 8)
		if err == nil && v > 0 {
			return Key{ID: norm, VK: uint16(v)}, nil
		}
	}

	return Key{}, fmt.Errorf("%w: %q", ErrUnknownKey, id)
}

func suffixNumber(s, prefix string) (int, bool) {
	if !strings.HasPrefix(s, prefix) || len(s) == len(prefix) {
		return 0, false
	}
	n, err := strconv.Atoi(s[len(prefix):])
	return n, err == nil
}
