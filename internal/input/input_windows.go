//go:build windows

package input

import (
	"errors"
	"sync"
	"syscall"
	"unsafe"

	"github.com/lxn/win"
	"golang.org/x/sys/windows"
)

var errNoWindow = errors.New("no visible window for process")

type winPlatform struct{}

func newPlatform() platform { return winPlatform{} }

// 只创建一次回调，Windows 回调槽位有限
var (
	enumCallback = syscall.NewCallback(enumWindowsProc)
	enumMu       sync.Mutex
	enumState    struct {
		pid   uint32
		found windows.HWND
	}
)

func enumWindowsProc(hwnd windows.HWND, _ uintptr) uintptr {
	var pid uint32
	if _, err := windows.GetWindowThreadProcessId(hwnd, &pid); err != nil {
		return 1
	}
	if pid == enumState.pid && windows.IsWindowVisible(hwnd) {
		enumState.found = hwnd
		return 0
	}
	return 1
}

func (winPlatform) focus(pid uint32) error {
	enumMu.Lock()
	enumState.pid = pid
	enumState.found = 0
	// 回调返回 0 提前结束时 EnumWindows 会报错，以 found 为准
	_ = windows.EnumWindows(enumCallback, nil)
	hwnd := enumState.found
	enumMu.Unlock()

	if hwnd == 0 {
		return errNoWindow
	}
	if !win.SetForegroundWindow(win.HWND(hwnd)) {
		return errors.New("SetForegroundWindow refused")
	}
	return nil
}

func (winPlatform) sendKey(k Key) error {
	inputs := []win.KEYBD_INPUT{
		{Type: win.INPUT_KEYBOARD, Ki: win.KEYBDINPUT{WVk: k.VK}},
		{Type: win.INPUT_KEYBOARD, Ki: win.KEYBDINPUT{WVk: k.VK, DwFlags: win.KEYEVENTF_KEYUP}},
	}
	n := win.SendInput(uint32(len(inputs)), unsafe.Pointer(&inputs[0]), int32(unsafe.Sizeof(inputs[0])))
	if int(n) != len(inputs) {
		return errors.New("SendInput blocked")
	}
	return nil
}

func (winPlatform) openURL(u string) error {
	verb, _ := syscall.UTF16PtrFromString("open")
	file, err := syscall.UTF16PtrFromString(u)
	if err != nil {
		return err
	}
	return windows.ShellExecute(0, verb, file, nil, nil, windows.SW_SHOWNORMAL)
}
