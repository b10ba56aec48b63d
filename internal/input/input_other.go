//go:build !windows

package input

import (
	"fmt"
	"os/exec"
	"strconv"
)

// xdoPlatform drives X11 through xdotool and opens links with xdg-open.
type xdoPlatform struct{}

func newPlatform() platform { return xdoPlatform{} }

func (xdoPlatform) focus(pid uint32) error {
	out, err := exec.Command("xdotool", "search", "--onlyvisible", "--pid", strconv.FormatUint(uint64(pid), 10), "windowactivate").CombinedOutput()
	if err != nil {
		return fmt.Errorf("xdotool windowactivate: %w (%s)", err, out)
	}
	return nil
}

func (xdoPlatform) sendKey(k Key) error {
	if k.X11 == "" {
		return fmt.Errorf("%w: %s has no X11 name", ErrUnknownKey, k.ID)
	}
	if out, err := exec.Command("xdotool", "key", k.X11).CombinedOutput(); err != nil {
		return fmt.Errorf("xdotool key: %w (%s)", err, out)
	}
	return nil
}

func (xdoPlatform) openURL(u string) error {
	cmd := exec.Command("xdg-open", u)
	if err := cmd.Start(); err != nil {
		return err
	}
	go cmd.Wait()
	return nil
}
