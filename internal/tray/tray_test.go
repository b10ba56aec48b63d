package tray

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTooltip(t *testing.T) {
	assert.Equal(t, "Overlay", Tooltip("Overlay", ""))
	assert.Equal(t, "Overlay\n已连接: game.exe", Tooltip("Overlay", "已连接: game.exe"))
}
