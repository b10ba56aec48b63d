package protocol

import (
	"bytes"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_OneLinePerMessage(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	require.NoError(t, w.Write(ButtonText{Label: "X"}))
	require.NoError(t, w.WriteAll(Options{Labels: []string{"a", "b"}}, RadioVolume{Volume: 7}))

	assert.Equal(t, "SET_BUTTON_TEXT:X\nOPTIONS:a,b\nRADIO_VOLUME:7\n", buf.String())
}

func TestWriter_StripsEmbeddedNewlines(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	require.NoError(t, w.Write(Weather{Text: "sunny\r\nwindy"}))
	assert.Equal(t, "WEATHER:sunny  windy\n", buf.String())
}

// 每条消息写完即刷新：底层 writer 在每次 Write 返回后就能看到完整行
func TestWriter_FlushesPerLine(t *testing.T) {
	pr, pw := io.Pipe()
	w := NewWriter(pw)
	r := NewReader(pr)

	go func() {
		_ = w.Write(RadioCurrent{Index: 4})
	}()

	line, err := r.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "RADIO_CURRENT:4", line)
	_ = pw.Close()
}

func TestWriter_ConcurrentSafety(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = w.Write(RadioVolume{Volume: n})
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 20)
	for _, l := range lines {
		assert.True(t, strings.HasPrefix(l, "RADIO_VOLUME:"), l)
	}
}

func TestReader_Lines(t *testing.T) {
	r := NewReader(strings.NewReader("RADIO_STOP\r\nSELECTED_OPTION:1\nDEACTIVATE_LEGACY"))

	var got []string
	for {
		line, err := r.ReadLine()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, line)
	}
	assert.Equal(t, []string{"RADIO_STOP", "SELECTED_OPTION:1", "DEACTIVATE_LEGACY"}, got)
}

func TestReader_LineTooLong(t *testing.T) {
	r := NewReader(strings.NewReader(strings.Repeat("a", MaxLineLength+10) + "\n"))
	_, err := r.ReadLine()
	assert.ErrorIs(t, err, ErrLineTooLong)
}
