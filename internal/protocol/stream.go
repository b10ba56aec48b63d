package protocol

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// MaxLineLength 单行上限，超出视为连接异常
const MaxLineLength = 64 * 1024

// ErrLineTooLong is returned by Reader when a line exceeds MaxLineLength.
var ErrLineTooLong = errors.New("line too long")

// Writer serializes outbound messages onto a stream. Each message is written
// and flushed as one complete line, so a cancelled connection never carries a
// partial frame.
type Writer struct {
	mu sync.Mutex
	bw *bufio.Writer
}

// NewWriter 创建线程安全的行写入器
func NewWriter(w io.Writer) *Writer {
	return &Writer{bw: bufio.NewWriter(w)}
}

// Write 写入一条消息并立即刷新
func (w *Writer) Write(m Outbound) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writeLocked(m)
}

// WriteAll writes messages in order without letting another writer interleave.
func (w *Writer) WriteAll(msgs ...Outbound) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, m := range msgs {
		if err := w.writeLocked(m); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeLocked(m Outbound) error {
	line := Encode(m)
	// 负载中的换行会破坏分帧
	line = strings.NewReplacer("\r", " ", "\n", " ").Replace(line)
	if _, err := w.bw.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("write %s: %w", m.Tag(), err)
	}
	if err := w.bw.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", m.Tag(), err)
	}
	return nil
}

// Reader reads one line at a time from the client.
type Reader struct {
	br *bufio.Reader
}

// NewReader 创建行读取器
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReaderSize(r, 4096)}
}

// ReadLine returns the next line without its terminator. A final unterminated
// line is returned before io.EOF.
func (r *Reader) ReadLine() (string, error) {
	var sb strings.Builder
	for {
		chunk, isPrefix, err := r.br.ReadLine()
		if err != nil {
			if err == io.EOF && sb.Len() > 0 {
				return sb.String(), nil
			}
			return "", err
		}
		sb.Write(chunk)
		if sb.Len() > MaxLineLength {
			return "", ErrLineTooLong
		}
		if !isPrefix {
			return strings.TrimRight(sb.String(), "\r"), nil
		}
	}
}
