package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnknownTag is returned by Decode for tags outside the inbound
// vocabulary. Callers ignore such lines.
var ErrUnknownTag = errors.New("unknown tag")

// ParseError reports a line whose payload does not fit its tag.
type ParseError struct {
	Tag     string
	Payload string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s payload %q: %v", e.Tag, e.Payload, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Encode 把出站消息编码为一行（不含换行符）
func Encode(m Outbound) string {
	return m.Tag() + ":" + m.Payload()
}

// Decode 解析一行入站消息；标签大小写不敏感
func Decode(line string) (Inbound, error) {
	line = strings.TrimRight(line, "\r\n")
	tag, payload, _ := strings.Cut(line, ":")
	tag = strings.ToUpper(strings.TrimSpace(tag))

	switch tag {
	case TagSelectedOption:
		n, err := parseIndex(tag, payload)
		if err != nil {
			return nil, err
		}
		return SelectedOption{Index: n}, nil
	case TagButtonClicked:
		keyID := strings.TrimSpace(payload)
		if keyID == "" {
			return nil, &ParseError{Tag: tag, Payload: payload, Err: errors.New("empty key id")}
		}
		return ButtonClicked{KeyID: keyID}, nil
	case TagHeadlineClicked:
		// URL 本身含冒号，取第一个冒号之后的全部内容
		url := strings.TrimSpace(payload)
		if url == "" {
			return nil, &ParseError{Tag: tag, Payload: payload, Err: errors.New("empty url")}
		}
		return HeadlineClicked{URL: url}, nil
	case TagRadioSelected:
		n, err := parseIndex(tag, payload)
		if err != nil {
			return nil, err
		}
		return RadioSelected{Index: n}, nil
	case TagRadioVolumeChanged:
		n, err := parseInt(tag, payload)
		if err != nil {
			return nil, err
		}
		if n < 0 || n > 100 {
			return nil, &ParseError{Tag: tag, Payload: payload, Err: errors.New("volume out of range")}
		}
		return RadioVolumeChanged{Volume: n}, nil
	case TagRadioStop:
		return RadioStop{}, nil
	case TagActivateLegacy:
		return ActivateLegacy{}, nil
	case TagDeactivateLegacy:
		return DeactivateLegacy{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownTag, tag)
}

func parseInt(tag, payload string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(payload))
	if err != nil {
		return 0, &ParseError{Tag: tag, Payload: payload, Err: err}
	}
	return n, nil
}

func parseIndex(tag, payload string) (int, error) {
	n, err := parseInt(tag, payload)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, &ParseError{Tag: tag, Payload: payload, Err: errors.New("negative index")}
	}
	return n, nil
}
