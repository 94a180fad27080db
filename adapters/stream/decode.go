package stream

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/satriahrh/cocoa-fruit/gateway/domain"
)

// StripCJK removes CJK ideographs, hiragana, katakana and hangul syllables.
func StripCJK(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 0x4E00 && r <= 0x9FFF,
			r >= 0x3040 && r <= 0x309F,
			r >= 0x30A0 && r <= 0x30FF,
			r >= 0xAC00 && r <= 0xD7AF:
			return -1
		}
		return r
	}, s)
}

// DecodeDeltas reads an OpenAI-compatible token stream from r, calls onDelta
// with every filtered text delta and returns the accumulated text.
// Lines that are not valid JSON are skipped; "[DONE]" ends the read.
func DecodeDeltas(ctx context.Context, r io.Reader, onDelta func(delta string) error) (string, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	var full strings.Builder

	for {
		if err := ctx.Err(); err != nil {
			return full.String(), err
		}

		line, readErr := br.ReadString('\n')
		if line != "" {
			done, err := decodeLine(line, &full, onDelta)
			if err != nil || done {
				return full.String(), err
			}
		}

		if readErr != nil {
			if readErr == io.EOF {
				return full.String(), nil
			}
			if err := ctx.Err(); err != nil {
				return full.String(), err
			}
			return full.String(), fmt.Errorf("reading stream: %w", readErr)
		}
	}
}

func decodeLine(line string, full *strings.Builder, onDelta func(string) error) (bool, error) {
	data, ok := strings.CutPrefix(strings.TrimSpace(line), "data:")
	if !ok {
		return false, nil
	}
	data = strings.TrimSpace(data)
	if data == DoneSentinel {
		return true, nil
	}
	if !gjson.Valid(data) {
		return false, nil
	}

	if e := gjson.Get(data, "error"); e.IsObject() {
		return true, &domain.ProviderError{
			Code:    int(e.Get("code").Int()),
			Message: e.Get("message").String(),
		}
	}

	delta := StripCJK(gjson.Get(data, "choices.0.delta.content").String())
	if delta == "" {
		return false, nil
	}
	full.WriteString(delta)
	if onDelta != nil {
		if err := onDelta(delta); err != nil {
			return true, err
		}
	}
	return false, nil
}
