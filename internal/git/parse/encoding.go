package parse

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

type decoder struct {
	enc encoding.Encoding
}

// newDecoder resolves a git i18n.commitEncoding label. A nil decoder
// passes bytes through.
func newDecoder(label string) (*decoder, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, nil
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("commit encoding %q: %w", label, err)
	}
	if enc == unicode.UTF8 {
		return nil, nil
	}
	return &decoder{enc: enc}, nil
}

func (d *decoder) decode(raw []byte) (string, error) {
	if d == nil {
		return string(raw), nil
	}
	// commits written before the config change are already UTF-8
	if utf8.Valid(raw) {
		return string(raw), nil
	}
	out, err := d.enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("decode record: %w", err)
	}
	return string(out), nil
}

// ValidEncoding reports whether label names a charset the log parser can
// decode.
func ValidEncoding(label string) bool {
	_, err := newDecoder(label)
	return err == nil
}
