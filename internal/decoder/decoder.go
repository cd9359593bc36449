// Package decoder turns raw policy bytes into text by trying a fixed list of
// encodings in priority order.
package decoder

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Encoding names, in the spelling reported to callers
const (
	UTF8SIG     = "utf-8-sig"
	UTF16       = "utf-16"
	UTF16LE     = "utf-16-le"
	UTF16BE     = "utf-16-be"
	UTF8        = "utf-8"
	Windows1252 = "windows-1252"
	Latin1      = "latin-1"
)

// DefaultOrder is the priority list. BOM-aware encodings come first so BOM
// marked files are not read as plain UTF-8. Windows-1252 precedes Latin-1
// because Latin-1 accepts every byte sequence.
var DefaultOrder = []string{UTF8SIG, UTF16, UTF16LE, UTF16BE, UTF8, Windows1252, Latin1}

// ErrDecodeFailure is matched by every error returned from Decode
var ErrDecodeFailure = errors.New("decode failure")

// DecodeError lists the encodings that were tried
type DecodeError struct {
	Attempted []string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("unable to decode input (tried %s); save the policy as UTF-8, UTF-16 or Windows-1252",
		strings.Join(e.Attempted, ", "))
}

func (e *DecodeError) Unwrap() error { return ErrDecodeFailure }

// Result of a successful decode
type Result struct {
	Text     string
	Encoding string
}

type decodeFunc func(raw []byte) (string, bool)

var registry = map[string]decodeFunc{
	UTF8SIG:     decodeUTF8SIG,
	UTF16:       decodeUTF16Auto,
	UTF16LE:     decodeUTF16LE,
	UTF16BE:     decodeUTF16BE,
	UTF8:        decodeUTF8,
	Windows1252: decodeWindows1252,
	Latin1:      decodeLatin1,
}

// Decoder tries its encodings in order
type Decoder struct {
	order []string
}

// New builds a decoder; no names means DefaultOrder
func New(names ...string) (*Decoder, error) {
	if len(names) == 0 {
		names = DefaultOrder
	}
	order := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if _, ok := registry[n]; !ok {
			return nil, fmt.Errorf("unsupported encoding: %q", n)
		}
		order = append(order, n)
	}
	return &Decoder{order: order}, nil
}

// Order the decoder will try
func (d *Decoder) Order() []string {
	return append([]string(nil), d.order...)
}

// Decode returns the first encoding that decodes raw without error
func (d *Decoder) Decode(raw []byte) (Result, error) {
	for _, name := range d.order {
		if text, ok := registry[name](raw); ok {
			return Result{Text: text, Encoding: name}, nil
		}
	}
	return Result{}, &DecodeError{Attempted: d.Order()}
}

var defaultDecoder = &Decoder{order: DefaultOrder}

// Decode with the default priority list
func Decode(raw []byte) (Result, error) {
	return defaultDecoder.Decode(raw)
}

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// NUL never appears in an XML document; its presence means BOM-less UTF-16.
func decodeUTF8SIG(raw []byte) (string, bool) {
	if !utf8.Valid(raw) || bytes.IndexByte(raw, 0) >= 0 {
		return "", false
	}
	return string(bytes.TrimPrefix(raw, bomUTF8)), true
}

func decodeUTF8(raw []byte) (string, bool) {
	if !utf8.Valid(raw) || bytes.IndexByte(raw, 0) >= 0 {
		return "", false
	}
	return string(raw), true
}

// decodeUTF16Auto honours a BOM, otherwise infers byte order from where the
// zero bytes of ASCII-range text fall.
func decodeUTF16Auto(raw []byte) (string, bool) {
	switch {
	case bytes.HasPrefix(raw, bomUTF16LE):
		return decodeUTF16(raw[2:], unicode.LittleEndian)
	case bytes.HasPrefix(raw, bomUTF16BE):
		return decodeUTF16(raw[2:], unicode.BigEndian)
	}
	even, odd := zeroParity(raw)
	switch {
	case odd > 0 && odd >= even:
		return decodeUTF16(raw, unicode.LittleEndian)
	case even > odd:
		return decodeUTF16(raw, unicode.BigEndian)
	}
	return "", false
}

func decodeUTF16LE(raw []byte) (string, bool) {
	if even, odd := zeroParity(raw); odd == 0 || even > odd {
		return "", false
	}
	return decodeUTF16(raw, unicode.LittleEndian)
}

func decodeUTF16BE(raw []byte) (string, bool) {
	if even, odd := zeroParity(raw); even == 0 || odd > even {
		return "", false
	}
	return decodeUTF16(raw, unicode.BigEndian)
}

func decodeUTF16(body []byte, e unicode.Endianness) (string, bool) {
	var order binary.ByteOrder = binary.LittleEndian
	if e == unicode.BigEndian {
		order = binary.BigEndian
	}
	if !validUTF16(body, order) {
		return "", false
	}
	return decodeWith(unicode.UTF16(e, unicode.IgnoreBOM), body)
}

// windows1252Undefined are the code points Windows-1252 leaves unassigned
var windows1252Undefined = []byte{0x81, 0x8D, 0x8F, 0x90, 0x9D}

func decodeWindows1252(raw []byte) (string, bool) {
	for _, b := range windows1252Undefined {
		if bytes.IndexByte(raw, b) >= 0 {
			return "", false
		}
	}
	return decodeWith(charmap.Windows1252, raw)
}

func decodeLatin1(raw []byte) (string, bool) {
	return decodeWith(charmap.ISO8859_1, raw)
}

func decodeWith(enc encoding.Encoding, raw []byte) (string, bool) {
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", false
	}
	return string(out), true
}

// validUTF16 rejects odd lengths and unpaired surrogates
func validUTF16(b []byte, order binary.ByteOrder) bool {
	if len(b)%2 != 0 {
		return false
	}
	for i := 0; i < len(b); i += 2 {
		u := order.Uint16(b[i:])
		switch {
		case u >= 0xD800 && u <= 0xDBFF:
			if i+3 >= len(b) {
				return false
			}
			next := order.Uint16(b[i+2:])
			if next < 0xDC00 || next > 0xDFFF {
				return false
			}
			i += 2
		case u >= 0xDC00 && u <= 0xDFFF:
			return false
		}
	}
	return true
}

func zeroParity(b []byte) (even, odd int) {
	for i, c := range b {
		if c != 0 {
			continue
		}
		if i%2 == 0 {
			even++
		} else {
			odd++
		}
	}
	return even, odd
}
