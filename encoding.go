package evnet

import (
	"encoding/hex"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Encoding is one of the string encodings Socket.SetEncoding accepts.
type Encoding int

const (
	EncodingNone Encoding = iota
	EncodingUTF8
	EncodingUTF16BE
	EncodingUTF16LE
	EncodingUTF32BE
	EncodingUTF32LE
	EncodingHex
)

// ParseEncoding maps a case-insensitive name to an Encoding, the zero
// value (ok == false) meaning "unsupported" — callers must then clear
// any installed decoder and return false rather than install a
// half-configured one.
func ParseEncoding(name string) (Encoding, bool) {
	switch strings.ToLower(name) {
	case "utf8", "UTF8", "utf-8", "UTF-8":
		return EncodingUTF8, true
	case "utf16be", "UTF16BE", "utf-16be":
		return EncodingUTF16BE, true
	case "utf16le", "UTF16LE", "utf-16le":
		return EncodingUTF16LE, true
	case "utf32be", "UTF32BE", "utf-32be":
		return EncodingUTF32BE, true
	case "utf32le", "UTF32LE", "utf-32le":
		return EncodingUTF32LE, true
	case "hex", "HEX":
		return EncodingHex, true
	case "none", "NONE", "":
		return EncodingNone, true
	default:
		return EncodingNone, false
	}
}

// stringDecoder converts successive read buffers into strings for the
// Socket "data" event. UTF-16 and UTF-32 are stateful across calls, so
// a code unit split across two TCP reads still decodes correctly.
// UTF-8 and NONE are a per-buffer passthrough (a UTF-8 sequence split
// across reads is not held back); HEX is stdlib encoding/hex, also per
// buffer. UTF-16 is golang.org/x/text/encoding/unicode; UTF-32 has no
// ready x/text codec under the same package and gets a small stateful
// decoder here, built on the standard library (see DESIGN.md).
type stringDecoder struct {
	enc   Encoding
	xform transform.Transformer // for UTF-16
	pend  []byte                // leftover undecoded bytes (UTF-16/UTF-32: partial unit)
}

func newStringDecoder(enc Encoding) *stringDecoder {
	d := &stringDecoder{enc: enc}
	switch enc {
	case EncodingUTF16BE:
		d.xform = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder()
	case EncodingUTF16LE:
		d.xform = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	}
	return d
}

// Decode consumes buf and returns the string to emit on "data", which
// may be shorter than a naive per-buffer decode if a unit straddled
// the buffer boundary (the remainder is retained for the next call).
func (d *stringDecoder) Decode(buf []byte) string {
	switch d.enc {
	case EncodingNone, EncodingUTF8:
		return string(buf)
	case EncodingHex:
		return hex.EncodeToString(buf)
	case EncodingUTF16BE, EncodingUTF16LE:
		return d.decodeUTF16(buf)
	case EncodingUTF32BE, EncodingUTF32LE:
		return d.decodeUTF32(buf)
	default:
		return string(buf)
	}
}

// decodeUTF16 feeds buf through the x/text transform with atEOF=false
// so a 2-byte unit (or surrogate pair) split across reads is retained
// in d.pend rather than rejected as malformed.
func (d *stringDecoder) decodeUTF16(buf []byte) string {
	src := append(d.pend, buf...)
	dst := make([]byte, len(src)*4+16)
	nDst, nSrc, err := d.xform.Transform(dst, src, false)
	for err == transform.ErrShortDst {
		dst = make([]byte, len(dst)*2)
		nDst, nSrc, err = d.xform.Transform(dst, src, false)
	}
	d.pend = append(d.pend[:0], src[nSrc:]...)
	return string(dst[:nDst])
}

func (d *stringDecoder) decodeUTF32(buf []byte) string {
	data := append(d.pend, buf...)
	n := len(data) - len(data)%4
	d.pend = append(d.pend[:0], data[n:]...)
	data = data[:n]

	runes := make([]rune, 0, n/4)
	for i := 0; i < n; i += 4 {
		var r rune
		if d.enc == EncodingUTF32BE {
			r = rune(uint32(data[i])<<24 | uint32(data[i+1])<<16 | uint32(data[i+2])<<8 | uint32(data[i+3]))
		} else {
			r = rune(uint32(data[i+3])<<24 | uint32(data[i+2])<<16 | uint32(data[i+1])<<8 | uint32(data[i]))
		}
		runes = append(runes, r)
	}
	return string(runes)
}
