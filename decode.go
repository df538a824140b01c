package loraterm

import (
	"errors"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// textDecoder decodes a byte stream as UTF-8 in arbitrary chunks. An
// incomplete multi-byte sequence at the end of a chunk is held back and
// prefixed to the next one; invalid bytes decode to U+FFFD.
type textDecoder struct {
	t       transform.Transformer
	pending []byte
}

func newTextDecoder() *textDecoder {
	return &textDecoder{t: unicode.UTF8.NewDecoder()}
}

func (d *textDecoder) Decode(p []byte) string {
	return d.run(p, false)
}

// Flush decodes whatever is still held back.
func (d *textDecoder) Flush() string {
	return d.run(nil, true)
}

func (d *textDecoder) run(p []byte, atEOF bool) string {
	src := append(d.pending, p...)
	d.pending = nil
	if len(src) == 0 {
		return ""
	}

	// worst case every byte becomes a 3-byte replacement character; the
	// transformer also wants room for one full rune past the last write
	dst := make([]byte, 3*len(src)+utf8.UTFMax)
	nDst, nSrc, err := d.t.Transform(dst, src, atEOF)
	if err != nil && !errors.Is(err, transform.ErrShortSrc) {
		d.t.Reset()
		return string(dst[:nDst])
	}
	if nSrc < len(src) {
		d.pending = append([]byte(nil), src[nSrc:]...)
	}
	return string(dst[:nDst])
}
