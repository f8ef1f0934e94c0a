package core

// streaming.go cleans up upload bodies before CSV decoding without
// buffering the whole file:
//
//   - BOMSkippingReader drops the UTF-8 byte order mark Excel likes to add
//   - UTF8Sanitizer replaces invalid UTF-8 bytes with '?'
//   - CountingReader records how many bytes were consumed
//
// Use WrapForStreaming to apply all three in the right order.

import (
	"bufio"
	"bytes"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// BOMSkippingReader skips a leading UTF-8 BOM if present.
type BOMSkippingReader struct {
	r       *bufio.Reader
	checked bool
}

// NewBOMSkippingReader wraps r.
func NewBOMSkippingReader(r io.Reader) *BOMSkippingReader {
	return &BOMSkippingReader{r: bufio.NewReader(r)}
}

func (b *BOMSkippingReader) Read(p []byte) (int, error) {
	if !b.checked {
		b.checked = true
		if head, err := b.r.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
			if _, err := b.r.Discard(len(utf8BOM)); err != nil {
				return 0, err
			}
		}
	}
	return b.r.Read(p)
}

const sanitizeChunkSize = 32 * 1024

// UTF8Sanitizer replaces every byte that is not part of a valid UTF-8
// sequence with '?'. Multi-byte sequences split across reads are kept intact.
type UTF8Sanitizer struct {
	src    io.Reader
	chunk  []byte
	raw    []byte // bytes read but not yet sanitized
	outBuf []byte
	out    []byte // sanitized bytes not yet returned
	err    error
}

// NewUTF8Sanitizer wraps r.
func NewUTF8Sanitizer(r io.Reader) *UTF8Sanitizer {
	return &UTF8Sanitizer{
		src:   r,
		chunk: make([]byte, sanitizeChunkSize),
	}
}

func (s *UTF8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for len(s.out) == 0 {
		if s.err != nil {
			return 0, s.err
		}
		s.fill()
	}
	n := copy(p, s.out)
	s.out = s.out[n:]
	return n, nil
}

func (s *UTF8Sanitizer) fill() {
	n, err := s.src.Read(s.chunk)
	s.raw = append(s.raw, s.chunk[:n]...)
	s.err = err
	atEOF := err != nil

	s.outBuf = s.outBuf[:0]
	i := 0
	for i < len(s.raw) {
		c := s.raw[i]
		if c < utf8.RuneSelf {
			s.outBuf = append(s.outBuf, c)
			i++
			continue
		}
		// Wait for the rest of a sequence cut off by the read boundary.
		if !atEOF && !utf8.FullRune(s.raw[i:]) {
			break
		}
		r, size := utf8.DecodeRune(s.raw[i:])
		if r == utf8.RuneError && size == 1 {
			s.outBuf = append(s.outBuf, '?')
			i++
			continue
		}
		s.outBuf = append(s.outBuf, s.raw[i:i+size]...)
		i += size
	}
	s.raw = append(s.raw[:0], s.raw[i:]...)
	s.out = s.outBuf
}

// CountingReader tracks bytes read through it.
type CountingReader struct {
	r         io.Reader
	BytesRead int64
}

// NewCountingReader wraps r.
func NewCountingReader(r io.Reader) *CountingReader {
	return &CountingReader{r: r}
}

func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.BytesRead += int64(n)
	return n, err
}

// WrapForStreaming strips the BOM, sanitizes UTF-8 and counts the bytes
// that reach the CSV decoder.
func WrapForStreaming(r io.Reader) *CountingReader {
	return NewCountingReader(NewUTF8Sanitizer(NewBOMSkippingReader(r)))
}
