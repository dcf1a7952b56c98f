package query

import (
	"encoding/binary"

	"github.com/woozymasta/omp-launcher/internal/apperr"
)

// reader walks a response payload. Every read is bounds checked and no buffer
// larger than the remaining payload is ever sliced.
type reader struct {
	buf []byte
	off int
}

func newReader(b []byte) *reader {
	return &reader{buf: b}
}

func (r *reader) remaining() int {
	return len(r.buf) - r.off
}

func (r *reader) take(n int, field string) ([]byte, error) {
	if n < 0 || n > r.remaining() {
		return nil, apperr.Newf(apperr.Parse, "Failed to read %s: unexpected end of packet", field)
	}
	b := r.buf[r.off : r.off+n]
	r.off += n

	return b, nil
}

func (r *reader) u8(field string) (uint8, error) {
	b, err := r.take(1, field)
	if err != nil {
		return 0, err
	}

	return b[0], nil
}

func (r *reader) i8(field string) (int8, error) {
	v, err := r.u8(field)
	return int8(v), err
}

func (r *reader) u16(field string) (uint16, error) {
	b, err := r.take(2, field)
	if err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint16(b), nil
}

func (r *reader) u32(field string) (uint32, error) {
	b, err := r.take(4, field)
	if err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint32(b), nil
}

func (r *reader) i32(field string) (int32, error) {
	v, err := r.u32(field)
	return int32(v), err
}

// string32 reads a u32 length prefixed string. The declared length is checked
// against maxLen before anything is sliced.
func (r *reader) string32(field string, maxLen uint32) ([]byte, error) {
	n, err := r.u32(field + " length")
	if err != nil {
		return nil, err
	}
	if n > maxLen {
		return nil, apperr.Newf(apperr.InvalidInput, "%s length exceeds maximum", capitalize(field))
	}

	return r.take(int(n), field)
}

// string8 reads a u8 length prefixed string.
func (r *reader) string8(field string) ([]byte, error) {
	n, err := r.u8(field + " length")
	if err != nil {
		return nil, err
	}

	return r.take(int(n), field)
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}

	return string(s[0]-'a'+'A') + s[1:]
}
