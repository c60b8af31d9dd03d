package ipc

import (
	"encoding/binary"

	"github.com/Connoropolous/lair-keystore/lairerr"
)

// PayloadWriter builds a frame payload: a self-describing binary encoding
// of length-prefixed byte strings and little-endian integers.
type PayloadWriter struct {
	buf []byte
}

// NewPayloadWriter returns an empty PayloadWriter.
func NewPayloadWriter() *PayloadWriter { return &PayloadWriter{} }

// Bytes returns the accumulated payload.
func (w *PayloadWriter) Bytes() []byte { return w.buf }

// PutBytes appends a length-prefixed byte string.
func (w *PayloadWriter) PutBytes(b []byte) *PayloadWriter {
	var length [4]byte
	binary.LittleEndian.PutUint32(length[:], uint32(len(b)))
	w.buf = append(w.buf, length[:]...)
	w.buf = append(w.buf, b...)
	return w
}

// PutString appends a length-prefixed UTF-8 string.
func (w *PayloadWriter) PutString(s string) *PayloadWriter {
	return w.PutBytes([]byte(s))
}

// PutUint32 appends a little-endian uint32.
func (w *PayloadWriter) PutUint32(v uint32) *PayloadWriter {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
	return w
}

// PutUint64 appends a little-endian uint64.
func (w *PayloadWriter) PutUint64(v uint64) *PayloadWriter {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
	return w
}

// PutByte appends a single byte (used for small enums/flags).
func (w *PayloadWriter) PutByte(b byte) *PayloadWriter {
	w.buf = append(w.buf, b)
	return w
}

// PayloadReader consumes a payload built by PayloadWriter, in the same
// field order it was written.
type PayloadReader struct {
	buf []byte
	pos int
}

// NewPayloadReader wraps payload for sequential field reads.
func NewPayloadReader(payload []byte) *PayloadReader {
	return &PayloadReader{buf: payload}
}

func (r *PayloadReader) remaining() []byte { return r.buf[r.pos:] }

// GetBytes reads a length-prefixed byte string.
func (r *PayloadReader) GetBytes() ([]byte, error) {
	rest := r.remaining()
	if len(rest) < 4 {
		return nil, lairerr.New(lairerr.BadInput, "truncated payload: missing length prefix")
	}
	n := binary.LittleEndian.Uint32(rest[:4])
	rest = rest[4:]
	if uint64(len(rest)) < uint64(n) {
		return nil, lairerr.New(lairerr.BadInput, "truncated payload: byte string shorter than declared length")
	}
	r.pos += 4 + int(n)
	return rest[:n], nil
}

// GetString reads a length-prefixed UTF-8 string.
func (r *PayloadReader) GetString() (string, error) {
	b, err := r.GetBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// GetUint32 reads a little-endian uint32.
func (r *PayloadReader) GetUint32() (uint32, error) {
	rest := r.remaining()
	if len(rest) < 4 {
		return 0, lairerr.New(lairerr.BadInput, "truncated payload: missing uint32")
	}
	r.pos += 4
	return binary.LittleEndian.Uint32(rest[:4]), nil
}

// GetUint64 reads a little-endian uint64.
func (r *PayloadReader) GetUint64() (uint64, error) {
	rest := r.remaining()
	if len(rest) < 8 {
		return 0, lairerr.New(lairerr.BadInput, "truncated payload: missing uint64")
	}
	r.pos += 8
	return binary.LittleEndian.Uint64(rest[:8]), nil
}

// GetByte reads a single byte.
func (r *PayloadReader) GetByte() (byte, error) {
	rest := r.remaining()
	if len(rest) < 1 {
		return 0, lairerr.New(lairerr.BadInput, "truncated payload: missing byte")
	}
	r.pos++
	return rest[0], nil
}

// Get32 reads exactly 32 bytes, the fixed width of every public key and
// digest this protocol carries.
func (r *PayloadReader) Get32() ([32]byte, error) {
	var out [32]byte
	rest := r.remaining()
	if len(rest) < 32 {
		return out, lairerr.New(lairerr.BadInput, "truncated payload: missing 32-byte field")
	}
	copy(out[:], rest[:32])
	r.pos += 32
	return out, nil
}

// Put32 appends exactly 32 bytes.
func (w *PayloadWriter) Put32(b [32]byte) *PayloadWriter {
	w.buf = append(w.buf, b[:]...)
	return w
}
