// Package ipc implements the keystore's wire protocol: a length-prefixed,
// correlation-ID-tagged frame format spoken full duplex over a Unix domain
// stream socket, plus the per-connection dispatcher that multiplexes
// client-initiated requests and server-initiated events on one connection.
package ipc

import (
	"encoding/binary"
	"io"

	"github.com/Connoropolous/lair-keystore/lairerr"
)

// MaxFrameLength bounds a single frame's payload to guard against a
// malicious or corrupt length prefix demanding an unbounded read.
const MaxFrameLength = 16 << 20 // 16 MiB

// headerSize is the length-prefix (8) + correlation ID (8) + kind tag (4)
// preceding every frame's payload.
const headerSize = 8 + 8 + 4

// Frame is one length-prefixed message: a correlation ID binding it to a
// request/reply pair or an event/ack pair, a kind tag identifying its
// payload's shape, and the payload itself.
type Frame struct {
	CorrelationID uint64
	Kind          Kind
	Payload       []byte
}

// WriteFrame serializes f to w: 8-byte little-endian length (excluding
// itself), 8-byte correlation ID, 4-byte kind tag, then the payload.
func WriteFrame(w io.Writer, f Frame) error {
	length := uint64(8 + 4 + len(f.Payload))

	header := make([]byte, headerSize)
	binary.LittleEndian.PutUint64(header[0:8], length)
	binary.LittleEndian.PutUint64(header[8:16], f.CorrelationID)
	binary.LittleEndian.PutUint32(header[16:20], uint32(f.Kind))

	if _, err := w.Write(header); err != nil {
		return lairerr.Wrap(lairerr.ProtocolViolation, "writing frame header", err)
	}
	if len(f.Payload) > 0 {
		if _, err := w.Write(f.Payload); err != nil {
			return lairerr.Wrap(lairerr.ProtocolViolation, "writing frame payload", err)
		}
	}
	return nil
}

// ReadFrame reads one frame from r, or returns io.EOF unwrapped when the
// peer closed the connection cleanly between frames.
func ReadFrame(r io.Reader) (Frame, error) {
	var lengthBuf [8]byte
	if _, err := io.ReadFull(r, lengthBuf[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return Frame{}, lairerr.Wrap(lairerr.ProtocolViolation, "truncated frame length prefix", err)
		}
		return Frame{}, err
	}
	length := binary.LittleEndian.Uint64(lengthBuf[:])
	if length < 12 || length > MaxFrameLength {
		return Frame{}, lairerr.New(lairerr.ProtocolViolation, "frame length out of bounds")
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return Frame{}, lairerr.Wrap(lairerr.ProtocolViolation, "truncated frame body", err)
	}

	return Frame{
		CorrelationID: binary.LittleEndian.Uint64(body[0:8]),
		Kind:          Kind(binary.LittleEndian.Uint32(body[8:12])),
		Payload:       body[12:],
	}, nil
}
