package ipc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPayloadWriterReaderRoundTrip(t *testing.T) {
	var pub [32]byte
	copy(pub[:], []byte("0123456789abcdef0123456789abcde"))

	payload := NewPayloadWriter().
		PutString("example.local").
		Put32(pub).
		PutUint32(7).
		PutUint64(1 << 40).
		PutByte(1).
		PutBytes([]byte{0xDE, 0xAD, 0xBE, 0xEF}).
		Bytes()

	r := NewPayloadReader(payload)

	sni, err := r.GetString()
	require.NoError(t, err)
	require.Equal(t, "example.local", sni)

	gotPub, err := r.Get32()
	require.NoError(t, err)
	require.Equal(t, pub, gotPub)

	n32, err := r.GetUint32()
	require.NoError(t, err)
	require.Equal(t, uint32(7), n32)

	n64, err := r.GetUint64()
	require.NoError(t, err)
	require.Equal(t, uint64(1<<40), n64)

	b, err := r.GetByte()
	require.NoError(t, err)
	require.Equal(t, byte(1), b)

	raw, err := r.GetBytes()
	require.NoError(t, err)
	require.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, raw)
}

func TestPayloadReaderRejectsTruncatedField(t *testing.T) {
	payload := NewPayloadWriter().PutUint32(5).Bytes()[:2]
	r := NewPayloadReader(payload)

	_, err := r.GetUint32()
	require.Error(t, err)
}
