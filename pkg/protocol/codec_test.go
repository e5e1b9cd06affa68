package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendHelpers(t *testing.T) {
	var b []byte
	b = AppendUint8(b, 0xAB)
	b = AppendUint32(b, 0x01020304)
	b = AppendUint64(b, 0x0102030405060708)

	assert.Equal(t, []byte{
		0xAB,
		0x01, 0x02, 0x03, 0x04,
		0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08,
	}, b)
}

func TestReaderReads(t *testing.T) {
	r := NewReader([]byte{
		0xAB,
		0x01, 0x02, 0x03, 0x04,
		0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08,
		0x10, 0x20,
	})

	v8, err := r.Uint8()
	require.NoError(t, err)
	assert.Equal(t, uint8(0xAB), v8)

	v32, err := r.Uint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x01020304), v32)

	v64, err := r.Uint64()
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0102030405060708), v64)

	rest, err := r.Bytes(2)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x10, 0x20}, rest)

	assert.Equal(t, 0, r.Remaining())
	assert.Equal(t, 15, r.Offset())
}

func TestReaderShortBuffer(t *testing.T) {
	r := NewReader([]byte{0x01, 0x02})

	_, err := r.Uint32()
	assert.ErrorIs(t, err, ErrTruncated)

	// A failed read must not consume anything.
	assert.Equal(t, 2, r.Remaining())

	v8, err := r.Uint8()
	require.NoError(t, err)
	assert.Equal(t, uint8(0x01), v8)

	_, err = r.Uint64()
	assert.ErrorIs(t, err, ErrTruncated)
	_, err = r.Bytes(2)
	assert.ErrorIs(t, err, ErrTruncated)
}
