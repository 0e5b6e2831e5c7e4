package mqtt

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemainingLength(t *testing.T) {
	tests := []struct {
		input  int
		expect []byte
	}{
		{0, []byte{0x00}},
		{64, []byte{0x40}},
		{321, []byte{0xC1, 0x02}},
		{MaxRemainingLength, []byte{0xFF, 0xFF, 0xFF, 0x7F}},
	}

	for _, tt := range tests {
		encoded := EncodeRemainingLength(tt.input)
		assert.Equal(t, tt.expect, encoded, "input=%d", tt.input)

		decoded, err := DecodeRemainingLength(bytes.NewReader(encoded))
		require.NoError(t, err)
		assert.Equal(t, tt.input, decoded)
	}
}

func TestDecodeRemainingLengthTooLong(t *testing.T) {
	_, err := DecodeRemainingLength(bytes.NewReader([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0x01}))
	assert.ErrorIs(t, err, ErrRemainingLength)
}

func TestByteToUInt16(t *testing.T) {
	tests := []struct {
		input  []byte
		expect uint16
	}{
		{[]byte{0x00, 0x00}, 0},
		{[]byte{0x01, 0x00}, 256},
		{[]byte{0xAF, 0x89}, 44937},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expect, ByteToUInt16(tt.input))
		assert.Equal(t, tt.input, UInt16ToByte(tt.expect))
	}
}

func TestReadPacket(t *testing.T) {
	raw := EncodePacket(PUBREL, 0x02, []byte{0x00, 0x2A})
	packet, err := ReadPacket(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, PUBREL, packet.Header.Type)
	assert.Equal(t, byte(0x02), packet.Header.Flags)
	assert.Equal(t, 2, packet.Header.RemainingLength)
	assert.Equal(t, []byte{0x00, 0x2A}, packet.Payload.Context)
}

func TestReadPacketRejectsBadFlags(t *testing.T) {
	raw := EncodePacket(SUBSCRIBE, 0x01, []byte{0x00, 0x2A})
	_, err := ReadPacket(bytes.NewReader(raw))
	assert.ErrorIs(t, err, ErrInvalidFlags)

	_, err = ReadPacket(bytes.NewReader([]byte{0x00, 0x00}))
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestReadPacketTruncated(t *testing.T) {
	_, err := ReadPacket(bytes.NewReader([]byte{0x30, 0x05, 0x00}))
	assert.Error(t, err)
}
