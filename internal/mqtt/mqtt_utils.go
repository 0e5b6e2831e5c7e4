package mqtt

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxRemainingLength is the largest value four length bytes can encode.
const MaxRemainingLength = 268435455

var (
	ErrRemainingLength = errors.New("the remaining length exceeds the 4 byte limit")
	ErrInvalidFlags    = errors.New("invalid fixed header flags")
	ErrUnknownType     = errors.New("unknown packet type")
)

func UInt16ToByte(number uint16) []byte {
	result := make([]byte, 2)
	binary.BigEndian.PutUint16(result, number)
	return result
}

func ByteToUInt16(bytes []byte) uint16 {
	if len(bytes) == 0 {
		return 0
	}
	if len(bytes) == 1 {
		return uint16(bytes[0])
	}
	return binary.BigEndian.Uint16(bytes)
}

func ReadByte(r io.Reader) (byte, error) {
	b := make([]byte, 1)
	if _, err := io.ReadFull(r, b); err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadPacket reads one complete control packet from r.
func ReadPacket(r io.Reader) (*Packet, error) {
	typeAndFlags, err := ReadByte(r)
	if err != nil {
		return nil, err
	}

	remaining, err := DecodeRemainingLength(r)
	if err != nil {
		return nil, err
	}

	payload := make([]byte, remaining)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}

	header := &FixedHeader{
		Type:            PacketType(typeAndFlags >> 4),
		Flags:           typeAndFlags & 0x0F,
		RemainingLength: remaining,
	}

	if _, ok := PacketTypeMap[header.Type]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, header.Type)
	}

	if !ValidateFlags(header.Type, header.Flags) {
		return nil, fmt.Errorf("%w: flags %04b of %s packet", ErrInvalidFlags, header.Flags, header.Type.String())
	}

	return &Packet{
		Header: header,
		Payload: &Payload{
			Context:    payload,
			ContextLen: len(payload),
			CurrentPtr: 0,
		},
	}, nil
}

// EncodePacket builds a full packet from type, flags and body.
func EncodePacket(packetType PacketType, flags byte, body []byte) []byte {
	packet := make([]byte, 0, 5+len(body))
	packet = append(packet, byte(packetType)<<4|flags&0x0F)
	packet = append(packet, EncodeRemainingLength(len(body))...)
	packet = append(packet, body...)
	return packet
}

func DecodeRemainingLength(r io.Reader) (int, error) {
	multiplier := 1
	value := 0
	for i := 0; i < 4; i++ {
		encodedByte, err := ReadByte(r)
		if err != nil {
			return 0, err
		}
		value += int(encodedByte&127) * multiplier
		multiplier *= 128
		if (encodedByte & 128) == 0 {
			return value, nil
		}
	}
	return 0, ErrRemainingLength
}

func EncodeRemainingLength(x int) []byte {
	if x == 0 {
		return []byte{0x00}
	}
	var buf [4]byte
	i := 0
	for x > 0 && i < 4 {
		buf[i] = byte(x % 128)
		if x /= 128; x > 0 {
			buf[i] |= 128
		}
		i++
	}
	return buf[:i]
}

func ValidateFlags(pt PacketType, flags byte) bool {
	allowed := allowedFlags[pt]
	return (flags & ^allowed) == 0
}

func (p *Payload) CheckRemainingLength() bool {
	return p.CurrentPtr < p.ContextLen
}

// Remaining returns the number of unread bytes.
func (p *Payload) Remaining() int {
	return p.ContextLen - p.CurrentPtr
}
