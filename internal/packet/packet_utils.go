package packet

import (
	"fmt"

	"github.com/life-stream-dev/router-telemetry-broker/internal/mqtt"
)

type FieldPayload struct {
	PayloadLength int
	Payload       []byte
}

func readPacketByte(payload *mqtt.Payload) (byte, error) {
	startByte := payload.CurrentPtr
	if startByte >= payload.ContextLen {
		return 0, fmt.Errorf("%w: unexpected end of packet", ErrMalformedPacket)
	}
	payload.CurrentPtr++
	return payload.Context[startByte], nil
}

func readPacketBytes(payload *mqtt.Payload, length int) ([]byte, error) {
	if length < 0 {
		return nil, fmt.Errorf("%w: negative read length %d", ErrMalformedPacket, length)
	}
	if length == 0 {
		return []byte{}, nil
	}
	startByte := payload.CurrentPtr
	end := startByte + length
	if end > payload.ContextLen {
		return nil, fmt.Errorf("%w: need %d bytes, %d left", ErrMalformedPacket, length, payload.ContextLen-startByte)
	}
	data := payload.Context[startByte:end]
	payload.CurrentPtr = end
	return data, nil
}

func readPacketUint16(payload *mqtt.Payload) (uint16, error) {
	data, err := readPacketBytes(payload, 2)
	if err != nil {
		return 0, err
	}
	return mqtt.ByteToUInt16(data), nil
}

// readPacketPayload reads a two-byte length prefixed field.
func readPacketPayload(payload *mqtt.Payload) (FieldPayload, error) {
	startByte := payload.CurrentPtr
	contextLen := payload.ContextLen
	if startByte+1 >= contextLen {
		return FieldPayload{}, fmt.Errorf("%w: insufficient bytes for length", ErrMalformedPacket)
	}
	length := int(mqtt.ByteToUInt16(payload.Context[startByte : startByte+2]))
	end := startByte + 2 + length
	if end > contextLen {
		return FieldPayload{}, fmt.Errorf("%w: field length %d exceeds buffer (len=%d)", ErrMalformedPacket, length, contextLen)
	}
	payload.CurrentPtr = end
	return FieldPayload{
		PayloadLength: length,
		Payload:       payload.Context[startByte+2 : end],
	}, nil
}

func appendField(buf []byte, field []byte) []byte {
	buf = append(buf, mqtt.UInt16ToByte(uint16(len(field)))...)
	return append(buf, field...)
}
