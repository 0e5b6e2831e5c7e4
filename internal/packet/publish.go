package packet

import (
	"fmt"

	"github.com/life-stream-dev/router-telemetry-broker/internal/mqtt"
)

type Publish struct {
	Dup    bool
	QoS    byte
	Retain bool
	Topic  string
	// PacketID is only on the wire for QoS > 0.
	PacketID uint16
	Payload  []byte
}

func (*Publish) Type() mqtt.PacketType { return mqtt.PUBLISH }

func (p *Publish) Encode() []byte {
	var flags byte
	if p.Dup {
		flags |= 0x08
	}
	flags |= (p.QoS & 0x03) << 1
	if p.Retain {
		flags |= 0x01
	}

	body := make([]byte, 0, 4+len(p.Topic)+len(p.Payload))
	body = appendField(body, []byte(p.Topic))
	if p.QoS > 0 {
		body = append(body, mqtt.UInt16ToByte(p.PacketID)...)
	}
	body = append(body, p.Payload...)
	return mqtt.EncodePacket(mqtt.PUBLISH, flags, body)
}

func ParsePublishPacket(packet *mqtt.Packet) (*Publish, error) {
	result := &Publish{
		Dup:    (packet.Header.Flags&0x08)>>3 == 1,
		QoS:    (packet.Header.Flags & 0x06) >> 1,
		Retain: packet.Header.Flags&0x01 == 1,
	}

	if result.QoS == 0 && result.Dup {
		return result, fmt.Errorf("%w: DUP flag set on a QoS 0 publish", ErrProtocolViolation)
	}

	if result.QoS == 3 {
		return result, fmt.Errorf("%w: QoS level 3", ErrProtocolViolation)
	}

	topicName, err := readPacketPayload(packet.Payload)
	if err != nil {
		return result, fmt.Errorf("read topic name: %w", err)
	}
	result.Topic = string(topicName.Payload)

	if result.QoS > 0 {
		packetID, err := readPacketUint16(packet.Payload)
		if err != nil {
			return result, fmt.Errorf("read packet ID: %w", err)
		}
		result.PacketID = packetID
	}

	payload, err := readPacketBytes(packet.Payload, packet.Payload.Remaining())
	if err != nil {
		return result, fmt.Errorf("read payload: %w", err)
	}
	result.Payload = payload

	return result, nil
}
