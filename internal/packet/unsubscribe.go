package packet

import (
	"fmt"

	"github.com/life-stream-dev/router-telemetry-broker/internal/mqtt"
)

type Unsubscribe struct {
	PacketID uint16
	Topics   []string
}

func (*Unsubscribe) Type() mqtt.PacketType { return mqtt.UNSUBSCRIBE }

func (p *Unsubscribe) Encode() []byte {
	body := mqtt.UInt16ToByte(p.PacketID)
	for _, topic := range p.Topics {
		body = appendField(body, []byte(topic))
	}
	return mqtt.EncodePacket(mqtt.UNSUBSCRIBE, 0x02, body)
}

func NewUnSubAckPacket(packetID uint16) []byte {
	return mqtt.EncodePacket(mqtt.UNSUBACK, 0, mqtt.UInt16ToByte(packetID))
}

func ParseUnSubscribePacket(packet *mqtt.Packet) (*Unsubscribe, error) {
	result := &Unsubscribe{}

	packetID, err := readPacketUint16(packet.Payload)
	if err != nil {
		return result, fmt.Errorf("read packet ID: %w", err)
	}
	result.PacketID = packetID

	for packet.Payload.CheckRemainingLength() {
		topicFilter, err := readPacketPayload(packet.Payload)
		if err != nil {
			return result, fmt.Errorf("read topic filter: %w", err)
		}
		result.Topics = append(result.Topics, string(topicFilter.Payload))
	}

	return result, nil
}
