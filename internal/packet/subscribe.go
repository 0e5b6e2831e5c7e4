package packet

import (
	"fmt"

	"github.com/life-stream-dev/router-telemetry-broker/internal/mqtt"
)

type SubscribeState byte

const (
	SuccessQos0 SubscribeState = iota
	SuccessQos1
	SuccessQos2
	Failure SubscribeState = 0x80
)

type TopicFilter struct {
	Filter string
	QoS    byte
}

type Subscribe struct {
	PacketID uint16
	Topics   []TopicFilter
}

func (*Subscribe) Type() mqtt.PacketType { return mqtt.SUBSCRIBE }

func (p *Subscribe) Encode() []byte {
	body := mqtt.UInt16ToByte(p.PacketID)
	for _, topic := range p.Topics {
		body = appendField(body, []byte(topic.Filter))
		body = append(body, topic.QoS)
	}
	return mqtt.EncodePacket(mqtt.SUBSCRIBE, 0x02, body)
}

// Granted echoes the requested QoS of every filter.
func (p *Subscribe) Granted() []SubscribeState {
	granted := make([]SubscribeState, len(p.Topics))
	for i, topic := range p.Topics {
		if topic.QoS > 2 {
			granted[i] = Failure
			continue
		}
		granted[i] = SubscribeState(topic.QoS)
	}
	return granted
}

func NewSubAckPacket(packetID uint16, granted []SubscribeState) []byte {
	body := mqtt.UInt16ToByte(packetID)
	for _, state := range granted {
		body = append(body, byte(state))
	}
	return mqtt.EncodePacket(mqtt.SUBACK, 0, body)
}

func ParseSubscribePacket(packet *mqtt.Packet) (*Subscribe, error) {
	result := &Subscribe{}

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
		qos, err := readPacketByte(packet.Payload)
		if err != nil {
			return result, fmt.Errorf("read qos level: %w", err)
		}
		result.Topics = append(result.Topics, TopicFilter{
			Filter: string(topicFilter.Payload),
			QoS:    qos & 0x03,
		})
	}

	if len(result.Topics) == 0 {
		return result, fmt.Errorf("%w: SUBSCRIBE without topic filters", ErrProtocolViolation)
	}

	return result, nil
}
