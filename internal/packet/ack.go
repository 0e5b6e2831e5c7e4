package packet

import (
	"fmt"

	"github.com/life-stream-dev/router-telemetry-broker/internal/mqtt"
)

// PubAck, PubRec, PubRel and PubComp only carry a packet identifier.
type PubAck struct{ PacketID uint16 }
type PubRec struct{ PacketID uint16 }
type PubRel struct{ PacketID uint16 }
type PubComp struct{ PacketID uint16 }

func (*PubAck) Type() mqtt.PacketType  { return mqtt.PUBACK }
func (*PubRec) Type() mqtt.PacketType  { return mqtt.PUBREC }
func (*PubRel) Type() mqtt.PacketType  { return mqtt.PUBREL }
func (*PubComp) Type() mqtt.PacketType { return mqtt.PUBCOMP }

func (p *PubAck) Encode() []byte  { return NewAckPacket(mqtt.PUBACK, p.PacketID) }
func (p *PubRec) Encode() []byte  { return NewAckPacket(mqtt.PUBREC, p.PacketID) }
func (p *PubRel) Encode() []byte  { return NewAckPacket(mqtt.PUBREL, p.PacketID) }
func (p *PubComp) Encode() []byte { return NewAckPacket(mqtt.PUBCOMP, p.PacketID) }

// NewAckPacket encodes an identifier-only acknowledgment. PUBREL carries
// the mandatory 0010 flags.
func NewAckPacket(packetType mqtt.PacketType, packetID uint16) []byte {
	var flags byte
	if packetType == mqtt.PUBREL {
		flags = 0x02
	}
	return mqtt.EncodePacket(packetType, flags, mqtt.UInt16ToByte(packetID))
}

func parseAckPacket(packet *mqtt.Packet) (Packet, error) {
	if packet.Header.RemainingLength != 2 {
		return nil, fmt.Errorf("%w: %s remaining length %d, expected 2", ErrMalformedPacket, packet.Header.Type, packet.Header.RemainingLength)
	}
	id, err := readPacketUint16(packet.Payload)
	if err != nil {
		return nil, err
	}
	switch packet.Header.Type {
	case mqtt.PUBACK:
		return &PubAck{PacketID: id}, nil
	case mqtt.PUBREC:
		return &PubRec{PacketID: id}, nil
	case mqtt.PUBREL:
		return &PubRel{PacketID: id}, nil
	default:
		return &PubComp{PacketID: id}, nil
	}
}
