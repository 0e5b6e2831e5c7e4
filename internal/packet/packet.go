// Package packet decodes MQTT control packets into typed variants and
// encodes the packets the broker sends back.
package packet

import (
	"fmt"

	"github.com/life-stream-dev/router-telemetry-broker/internal/mqtt"
)

// Packet is one decoded control packet. The concrete type is one of
// *Connect, *Publish, *PubAck, *PubRec, *PubRel, *PubComp, *Subscribe,
// *Unsubscribe, *PingReq or *Disconnect.
type Packet interface {
	Type() mqtt.PacketType
	Encode() []byte
}

// Decode converts a raw packet into its typed variant. CONNACK, SUBACK,
// UNSUBACK and PINGRESP are server-to-client only and are rejected.
func Decode(raw *mqtt.Packet) (Packet, error) {
	switch raw.Header.Type {
	case mqtt.CONNECT:
		return ParseConnectPacket(raw)
	case mqtt.PUBLISH:
		return ParsePublishPacket(raw)
	case mqtt.PUBACK, mqtt.PUBREC, mqtt.PUBREL, mqtt.PUBCOMP:
		return parseAckPacket(raw)
	case mqtt.SUBSCRIBE:
		return ParseSubscribePacket(raw)
	case mqtt.UNSUBSCRIBE:
		return ParseUnSubscribePacket(raw)
	case mqtt.PINGREQ:
		return &PingReq{}, nil
	case mqtt.DISCONNECT:
		return &Disconnect{}, nil
	default:
		return nil, fmt.Errorf("%w: %s is not sent by clients", ErrProtocolViolation, raw.Header.Type)
	}
}

type PingReq struct{}

func (*PingReq) Type() mqtt.PacketType { return mqtt.PINGREQ }

func (*PingReq) Encode() []byte { return []byte{0xC0, 0x00} }

type Disconnect struct{}

func (*Disconnect) Type() mqtt.PacketType { return mqtt.DISCONNECT }

func (*Disconnect) Encode() []byte { return []byte{0xE0, 0x00} }

func NewPingRespPacket() []byte {
	return []byte{0xD0, 0x00}
}
