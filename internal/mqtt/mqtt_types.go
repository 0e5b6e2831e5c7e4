// Package mqtt holds the MQTT 3.1.1 control packet types and the fixed
// header codec.
package mqtt

// PacketType is the control packet type from the high nibble of the first byte.
type PacketType byte

const (
	CONNECT     PacketType = iota + 1 // client requests a connection
	CONNACK                           // connect acknowledgment
	PUBLISH                           // publish message
	PUBACK                            // QoS 1 acknowledgment
	PUBREC                            // QoS 2 receipt, step one
	PUBREL                            // QoS 2 release, step two
	PUBCOMP                           // QoS 2 completion, step three
	SUBSCRIBE                         // subscribe request
	SUBACK                            // subscribe acknowledgment
	UNSUBSCRIBE                       // unsubscribe request
	UNSUBACK                          // unsubscribe acknowledgment
	PINGREQ                           // ping request
	PINGRESP                          // ping response
	DISCONNECT                        // client is disconnecting
)

var PacketTypeMap = map[PacketType]string{
	CONNECT:     "CONNECT",
	CONNACK:     "CONNACK",
	PUBLISH:     "PUBLISH",
	PUBACK:      "PUBACK",
	PUBREC:      "PUBREC",
	PUBREL:      "PUBREL",
	PUBCOMP:     "PUBCOMP",
	SUBSCRIBE:   "SUBSCRIBE",
	SUBACK:      "SUBACK",
	UNSUBSCRIBE: "UNSUBSCRIBE",
	UNSUBACK:    "UNSUBACK",
	PINGREQ:     "PINGREQ",
	PINGRESP:    "PINGRESP",
	DISCONNECT:  "DISCONNECT",
}

func (packetType PacketType) String() string {
	if s, ok := PacketTypeMap[packetType]; ok {
		return s
	}
	return "UNKNOWN"
}

// allowedFlags lists the fixed header flag bits each packet type may carry.
var allowedFlags = map[PacketType]byte{
	CONNECT:     0x00, // 0000
	CONNACK:     0x00, // 0000
	PUBLISH:     0x0F, // 1111, DUP/QoS/RETAIN
	PUBACK:      0x00, // 0000
	PUBREC:      0x00, // 0000
	PUBREL:      0x02, // 0010
	PUBCOMP:     0x00, // 0000
	SUBSCRIBE:   0x02, // 0010
	SUBACK:      0x00, // 0000
	UNSUBSCRIBE: 0x02, // 0010
	UNSUBACK:    0x00, // 0000
	PINGREQ:     0x00, // 0000
	PINGRESP:    0x00, // 0000
	DISCONNECT:  0x00, // 0000
}

type FixedHeader struct {
	Type            PacketType
	Flags           byte
	RemainingLength int
}

// Payload is the variable header plus payload with a read cursor.
type Payload struct {
	Context    []byte
	ContextLen int
	CurrentPtr int
}

type Packet struct {
	Header  *FixedHeader
	Payload *Payload
}
