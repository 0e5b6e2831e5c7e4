package packet

import (
	"fmt"

	"github.com/life-stream-dev/router-telemetry-broker/internal/mqtt"
)

type ConnectRespType byte

const (
	Accepted ConnectRespType = iota
	UnacceptableProtocol
	IdentifierRejected
	ServerUnavailable
	AuthenticationFailed // bad user name or password
	NotAuthorized
)

// ConnectPacketFlag holds the CONNECT flag byte.
type ConnectPacketFlag struct {
	UsernameFlag    bool
	PasswordFlag    bool
	RemainFlag      bool
	QoSLevel        byte
	WillMessageFlag bool
	CleanSession    bool
}

func (f ConnectPacketFlag) encode() byte {
	var b byte
	if f.UsernameFlag {
		b |= 0x80
	}
	if f.PasswordFlag {
		b |= 0x40
	}
	if f.RemainFlag {
		b |= 0x20
	}
	b |= (f.QoSLevel & 0x03) << 3
	if f.WillMessageFlag {
		b |= 0x04
	}
	if f.CleanSession {
		b |= 0x02
	}
	return b
}

type Connect struct {
	ProtocolName  string
	ProtocolLevel byte
	ConnectFlag   ConnectPacketFlag
	KeepAlive     uint16
	ClientID      string
	WillTopic     string
	WillMessage   []byte
	Username      string
	Password      string
}

func (*Connect) Type() mqtt.PacketType { return mqtt.CONNECT }

func (p *Connect) Encode() []byte {
	name := p.ProtocolName
	if name == "" {
		name = "MQTT"
	}
	level := p.ProtocolLevel
	if level == 0 {
		level = 0x04
	}
	flags := p.ConnectFlag
	flags.UsernameFlag = p.Username != ""
	flags.PasswordFlag = p.Password != ""

	body := appendField(nil, []byte(name))
	body = append(body, level, flags.encode())
	body = append(body, mqtt.UInt16ToByte(p.KeepAlive)...)
	body = appendField(body, []byte(p.ClientID))
	if flags.WillMessageFlag {
		body = appendField(body, []byte(p.WillTopic))
		body = appendField(body, p.WillMessage)
	}
	if flags.UsernameFlag {
		body = appendField(body, []byte(p.Username))
	}
	if flags.PasswordFlag {
		body = appendField(body, []byte(p.Password))
	}
	return mqtt.EncodePacket(mqtt.CONNECT, 0, body)
}

func NewConnectAckPacket(sessionPresent bool, returnCode ConnectRespType) []byte {
	if sessionPresent {
		return []byte{0x20, 0x02, 0x01, byte(returnCode)}
	}
	return []byte{0x20, 0x02, 0x00, byte(returnCode)}
}

// ParseConnectPacket decodes the CONNECT variable header and payload. On
// an unsupported protocol level the returned error wraps
// ErrUnsupportedProtocol and the caller should answer with
// UnacceptableProtocol.
func ParseConnectPacket(packet *mqtt.Packet) (*Connect, error) {
	payload := packet.Payload
	result := &Connect{}

	protocolString, err := readPacketPayload(payload)
	if err != nil {
		return result, fmt.Errorf("read protocol name: %w", err)
	}
	result.ProtocolName = string(protocolString.Payload)

	protocolVersion, err := readPacketByte(payload)
	if err != nil {
		return result, fmt.Errorf("read protocol version: %w", err)
	}
	result.ProtocolLevel = protocolVersion

	switch {
	case result.ProtocolName == "MQTT" && protocolVersion == 0x04:
	case result.ProtocolName == "MQIsdp" && protocolVersion == 0x03:
	default:
		return result, fmt.Errorf("%w: %s level %d", ErrUnsupportedProtocol, result.ProtocolName, protocolVersion)
	}

	connectFlag, err := readPacketByte(payload)
	if err != nil {
		return result, fmt.Errorf("read connect flags: %w", err)
	}
	if connectFlag&0x01 != 0 {
		return result, fmt.Errorf("%w: reserved connect flag set", ErrProtocolViolation)
	}

	result.ConnectFlag = ConnectPacketFlag{
		UsernameFlag:    (connectFlag&0x80)>>7 == 1,
		PasswordFlag:    (connectFlag&0x40)>>6 == 1,
		RemainFlag:      (connectFlag&0x20)>>5 == 1,
		QoSLevel:        (connectFlag & 0x18) >> 3,
		WillMessageFlag: (connectFlag&0x04)>>2 == 1,
		CleanSession:    (connectFlag&0x02)>>1 == 1,
	}

	if !result.ConnectFlag.WillMessageFlag && (result.ConnectFlag.RemainFlag || result.ConnectFlag.QoSLevel != 0) {
		return result, fmt.Errorf("%w: will retain and will QoS require the will flag", ErrProtocolViolation)
	}

	keepAlive, err := readPacketUint16(payload)
	if err != nil {
		return result, fmt.Errorf("read keep alive: %w", err)
	}
	result.KeepAlive = keepAlive

	clientID, err := readPacketPayload(payload)
	if err != nil {
		return result, fmt.Errorf("read client ID: %w", err)
	}
	result.ClientID = string(clientID.Payload)

	if result.ConnectFlag.WillMessageFlag {
		willTopic, err := readPacketPayload(payload)
		if err != nil {
			return result, fmt.Errorf("read will topic: %w", err)
		}
		result.WillTopic = string(willTopic.Payload)

		willContent, err := readPacketPayload(payload)
		if err != nil {
			return result, fmt.Errorf("read will content: %w", err)
		}
		result.WillMessage = willContent.Payload
	}

	if result.ConnectFlag.UsernameFlag {
		username, err := readPacketPayload(payload)
		if err != nil {
			return result, fmt.Errorf("read username: %w", err)
		}
		result.Username = string(username.Payload)
	}

	if result.ConnectFlag.PasswordFlag {
		password, err := readPacketPayload(payload)
		if err != nil {
			return result, fmt.Errorf("read password: %w", err)
		}
		result.Password = string(password.Payload)
	}

	return result, nil
}
