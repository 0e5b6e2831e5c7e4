package packet

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/life-stream-dev/router-telemetry-broker/internal/mqtt"
)

func decode(t *testing.T, raw []byte) Packet {
	t.Helper()
	packet, err := mqtt.ReadPacket(bytes.NewReader(raw))
	require.NoError(t, err)
	decoded, err := Decode(packet)
	require.NoError(t, err)
	return decoded
}

func TestDecodeRoundTrip(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		packet Packet
	}{
		{"connect", &Connect{
			ProtocolName:  "MQTT",
			ProtocolLevel: 4,
			ConnectFlag:   ConnectPacketFlag{CleanSession: true, UsernameFlag: true, PasswordFlag: true},
			KeepAlive:     60,
			ClientID:      "RUT123",
			Username:      "user",
			Password:      "pass1",
		}},
		{"publish qos0", &Publish{Topic: "router/get", Payload: []byte("temperature")}},
		{"publish qos2", &Publish{QoS: 2, Topic: "router/123456780/temperature", PacketID: 7, Payload: []byte("366")}},
		{"puback", &PubAck{PacketID: 1}},
		{"pubrec", &PubRec{PacketID: 2}},
		{"pubrel", &PubRel{PacketID: 3}},
		{"pubcomp", &PubComp{PacketID: 4}},
		{"subscribe", &Subscribe{PacketID: 9, Topics: []TopicFilter{{Filter: "router/get", QoS: 1}}}},
		{"unsubscribe", &Unsubscribe{PacketID: 10, Topics: []string{"router/get"}}},
		{"pingreq", &PingReq{}},
		{"disconnect", &Disconnect{}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			decoded := decode(t, tt.packet.Encode())
			assert.Equal(t, tt.packet.Type(), decoded.Type())
			assert.Equal(t, tt.packet, decoded)
		})
	}
}

func TestParseConnectUnsupportedProtocol(t *testing.T) {
	t.Parallel()
	raw := (&Connect{ProtocolName: "MQTT", ProtocolLevel: 5, ClientID: "x"}).Encode()
	packet, err := mqtt.ReadPacket(bytes.NewReader(raw))
	require.NoError(t, err)

	_, err = Decode(packet)
	assert.ErrorIs(t, err, ErrUnsupportedProtocol)
}

func TestParseConnectLegacyProtocol(t *testing.T) {
	t.Parallel()
	raw := (&Connect{ProtocolName: "MQIsdp", ProtocolLevel: 3, ClientID: "RUT9"}).Encode()
	decoded := decode(t, raw).(*Connect)
	assert.Equal(t, "RUT9", decoded.ClientID)
}

func TestParsePublishViolations(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		flags byte
	}{
		{"dup on qos0", 0x08},
		{"qos3", 0x06},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			raw := mqtt.EncodePacket(mqtt.PUBLISH, tt.flags, appendField(nil, []byte("router/id")))
			packet, err := mqtt.ReadPacket(bytes.NewReader(raw))
			require.NoError(t, err)
			_, err = ParsePublishPacket(packet)
			assert.ErrorIs(t, err, ErrProtocolViolation)
		})
	}
}

func TestAckPacketEncoding(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []byte{0x40, 0x02, 0x00, 0x05}, NewAckPacket(mqtt.PUBACK, 5))
	assert.Equal(t, []byte{0x50, 0x02, 0x00, 0x05}, NewAckPacket(mqtt.PUBREC, 5))
	assert.Equal(t, []byte{0x62, 0x02, 0x00, 0x05}, NewAckPacket(mqtt.PUBREL, 5))
	assert.Equal(t, []byte{0x70, 0x02, 0x00, 0x05}, NewAckPacket(mqtt.PUBCOMP, 5))
	assert.Equal(t, []byte{0x20, 0x02, 0x00, 0x04}, NewConnectAckPacket(false, AuthenticationFailed))
	assert.Equal(t, []byte{0x90, 0x04, 0x00, 0x09, 0x01, 0x80}, NewSubAckPacket(9, []SubscribeState{SuccessQos1, Failure}))
	assert.Equal(t, []byte{0xB0, 0x02, 0x00, 0x0A}, NewUnSubAckPacket(10))
}

func TestDecodeRejectsServerPackets(t *testing.T) {
	t.Parallel()
	packet, err := mqtt.ReadPacket(bytes.NewReader(NewPingRespPacket()))
	require.NoError(t, err)
	_, err = Decode(packet)
	assert.ErrorIs(t, err, ErrProtocolViolation)
}

func TestSubscribeGranted(t *testing.T) {
	t.Parallel()
	sub := &Subscribe{Topics: []TopicFilter{{QoS: 0}, {QoS: 2}, {QoS: 3}}}
	assert.Equal(t, []SubscribeState{SuccessQos0, SuccessQos2, Failure}, sub.Granted())
}
