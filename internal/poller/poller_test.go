package poller

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/life-stream-dev/router-telemetry-broker/internal/mqtt"
	"github.com/life-stream-dev/router-telemetry-broker/internal/packet"
	"github.com/life-stream-dev/router-telemetry-broker/internal/session"
)

// transport records the payload of every router/get it is sent.
type transport struct {
	mu       sync.Mutex
	requests []string
	qos      []byte
	err      error
}

func (tr *transport) Send(data []byte) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if tr.err != nil {
		return tr.err
	}
	raw, err := mqtt.ReadPacket(bytes.NewReader(data))
	if err != nil {
		return err
	}
	publish, err := packet.ParsePublishPacket(raw)
	if err != nil {
		return err
	}
	if publish.Topic != RequestTopic {
		return errors.New("unexpected topic " + publish.Topic)
	}
	tr.requests = append(tr.requests, string(publish.Payload))
	tr.qos = append(tr.qos, publish.QoS)
	return nil
}

func (tr *transport) Close() error { return nil }

func (tr *transport) sent() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]string(nil), tr.requests...)
}

func connect(t *testing.T, registry *session.Registry, clientID string) (*session.Session, *transport) {
	t.Helper()
	tr := &transport{}
	s, _, _ := registry.OnConnect(clientID, session.Credentials{}, tr)
	require.NotNil(t, s)
	return s, tr
}

func TestPollRequestsDueTopics(t *testing.T) {
	registry := session.NewRegistry(session.Credentials{})
	p := New(registry, packet.NewRequestCounter(), []string{"id", "temperature", "signal"}, time.Hour)
	ctx := context.Background()

	anonymous, anonymousTr := connect(t, registry, "anonymous")
	s, tr := connect(t, registry, "RUT123")
	s.SetDeviceID("123456780")

	p.Poll(ctx)
	assert.Equal(t, []string{"id", "temperature", "signal"}, tr.sent())
	assert.Equal(t, []byte{0, 0, 0}, tr.qos, "requests are QoS 0")
	assert.Empty(t, anonymousTr.sent(), "sessions without a device id are not polled")
	assert.Empty(t, anonymous.DeviceID())

	// nothing answered yet, nothing is due
	p.Poll(ctx)
	assert.Len(t, tr.sent(), 3)

	s.MarkReceived("signal")
	p.Poll(ctx)
	assert.Equal(t, []string{"id", "temperature", "signal", "signal"}, tr.sent())
}

func TestPollSendFailureSkipsToNextSession(t *testing.T) {
	registry := session.NewRegistry(session.Credentials{})
	p := New(registry, packet.NewRequestCounter(), []string{"temperature", "signal"}, time.Hour)

	a, aTr := connect(t, registry, "a")
	a.SetDeviceID("1")
	aTr.err = errors.New("broken pipe")
	b, bTr := connect(t, registry, "b")
	b.SetDeviceID("2")

	p.Poll(context.Background())
	assert.Empty(t, aTr.sent())
	assert.Equal(t, []string{"temperature", "signal"}, bTr.sent())

	_, ok := a.TopicStatus("temperature")
	assert.False(t, ok, "a failed request is due again")

	aTr.mu.Lock()
	aTr.err = nil
	aTr.mu.Unlock()
	p.Poll(context.Background())
	assert.Equal(t, []string{"temperature", "signal"}, aTr.sent())
}

func TestSharedRequestCounter(t *testing.T) {
	registry := session.NewRegistry(session.Credentials{})
	counter := packet.NewRequestCounter()
	p := New(registry, counter, []string{"temperature"}, time.Hour)

	for _, id := range []string{"a", "b"} {
		s, _ := connect(t, registry, id)
		s.SetDeviceID(id)
	}
	p.Poll(context.Background())
	assert.Equal(t, uint16(3), counter.NextID(), "one id per request across every session")
}

func TestStartStop(t *testing.T) {
	registry := session.NewRegistry(session.Credentials{})
	p := New(registry, packet.NewRequestCounter(), []string{"temperature"}, 10*time.Millisecond)

	s, tr := connect(t, registry, "RUT123")
	s.SetDeviceID("123456780")

	assert.True(t, p.Start())
	assert.False(t, p.Start(), "a second start is a no-op")
	assert.True(t, p.Running())

	require.Eventually(t, func() bool { return len(tr.sent()) == 1 }, time.Second, 5*time.Millisecond,
		"the first poll runs immediately")

	s.MarkReceived("temperature")
	require.Eventually(t, func() bool { return len(tr.sent()) == 2 }, time.Second, 5*time.Millisecond,
		"the ticker polls again")

	assert.False(t, p.StopIfIdle(), "a registered session keeps the timer alive")
	assert.True(t, p.Running())

	registry.Evict("RUT123")
	assert.True(t, p.StopIfIdle())
	assert.False(t, p.Running())
	assert.False(t, p.StopIfIdle())

	p.Stop()
	assert.True(t, p.Start(), "the poller can be started again")
	p.Stop()
	assert.False(t, p.Running())
}
