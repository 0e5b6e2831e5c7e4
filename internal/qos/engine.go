package qos

import (
	"context"
	"fmt"
	"time"

	"github.com/life-stream-dev/router-telemetry-broker/internal/logger"
	"github.com/life-stream-dev/router-telemetry-broker/internal/mqtt"
	"github.com/life-stream-dev/router-telemetry-broker/internal/packet"
)

// Responder sends encoded acknowledgments back to the client.
type Responder interface {
	Send(data []byte) error
}

// DeliverFunc hands an accepted publish to the topic router.
type DeliverFunc func(ctx context.Context, topic string, payload []byte)

// FenceFunc reports whether the connection still owns its session.
type FenceFunc func() bool

// Engine runs the publish handshakes of one connection. Its methods are
// called from the connection's read loop, one packet at a time.
type Engine struct {
	connID        string
	ledger        *Ledger
	out           Responder
	deliver       DeliverFunc
	authoritative FenceFunc
	now           func() time.Time
}

// NewEngine builds an engine around ledger. A nil fence treats the
// connection as always authoritative.
func NewEngine(connID string, ledger *Ledger, out Responder, deliver DeliverFunc, fence FenceFunc) *Engine {
	if fence == nil {
		fence = func() bool { return true }
	}
	return &Engine{
		connID:        connID,
		ledger:        ledger,
		out:           out,
		deliver:       deliver,
		authoritative: fence,
		now:           time.Now,
	}
}

func (e *Engine) Ledger() *Ledger {
	return e.ledger
}

func (e *Engine) ack(packetType mqtt.PacketType, id uint16) error {
	if err := e.out.Send(packet.NewAckPacket(packetType, id)); err != nil {
		return fmt.Errorf("send %s %d: %w", packetType, id, err)
	}
	return nil
}

// OnPublish delivers QoS 0 publishes, acknowledges then delivers QoS 1
// publishes and parks QoS 2 publishes until their PUBREL.
func (e *Engine) OnPublish(ctx context.Context, p *packet.Publish) error {
	if !e.authoritative() {
		return ErrFenced
	}

	switch p.QoS {
	case 0:
		e.deliver(ctx, p.Topic, p.Payload)
		return nil
	case 1:
		if err := e.ack(mqtt.PUBACK, p.PacketID); err != nil {
			return err
		}
		e.deliver(ctx, p.Topic, p.Payload)
		return nil
	case 2:
		added := e.ledger.Add(&PendingDelivery{
			MessageID:  p.PacketID,
			Topic:      p.Topic,
			Payload:    p.Payload,
			ReceivedAt: e.now(),
		})
		if !added {
			pending, _ := e.ledger.Retry(p.PacketID)
			logger.WarnF("[%s] Ignored duplicate message with ID: %d (retry %d)", e.connID, p.PacketID, pending.RetryCount)
		}
		return e.ack(mqtt.PUBREC, p.PacketID)
	default:
		return fmt.Errorf("%w: %d", ErrQoS, p.QoS)
	}
}

// OnPubRel releases a pending QoS 2 publish: it is delivered, PUBCOMP is
// sent and the entry is dropped.
func (e *Engine) OnPubRel(ctx context.Context, id uint16) error {
	if !e.authoritative() {
		return ErrFenced
	}

	pending, ok := e.ledger.Get(id)
	if !ok {
		logger.WarnF("[%s] Received pubrel for unknown message ID: %d", e.connID, id)
		return nil
	}

	e.deliver(ctx, pending.Topic, pending.Payload)
	err := e.ack(mqtt.PUBCOMP, id)
	e.ledger.Remove(id)
	return err
}

// The broker never publishes with QoS above 0, so any PUBACK, PUBREC or
// PUBCOMP from a client refers to a message id this side does not own.

func (e *Engine) OnPubAck(id uint16) error {
	return e.unsolicited(mqtt.PUBACK, id)
}

func (e *Engine) OnPubRec(id uint16) error {
	return e.unsolicited(mqtt.PUBREC, id)
}

func (e *Engine) OnPubComp(id uint16) error {
	return e.unsolicited(mqtt.PUBCOMP, id)
}

func (e *Engine) unsolicited(packetType mqtt.PacketType, id uint16) error {
	if !e.authoritative() {
		return ErrFenced
	}
	logger.WarnF("[%s] Received %s for unknown message ID: %d", e.connID, packetType, id)
	return nil
}
