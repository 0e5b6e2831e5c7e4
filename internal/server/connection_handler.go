package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/life-stream-dev/router-telemetry-broker/internal/connection"
	"github.com/life-stream-dev/router-telemetry-broker/internal/logger"
	"github.com/life-stream-dev/router-telemetry-broker/internal/mqtt"
	pa "github.com/life-stream-dev/router-telemetry-broker/internal/packet"
	"github.com/life-stream-dev/router-telemetry-broker/internal/qos"
	"github.com/life-stream-dev/router-telemetry-broker/internal/session"
)

var (
	errConnectRefused = errors.New("connect refused")
	errFirstPacket    = errors.New("first packet is not CONNECT")
)

// ConnectionHandler serves one client connection. Packets are read and
// handled one at a time on the connection goroutine.
type ConnectionHandler struct {
	broker  *Broker
	conn    *connection.Connection
	connID  string
	session *session.Session
	engine  *qos.Engine
}

func (c *ConnectionHandler) idleTimeout() time.Duration {
	return time.Duration(c.broker.cfg.Timeout) * time.Second
}

// armIdleDeadline bounds the next read by the idle timeout, a zero timeout
// clears the deadline.
func (c *ConnectionHandler) armIdleDeadline() {
	if timeout := c.idleTimeout(); timeout > 0 {
		_ = c.conn.Conn.SetReadDeadline(time.Now().Add(timeout))
	} else {
		_ = c.conn.Conn.SetReadDeadline(time.Time{})
	}
}

func (c *ConnectionHandler) refuse(code pa.ConnectRespType) error {
	if err := c.conn.Send(pa.NewConnectAckPacket(false, code)); err != nil {
		return err
	}
	return fmt.Errorf("%w: return code %d", errConnectRefused, code)
}

func (c *ConnectionHandler) handleFirstPacket(ctx context.Context) error {
	c.armIdleDeadline()
	raw, err := mqtt.ReadPacket(c.conn.Conn)
	if err != nil {
		logger.WarnF("[%s] Fail to read first packet, details: %v", c.connID, err)
		return err
	}

	if raw.Header.Type != mqtt.CONNECT {
		logger.ErrorF("[%s] Invalid first packet type, expected %s packet, but got %s packet", c.connID, mqtt.CONNECT.String(), raw.Header.Type.String())
		return errFirstPacket
	}

	connect, err := pa.ParseConnectPacket(raw)
	if err != nil {
		logger.ErrorF("[%s] Fail to parse CONNECT packet, details: %v", c.connID, err)
		if errors.Is(err, pa.ErrUnsupportedProtocol) {
			return c.refuse(pa.UnacceptableProtocol)
		}
		return err
	}

	if connect.ClientID == "" {
		logger.WarnF("[%s] Client id is empty", c.connID)
		return c.refuse(pa.IdentifierRejected)
	}

	b := c.broker
	s, outcome, previous := b.registry.OnConnect(connect.ClientID, session.Credentials{
		Username: connect.Username,
		Password: connect.Password,
	}, c.conn)

	if outcome == session.BadCredentials {
		logger.WarnF("Client [%s] has invalid password or username", connect.ClientID)
		if previous != nil {
			if err := b.router.UpdateAlive(ctx, previous, false); err != nil {
				logger.ErrorF("Client [%s] fail to update alive state, details: %v", previous.ClientID, err)
			}
			if err := b.router.UpdateConnectivity(ctx); err != nil {
				logger.ErrorF("Fail to update connection state, details: %v", err)
			}
			_ = previous.Transport.Close()
		}
		return c.refuse(pa.AuthenticationFailed)
	}

	c.session = s
	c.connID = s.ClientID
	c.engine = qos.NewEngine(c.connID, s.Pending, c.conn,
		func(ctx context.Context, topic string, payload []byte) {
			b.router.Deliver(ctx, s, topic, payload)
		},
		c.authoritative,
	)

	if err := c.conn.Send(pa.NewConnectAckPacket(false, pa.Accepted)); err != nil {
		return err
	}
	if err := b.router.UpdateConnectivity(ctx); err != nil {
		logger.ErrorF("Fail to update connection state, details: %v", err)
	}
	if err := b.poller.Request(s, "id"); err != nil {
		logger.WarnF("Client [%s] fail to request device id, details: %v", c.connID, err)
	}
	return nil
}

func (c *ConnectionHandler) authoritative() bool {
	return c.broker.registry.IsAuthoritative(c.session.ClientID, c.session.FencingToken)
}

// fenced logs a packet from a connection that lost its session.
func (c *ConnectionHandler) fenced(packetType mqtt.PacketType) {
	if c.broker.cfg.IgnorePings {
		return
	}
	actual := "none"
	if current, ok := c.broker.registry.Current(c.session.ClientID); ok {
		actual = current.FencingToken
	}
	logger.WarnF("Old client %s with secret %s sends %s. Ignore! Actual secret is %s",
		c.session.ClientID, c.session.FencingToken, packetType.String(), actual)
}

// handlePacket runs the read loop and returns why it ended.
func (c *ConnectionHandler) handlePacket(ctx context.Context) string {
	for {
		c.armIdleDeadline()

		raw, err := mqtt.ReadPacket(c.conn.Conn)
		if err != nil {
			return connection.HandleReadError(c.connID, err)
		}

		logger.DebugF("[%s] Receive %s package, data %+v", c.connID, raw.Header.Type, raw.Payload)

		decoded, err := pa.Decode(raw)
		if err != nil {
			logger.ErrorF("[%s] Fail to decode %s packet, details: %v", c.connID, raw.Header.Type, err)
			return "closed because of error"
		}

		switch p := decoded.(type) {
		case *pa.Connect:
			logger.ErrorF("[%s] Duplicate CONNECT package", c.connID)
			return "protocol violation"
		case *pa.Disconnect:
			logger.InfoF("[%s] Client disconnect", c.connID)
			return "disconnected"
		case *pa.Publish:
			err = c.engine.OnPublish(ctx, p)
		case *pa.PubRel:
			err = c.engine.OnPubRel(ctx, p.PacketID)
		case *pa.PubAck:
			err = c.engine.OnPubAck(p.PacketID)
		case *pa.PubRec:
			err = c.engine.OnPubRec(p.PacketID)
		case *pa.PubComp:
			err = c.engine.OnPubComp(p.PacketID)
		case *pa.Subscribe:
			err = c.reply(pa.NewSubAckPacket(p.PacketID, p.Granted()))
		case *pa.Unsubscribe:
			err = c.reply(pa.NewUnSubAckPacket(p.PacketID))
		case *pa.PingReq:
			logger.DebugF("Client [%s] pingreq", c.connID)
			err = c.reply(pa.NewPingRespPacket())
		}

		switch {
		case err == nil:
		case errors.Is(err, qos.ErrFenced):
			c.fenced(raw.Header.Type)
		default:
			logger.ErrorF("[%s] Fail to handle %s packet, details: %v", c.connID, raw.Header.Type, err)
			return "closed because of error"
		}
	}
}

// reply answers SUBSCRIBE, UNSUBSCRIBE and PINGREQ once fencing allows it.
func (c *ConnectionHandler) reply(data []byte) error {
	if !c.authoritative() {
		return qos.ErrFenced
	}
	return c.conn.Send(data)
}

// close retires the session if this connection still owns it.
func (c *ConnectionHandler) close(ctx context.Context, reason string) {
	b := c.broker
	if c.session != nil {
		if s, removed := b.registry.OnClose(c.session.ClientID, c.session.FencingToken); removed {
			logger.InfoF("Client [%s] connection closed: %s", s.ClientID, reason)
			if err := b.router.UpdateAlive(ctx, s, false); err != nil {
				logger.ErrorF("Client [%s] fail to update alive state, details: %v", s.ClientID, err)
			}
			if err := b.router.UpdateConnectivity(ctx); err != nil {
				logger.ErrorF("Fail to update connection state, details: %v", err)
			}
		}
	}

	logger.DebugF("[%s] Connection closed", c.connID)
	if err := c.conn.Close(); err != nil {
		logger.WarnF("[%s] Error occured while closing connection, details: %v", c.connID, err)
	}
	b.poller.StopIfIdle()
}

func (c *ConnectionHandler) handleConnection(ctx context.Context) {
	reason := "closed"
	defer func() {
		c.close(ctx, reason)
	}()

	if err := c.handleFirstPacket(ctx); err != nil {
		return
	}

	reason = c.handlePacket(ctx)
}
