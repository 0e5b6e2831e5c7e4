// Package connection wraps a client socket so writes from the connection
// goroutine and the poller never interleave.
package connection

import (
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/life-stream-dev/router-telemetry-broker/internal/logger"
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("connection: closed")

type Connection struct {
	Conn   net.Conn
	ConnID string

	writeMu      sync.Mutex
	writeTimeout time.Duration
	closeOnce    sync.Once
	closed       chan struct{}
}

func New(conn net.Conn, writeTimeout time.Duration) *Connection {
	return &Connection{
		Conn:         conn,
		ConnID:       conn.RemoteAddr().String(),
		writeTimeout: writeTimeout,
		closed:       make(chan struct{}),
	}
}

// Send writes data completely and returns once the bytes are handed to the
// kernel. A failed write closes the connection.
func (c *Connection) Send(data []byte) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		_ = c.Conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	total := 0
	for total < len(data) {
		n, err := c.Conn.Write(data[total:])
		if err != nil {
			logger.ErrorF("[%s] Fail to send data, details: %v", c.ConnID, err)
			// the stream is out of sync after a partial write
			_ = c.Close()
			return err
		}
		total += n
	}
	logger.DebugF("[%s] Send %d bytes to client", c.ConnID, total)
	return nil
}

func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.Conn.Close()
	})
	if err != nil && IsNetClosedError(err) {
		return nil
	}
	return err
}

// Closed is closed once Close has been called.
func (c *Connection) Closed() <-chan struct{} {
	return c.closed
}

func IsNetClosedError(err error) bool {
	if errors.Is(err, net.ErrClosed) {
		return true
	}
	var opErr *net.OpError
	ok := errors.As(err, &opErr)
	return ok && opErr.Timeout()
}

// HandleReadError logs a read error and returns the close reason.
func HandleReadError(connID string, err error) string {
	switch {
	case errors.Is(err, io.EOF):
		logger.InfoF("[%s] Client close connection", connID)
		return "closed"
	case os.IsTimeout(err):
		logger.WarnF("[%s] Reading timeout", connID)
		return "timeout"
	case IsNetClosedError(err):
		logger.DebugF("[%s] Connection closed locally", connID)
		return "closed"
	default:
		logger.ErrorF("[%s] Error occured while reading packet, details: %v", connID, err)
		return "closed because of error"
	}
}
