// Package server accepts router connections and wires each one to the
// session registry, the QoS engine, the topic router and the poller.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	c "github.com/life-stream-dev/router-telemetry-broker/internal/config"
	"github.com/life-stream-dev/router-telemetry-broker/internal/connection"
	"github.com/life-stream-dev/router-telemetry-broker/internal/database"
	"github.com/life-stream-dev/router-telemetry-broker/internal/history"
	"github.com/life-stream-dev/router-telemetry-broker/internal/logger"
	"github.com/life-stream-dev/router-telemetry-broker/internal/packet"
	"github.com/life-stream-dev/router-telemetry-broker/internal/poller"
	"github.com/life-stream-dev/router-telemetry-broker/internal/router"
	"github.com/life-stream-dev/router-telemetry-broker/internal/session"
	"github.com/life-stream-dev/router-telemetry-broker/internal/topics"
)

const (
	maxConnections = 10000
	writeTimeout   = 10 * time.Second
)

// Broker owns every piece of process wide state: the registry, the shared
// request counter, the ensured-object cache and the polling timer.
type Broker struct {
	cfg      c.Config
	registry *session.Registry
	counter  *packet.RequestCounter
	router   *router.Router
	poller   *poller.Poller

	listener net.Listener
	sem      chan struct{}
	wg       sync.WaitGroup
	closing  atomic.Bool

	connMu sync.Mutex
	conns  map[*connection.Connection]struct{}
}

// NewBroker builds a broker on top of store. A nil recorder disables
// history.
func NewBroker(cfg c.Config, store database.StateStore, recorder history.Recorder) (*Broker, error) {
	cacheSize := cfg.ObjectCacheSize
	if cacheSize <= 0 {
		cacheSize = c.DefaultObjectCacheSize
	}
	objects, err := database.NewObjectCache(cacheSize)
	if err != nil {
		return nil, err
	}
	pollInterval := time.Duration(cfg.PollInterval) * time.Millisecond
	if pollInterval <= 0 {
		pollInterval = c.DefaultPollInterval * time.Millisecond
	}

	catalog := topics.Default()
	registry := session.NewRegistry(session.Credentials{Username: cfg.User, Password: cfg.Password})
	counter := packet.NewRequestCounter()

	b := &Broker{
		cfg:      cfg,
		registry: registry,
		counter:  counter,
		router:   router.New(store, objects, catalog, registry, recorder),
		poller:   poller.New(registry, counter, catalog.Names(cfg.RouterType), pollInterval),
		sem:      make(chan struct{}, maxConnections),
		conns:    make(map[*connection.Connection]struct{}),
	}
	b.router.OnIdentity(func() { b.poller.Start() })
	return b, nil
}

func (b *Broker) Registry() *session.Registry {
	return b.registry
}

func (b *Broker) Poller() *poller.Poller {
	return b.poller
}

// Start resets stale alive flags, binds the listener and serves in the
// background. Only a bind failure is returned.
func (b *Broker) Start(ctx context.Context) error {
	if err := b.router.ResetAlive(ctx); err != nil {
		logger.ErrorF("Fail to reset alive states, details: %v", err)
	}
	if err := b.router.UpdateConnectivity(ctx); err != nil {
		logger.ErrorF("Fail to update connection state, details: %v", err)
	}

	address := net.JoinHostPort(b.cfg.Bind, strconv.Itoa(b.cfg.Port))
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", address, err)
	}
	b.listener = ln

	authenticated := ""
	if b.cfg.User != "" {
		authenticated = "authenticated "
	}
	logger.InfoF("Starting MQTT %sserver on %s", authenticated, ln.Addr().String())

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.Serve()
	}()
	return nil
}

// Addr is the bound listener address, nil before Start.
func (b *Broker) Addr() net.Addr {
	if b.listener == nil {
		return nil
	}
	return b.listener.Addr()
}

// Serve accepts connections until the listener is closed.
func (b *Broker) Serve() {
	for {
		conn, err := b.listener.Accept()
		if err != nil {
			if b.closing.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			logger.ErrorF("Accept connection error: %v", err)
			continue
		}

		logger.DebugF("Accepted new connection from %s", conn.RemoteAddr().String())

		b.sem <- struct{}{}
		b.wg.Add(1)
		go func(conn net.Conn) {
			defer func() {
				<-b.sem
				b.wg.Done()
			}()
			b.handle(conn)
		}(conn)
	}
}

func (b *Broker) handle(conn net.Conn) {
	tc := connection.New(conn, writeTimeout)
	if !b.track(tc) {
		_ = tc.Close()
		return
	}
	defer b.untrack(tc)

	handler := &ConnectionHandler{
		broker: b,
		conn:   tc,
		connID: tc.ConnID,
	}
	handler.handleConnection(context.Background())
}

func (b *Broker) track(conn *connection.Connection) bool {
	b.connMu.Lock()
	defer b.connMu.Unlock()
	if b.closing.Load() {
		return false
	}
	b.conns[conn] = struct{}{}
	return true
}

func (b *Broker) untrack(conn *connection.Connection) {
	b.connMu.Lock()
	defer b.connMu.Unlock()
	delete(b.conns, conn)
}

// Shutdown stops polling, marks every registered device not alive, closes
// the listener and every connection and waits for the handlers.
func (b *Broker) Shutdown(ctx context.Context) error {
	if !b.closing.CompareAndSwap(false, true) {
		return nil
	}

	b.poller.Stop()

	for _, s := range b.registry.Sessions() {
		if err := b.router.UpdateAlive(ctx, s, false); err != nil {
			logger.ErrorF("Client [%s] fail to update alive state, details: %v", s.ClientID, err)
		}
	}

	var errs []error
	if b.listener != nil {
		if err := b.listener.Close(); err != nil && !connection.IsNetClosedError(err) {
			errs = append(errs, fmt.Errorf("close listener: %w", err))
		}
	}

	b.connMu.Lock()
	for conn := range b.conns {
		_ = conn.Close()
	}
	b.connMu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		logger.InfoF("MQTT server stopped")
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("wait for connections: %w", ctx.Err()))
	}
	return errors.Join(errs...)
}

// Invoke lets the shutdown cleaner stop the broker.
func (b *Broker) Invoke(ctx context.Context) error {
	return b.Shutdown(ctx)
}
