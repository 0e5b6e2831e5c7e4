// Package poller periodically asks every identified device for the
// telemetry topics it has not answered yet.
package poller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/life-stream-dev/router-telemetry-broker/internal/logger"
	"github.com/life-stream-dev/router-telemetry-broker/internal/packet"
	"github.com/life-stream-dev/router-telemetry-broker/internal/session"
)

const RequestTopic = "router/get"

// Poller is the single polling timer of a broker.
type Poller struct {
	registry *session.Registry
	counter  *packet.RequestCounter
	topics   []string
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New polls topics, in order, every interval. Request ids come from counter,
// which is shared with every other outbound request of the broker.
func New(registry *session.Registry, counter *packet.RequestCounter, topics []string, interval time.Duration) *Poller {
	return &Poller{
		registry: registry,
		counter:  counter,
		topics:   topics,
		interval: interval,
	}
}

// Request sends a QoS 0 router/get for name to s.
func (p *Poller) Request(s *session.Session, name string) error {
	id := p.counter.NextID()
	publish := &packet.Publish{
		Topic:    RequestTopic,
		PacketID: id,
		Payload:  []byte(name),
	}
	logger.DebugF("Client [%s] request %s (request id %d)", s.ClientID, name, id)
	if err := s.Transport.Send(publish.Encode()); err != nil {
		return fmt.Errorf("request %s: %w", name, err)
	}
	return nil
}

// Start polls once right away and then on every tick. It reports false when
// the poller was already running.
func (p *Poller) Start() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done

	logger.InfoF("Start polling every %v", p.interval)
	go p.run(ctx, done)
	return true
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	p.Poll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}

// Stop halts the timer and waits for an in-flight poll to finish.
func (p *Poller) Stop() {
	p.stop(func() bool { return true })
}

// StopIfIdle stops the poller once no session is registered.
func (p *Poller) StopIfIdle() bool {
	return p.stop(func() bool { return p.registry.Len() == 0 })
}

func (p *Poller) stop(when func() bool) bool {
	p.mu.Lock()
	if p.cancel == nil || !when() {
		p.mu.Unlock()
		return false
	}
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	cancel()
	<-done
	logger.InfoF("Polling stopped")
	return true
}

func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// Poll requests every due topic from every identified session. Sessions are
// served one after the other and each send completes before the next.
func (p *Poller) Poll(ctx context.Context) {
	for _, s := range p.registry.Sessions() {
		if s.DeviceID() == "" {
			continue
		}
		for _, name := range p.topics {
			if ctx.Err() != nil {
				return
			}
			if !s.MarkRequested(name) {
				continue
			}
			if err := p.Request(s, name); err != nil {
				logger.WarnF("Client [%s] fail to poll, details: %v", s.ClientID, err)
				s.ResetTopic(name)
				break
			}
		}
	}
}
