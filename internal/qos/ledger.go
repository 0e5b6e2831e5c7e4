// Package qos implements the broker side of the QoS 1 and QoS 2 publish
// handshakes for one connection.
package qos

import (
	"sync"
	"time"
)

// PendingDelivery is a QoS 2 publish that got a PUBREC and waits for its
// PUBREL.
type PendingDelivery struct {
	MessageID  uint16
	Topic      string
	Payload    []byte
	ReceivedAt time.Time
	RetryCount int
}

// Ledger keeps pending deliveries in arrival order, at most one per message
// id.
type Ledger struct {
	mu      sync.Mutex
	pending []*PendingDelivery
}

func NewLedger() *Ledger {
	return &Ledger{}
}

func (l *Ledger) find(messageID uint16) int {
	for i, p := range l.pending {
		if p.MessageID == messageID {
			return i
		}
	}
	return -1
}

// Add stores delivery unless its id is already pending. It reports whether
// the delivery was added.
func (l *Ledger) Add(delivery *PendingDelivery) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.find(delivery.MessageID) >= 0 {
		return false
	}
	l.pending = append(l.pending, delivery)
	return true
}

func (l *Ledger) Get(messageID uint16) (*PendingDelivery, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i := l.find(messageID); i >= 0 {
		return l.pending[i], true
	}
	return nil, false
}

// Retry bumps the retry count of a pending id and returns it.
func (l *Ledger) Retry(messageID uint16) (*PendingDelivery, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.find(messageID)
	if i < 0 {
		return nil, false
	}
	l.pending[i].RetryCount++
	return l.pending[i], true
}

func (l *Ledger) Remove(messageID uint16) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.find(messageID)
	if i < 0 {
		return false
	}
	l.pending = append(l.pending[:i], l.pending[i+1:]...)
	return true
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}
