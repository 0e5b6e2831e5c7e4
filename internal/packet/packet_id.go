package packet

import "sync"

// RequestCounter hands out outbound packet identifiers. One counter is
// shared by every session of a broker.
type RequestCounter struct {
	mu        sync.Mutex
	currentID uint16
}

func NewRequestCounter() *RequestCounter {
	return &RequestCounter{currentID: 1}
}

// NextID returns the next identifier. Zero is never returned.
func (m *RequestCounter) NextID() uint16 {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.currentID
	m.currentID++
	if m.currentID == 0 {
		m.currentID = 1
	}
	return id
}
