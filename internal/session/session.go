// Package session tracks which connection currently speaks for a client id.
package session

import (
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/life-stream-dev/router-telemetry-broker/internal/qos"
)

// Transport is the write side of a client connection.
type Transport interface {
	Send(data []byte) error
	Close() error
}

type TopicStatus int

const (
	Requested TopicStatus = iota + 1
	Received
)

func (s TopicStatus) String() string {
	switch s {
	case Requested:
		return "requested"
	case Received:
		return "received"
	default:
		return "unknown"
	}
}

type aliveState int

const (
	aliveUnknown aliveState = iota
	aliveTrue
	aliveFalse
)

var forbiddenChars = regexp.MustCompile("[\\]\\[*,;'\"`<>\\\\?]")

// SanitizeID makes a client id safe to use as a store path segment.
func SanitizeID(clientID string) string {
	return forbiddenChars.ReplaceAllString(clientID, "_")
}

// NewFencingToken returns a token unique to one transport connection.
func NewFencingToken() string {
	return fmt.Sprintf("%d_%s", time.Now().UnixMilli(), uuid.NewString())
}

// Session is one device connection. The identity fields are fixed at
// creation, the rest is guarded by mu because the poller reads it from its
// own goroutine.
type Session struct {
	ClientID     string
	StoreID      string
	Username     string
	FencingToken string
	Transport    Transport
	ConnectedAt  time.Time
	Pending      *qos.Ledger

	// aliveMu orders alive writes, it is held across the swap and the store
	// write so the last swap is always the last write.
	aliveMu sync.Mutex

	mu          sync.Mutex
	deviceID    string
	topicStatus map[string]TopicStatus
	alive       aliveState
}

func newSession(clientID, username string, transport Transport) *Session {
	return &Session{
		ClientID:     clientID,
		StoreID:      SanitizeID(clientID),
		Username:     username,
		FencingToken: NewFencingToken(),
		Transport:    transport,
		ConnectedAt:  time.Now(),
		Pending:      qos.NewLedger(),
		topicStatus:  make(map[string]TopicStatus),
	}
}

// DeviceID is empty until the device has announced its serial.
func (s *Session) DeviceID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deviceID
}

func (s *Session) SetDeviceID(deviceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deviceID = deviceID
}

func (s *Session) TopicStatus(name string) (TopicStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	status, ok := s.topicStatus[name]
	return status, ok
}

func (s *Session) MarkReceived(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topicStatus[name] = Received
}

// ResetTopic forgets the status of name so the next poll requests it again.
func (s *Session) ResetTopic(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.topicStatus, name)
}

// MarkRequested moves name to Requested when it is absent or Received and
// reports whether a request has to be sent.
func (s *Session) MarkRequested(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status, ok := s.topicStatus[name]; ok && status != Received {
		return false
	}
	s.topicStatus[name] = Requested
	return true
}

// SwapAlive records alive and reports whether it differs from the last
// recorded value.
func (s *Session) SwapAlive(alive bool) bool {
	next := aliveFalse
	if alive {
		next = aliveTrue
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.alive == next {
		return false
	}
	s.alive = next
	return true
}

// WriteAlive swaps the recorded alive flag and, when it changed, calls write
// before any other alive change of s can start. A failed write is forgotten
// so the next call writes again.
func (s *Session) WriteAlive(alive bool, write func(alive bool) error) error {
	s.aliveMu.Lock()
	defer s.aliveMu.Unlock()
	if !s.SwapAlive(alive) {
		return nil
	}
	if err := write(alive); err != nil {
		s.ForgetAlive()
		return err
	}
	return nil
}

// ForgetAlive clears the recorded value so the next SwapAlive writes.
func (s *Session) ForgetAlive() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alive = aliveUnknown
}

func (s *Session) String() string {
	return s.ClientID
}
