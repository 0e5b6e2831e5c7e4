package qos

import "errors"

var (
	// ErrFenced is returned when the connection no longer owns its session.
	ErrFenced = errors.New("qos: connection is not authoritative for its session")
	ErrQoS    = errors.New("qos: unsupported QoS level")
)
