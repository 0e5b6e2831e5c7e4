package packet

import "errors"

var (
	ErrMalformedPacket     = errors.New("packet: malformed packet")
	ErrUnsupportedProtocol = errors.New("packet: unsupported protocol")
	ErrProtocolViolation   = errors.New("packet: protocol violation")
)
