package history

import "errors"

var (
	ErrDisabled         = errors.New("history: disabled in configuration")
	ErrConnectionFailed = errors.New("history: connection failed")
)
