package database

import "errors"

var (
	ErrStoreUnavailable = errors.New("database: store unavailable")
	ErrObjectNotFound   = errors.New("database: object does not exist")
	ErrStateNotFound    = errors.New("database: state does not exist")
	ErrEmptyPath        = errors.New("database: path is empty")
)
