package config

import "errors"

var (
	ErrConfigNotFound = errors.New("config: configuration file does not exist")
	ErrInvalidFormat  = errors.New("config: configuration file is not valid")
	ErrInvalidConfig  = errors.New("config: invalid configuration")
)
