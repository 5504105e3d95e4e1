package server

import "errors"

var (
	ErrClosed   = errors.New("server.closed")
	ErrNotReady = errors.New("server.not_ready")
	ErrConfig   = errors.New("server.config_failed")
)
