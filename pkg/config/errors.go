package config

import "errors"

var (
	ErrParsingConfig  = errors.New("config.parsing_failed")
	ErrInvalidConfig  = errors.New("config.invalid")
	ErrLoadingEnvFile = errors.New("config.env_file_load_failed")
	ErrNilPointer     = errors.New("config.nil_pointer")
)
