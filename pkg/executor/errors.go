package executor

import "errors"

var (
	ErrNotConnected    = errors.New("executor.not_connected")
	ErrConnectFailed   = errors.New("executor.connect_failed")
	ErrEmptyStatement  = errors.New("executor.empty_statement")
	ErrTranslateFailed = errors.New("executor.translate_failed")
	ErrExecutionFailed = errors.New("executor.execution_failed")
	ErrPanic           = errors.New("executor.panic")
)
