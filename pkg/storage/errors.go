package storage

import "errors"

var (
	// Configuration errors
	ErrInvalidConfig  = errors.New("storage.invalid_config")
	ErrUnknownBackend = errors.New("storage.unknown_backend")
	ErrMissingPath    = errors.New("storage.missing_path")
	ErrOutsideRoot    = errors.New("storage.path_outside_root")

	// File system errors
	ErrFailedToCreateDirectory = errors.New("storage.create_directory_failed")
	ErrFailedToDeleteFile      = errors.New("storage.delete_file_failed")
	ErrFailedToDeleteDirectory = errors.New("storage.delete_directory_failed")
	ErrFailedToStatPath        = errors.New("storage.stat_failed")
	ErrFailedToResolvePath     = errors.New("storage.resolve_path_failed")
	ErrNotInitialized          = errors.New("storage.not_initialized")

	// Remote object store errors, classified from SDK responses
	ErrObjectNotFound     = errors.New("storage.object_not_found")
	ErrBucketNotFound     = errors.New("storage.bucket_not_found")
	ErrAccessDenied       = errors.New("storage.access_denied")
	ErrRequestTimeout     = errors.New("storage.request_timeout")
	ErrServiceUnavailable = errors.New("storage.service_unavailable")
	ErrFailedToLoadConfig = errors.New("storage.load_aws_config_failed")
	ErrFailedToDownload   = errors.New("storage.download_failed")
	ErrFailedToUpload     = errors.New("storage.upload_failed")

	// Context errors
	ErrOperationTimeout  = errors.New("storage.operation_timeout")
	ErrOperationCanceled = errors.New("storage.operation_canceled")
)
