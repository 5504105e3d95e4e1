// Package httpserver runs an http.Handler with context driven graceful
// shutdown and provides liveness and readiness probe handlers.
//
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//	if err := srv.Run(ctx, router); err != nil {
//		return err
//	}
//
// Run returns when ctx is cancelled, after in-flight requests have drained
// or the shutdown timeout has elapsed. Signal handling is left to the
// caller, typically through signal.NotifyContext.
//
// Configuration is read from SQLBRIDGE_HTTP_* environment variables through
// Config and pkg/config.
package httpserver
