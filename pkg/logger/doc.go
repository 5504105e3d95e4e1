// Package logger builds *slog.Logger instances for sqlbridge components.
//
// New takes functional options for level, format, output and static
// attributes. WithEnvironment picks text/debug for development and
// JSON/info for staging and production. ContextExtractor callbacks add
// request-scoped attributes, such as the HTTP request id, to every record
// logged with a context:
//
//	log := logger.New(
//		logger.WithEnvironment(environment.Parse(cfg.Env), "sqlbridge"),
//		logger.WithContextExtractors(requestid.LoggerExtractor()),
//	)
//	log.InfoContext(ctx, "session created",
//		logger.SessionID(id),
//		logger.StorageType("local"),
//	)
//
// Attribute helpers in attr.go keep key names consistent. Error and Errors
// return an empty Attr for nil errors, so callers can pass them
// unconditionally.
package logger
