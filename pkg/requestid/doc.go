// Package requestid attaches a correlation ID to every HTTP request.
//
// Middleware reuses the client's X-Request-ID header when it is well formed
// and otherwise generates a UUID. The ID is stored in the request context,
// echoed in the response and, through LoggerExtractor, added to every log
// record written with that context.
//
//	r := chi.NewRouter()
//	r.Use(requestid.Middleware())
//
//	log := logger.New(logger.WithContextExtractors(requestid.LoggerExtractor()))
package requestid
