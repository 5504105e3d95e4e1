// Package storage supplies database files for persistent sessions.
//
// A Backend owns one database artifact. Its lifecycle is:
//
//	Initialize -> DatabasePath -> (Sync after writes)* -> Cleanup
//
// Delete removes the durable artifact and is never called implicitly.
// Cleanup only releases local resources.
//
// Three backends are provided:
//   - LocalFileBackend ("local"): a fixed file on disk. Sync and Cleanup are no-ops.
//   - TempFileBackend ("temp"): a file in a private temp directory removed on Cleanup.
//   - S3Backend ("s3"): an object downloaded to a local cache on first use and
//     uploaded back on Sync. Works with S3-compatible services via the endpoint
//     and force_path_style options.
//
// # Registry
//
// Backends are built by tag through a Registry:
//
//	reg := storage.DefaultRegistry(storage.WithRegistryLogger(log))
//	backend, err := reg.New(ctx, storage.Config{Type: "local", Path: "/data/analytics"})
//	if errors.Is(err, storage.ErrUnknownBackend) {
//		// unsupported tag
//	}
//
// Custom backends register a Factory under a new tag:
//
//	reg.Register("gcs", myFactory)
//
// A single backend instance is used by one session at a time, so backends do
// not coordinate concurrent Sync calls. Info may be called concurrently.
package storage
