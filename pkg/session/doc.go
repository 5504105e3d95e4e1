// Package session manages isolated, stateful database sessions under a fixed
// capacity.
//
// A Manager maps session ids to Sessions. Each Session owns one executor,
// created lazily on first use, and for persistent sessions one
// storage.Backend that supplies the database file.
//
// # Concurrency
//
// Two lock scopes are kept apart:
//
//   - The manager map lock guards the id to session mapping. It is held only
//     for lookups, inserts, removals and the eviction scan.
//   - Each session has its own lock, held for the duration of one Execute.
//     Calls on the same session are serialized; calls on different sessions
//     never contend.
//
// Lazy connects and storage syncs happen under the session lock only, so a
// slow sync on one session never stalls another.
//
// # Capacity
//
// When the manager is full GetOrCreate first drops expired sessions, then
// evicts the least recently used session whose lock is free. Busy sessions
// are skipped, never waited on. If nothing can be freed the call fails with
// ErrCapacityExhausted and the map is left at capacity.
//
// # Usage
//
//	mgr, err := session.NewFromConfig(cfg, session.WithLogger(log))
//	if err != nil {
//		return err
//	}
//	mgr.Start(ctx)
//	defer mgr.Shutdown(context.Background())
//
//	s, err := mgr.GetOrCreate(ctx,
//		session.WithSessionID("analytics"),
//		session.WithType(session.TypePersistent),
//		session.WithStorage(storage.Config{Type: "local", Path: "/data/analytics"}),
//	)
//	if err != nil {
//		return err
//	}
//	res := s.Execute(ctx, "CREATE TABLE events (id INTEGER, name TEXT)")
//	if !res.Success {
//		log.Warn("statement failed", logger.Error(res.Err))
//	}
//
// Execute never returns a Go error. A failed statement leaves the session
// usable for the next one.
//
// # Shutdown
//
// Shutdown stops the background sweep, waiting at most the configured
// shutdown wait, then removes every session. Sessions busy with a statement
// are marked closed and torn down as soon as that statement returns.
//
// # Write detection
//
// Persistent sessions sync their backend after a successful statement that
// starts with CREATE, INSERT, UPDATE, DELETE, DROP, ALTER or COPY. The check
// is lexical, so a write preceded by a comment or hidden in a multi-statement
// batch is not synced until the session closes.
package session
