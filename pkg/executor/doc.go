// Package executor runs SQL statements against an embedded database.
//
// An Executor owns one connection. Connect with an empty path opens a
// private in-memory database; otherwise the file at path is opened and
// created if missing. Execute never returns a Go error: the outcome,
// including failures, is carried by Result.
//
// The SQLite implementation uses the CGO-free modernc.org/sqlite driver and
// a single connection, so an in-memory database lives exactly as long as the
// executor stays connected.
//
// Statements pass through a Translator before execution. RuleTranslator
// rewrites a few source-dialect functions the engine lacks:
//
//	IFF(cond, a, b)       -> IIF(cond, a, b)
//	NVL(a, b)             -> IFNULL(a, b)
//	CURRENT_TIMESTAMP()   -> CURRENT_TIMESTAMP
//
// IsWrite classifies statements that modify data or schema by their leading
// keyword.
package executor
