// Package environment names the deployment a process runs in.
//
// Parse accepts the usual spellings ("prod", "stage", ...) and falls back to
// Development, so a missing APP_ENV never blocks startup. The logger package
// uses the result to pick output format and level.
package environment
