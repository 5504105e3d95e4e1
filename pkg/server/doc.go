// Package server wires configuration, logging and the session manager into
// the single State shared by the HTTP API and the command line.
package server
