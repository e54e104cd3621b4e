// Package server holds the HTTP server configuration.
//
// The start command builds the Fiber app; this package only defines the
// settings it reads: the listen port, the API key guarding every route and
// the read-only switch.
package server
