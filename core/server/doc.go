// Package server builds the HTTP app of the serve command.
//
// The app is read-mostly: it reports watermarks and lock states of the tracked entity
// types and lets an operator clear a stale lock. Features register their routes on the
// app returned by New through the loader package.
//
// # Configuration
//
// The Config struct defines the HTTP port and the API key.
package server
