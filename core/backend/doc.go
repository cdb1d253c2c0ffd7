// Package backend talks to the analytics backend that stores forwarded records.
//
// The backend is Splunk-compatible: records arrive through the file sink, and removing
// stale records is done by submitting a search job ending in `| delete` and waiting for
// its results. Client is the narrow interface the emitter depends on; SplunkClient is the
// HTTP implementation.
package backend
