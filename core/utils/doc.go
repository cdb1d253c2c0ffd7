// Package utils provides common utility functions for the history forwarder.
// It includes helper functions for converting raw SQL driver values (integers, byte
// slices, textual datetimes) into the Go types the rest of the pipeline works with.
package utils
