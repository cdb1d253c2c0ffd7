// Package aggregate computes derived per-entity attributes from version history.
//
// Attributes are produced by an ordered list of providers. Each provider maps a set of
// entity ids to extra fields; the Aggregator runs them in order and merges the results,
// later providers overwriting keys set by earlier ones. HistoricalAttributes is the
// provider every entity type gets: creation date, last change date, number of versions
// and the spacing between versions, always computed over the complete history of an id.
package aggregate
