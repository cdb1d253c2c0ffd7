// Package history reads the versioned record store the forwarder watches.
//
// The store is expected to follow the django-simple-history layout: every tracked model
// has a live table plus a history table holding one row per saved version, tagged with
// the version date and a change marker (`+` created, `~` changed, `-` deleted).
// Table and column names are configured per entity type through a Profile.
//
// # Operations
//
//   - ChangedSince: version records newer than a watermark
//   - History: the full version history of a set of entity ids
//   - BaseValues: the configured field projection of the live rows
//   - Verify: checks that the configured tables expose the configured columns
package history
