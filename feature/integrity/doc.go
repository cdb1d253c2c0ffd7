// Package integrity checks that every configured entity profile matches the database.
//
// A profile is healthy when its live table and history table exist and expose the
// configured columns. The check is exposed as GET /integrity; the sync command runs the
// same verification before processing an entity type.
package integrity
