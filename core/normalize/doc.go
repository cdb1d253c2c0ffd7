// Package normalize turns raw entity values into the canonical payload sent downstream.
//
// Records are ordered key/value lists rather than maps so that the JSON output is
// byte-for-byte stable between runs. The first two keys of every record are always
// `timestamp` and `pk`; the remaining keys keep the order in which they were projected.
//
// # Coercion
//
// Raw values coming out of SQL drivers are mostly strings or byte slices. Coerce maps them
// onto JSON types:
//   - "42" becomes an integer, "3.14" and "1e5" become floats
//   - strings with a leading "00" are identifiers and stay strings
//   - empty strings, empty lists and nil are dropped from the record
//   - lists are coerced element by element
//   - time.Time is written as ISO-8601, big decimals as floats
//
// # Usage
//
//	n := normalize.Normalizer{TimestampField: "historical_last_change_date"}
//	rec, err := n.BuildRecord(base, aggregates)
//	line, err := rec.MarshalJSON()
package normalize
