// Package emit applies a reconciliation plan to the outside world.
//
// Deletes become one batched search job on the backend (`<quantifier> (id=1 OR id=2) | delete`)
// that is polled until the backend reports completion. Adds are recorded in the ledger and
// written as one JSON object per line to a Sink: a file, standard output or an object store.
package emit
