// Package checkpoints exposes the tracker state over HTTP.
//
// # Routes
//
//   - GET  /checkpoints: every tracked entity type with watermark, lock state and ledger size.
//   - GET  /checkpoints/:entity: one entity type.
//   - POST /checkpoints/:entity/unlock: clear a stale lock, leaving the watermark untouched.
package checkpoints
