// Package evidence keeps a durable, queryable record of every governed turn.
//
// Each turn produces one TurnRecord: what was asked (truncated and hashed),
// how it was classified, which policy decision was taken, how the strike
// count moved, how many claims survived validation and the full ordered
// audit trail. Records are written asynchronously so that persistence never
// delays the event stream.
//
// Sub-packages:
//
//   - recorder: buffered asynchronous writer with drain-on-close
//   - storage: in-memory and SQLite Storage implementations
//   - query: query validation and defaults
//   - export: JSON and CSV exporters for the CLI
//   - retention: age and count based pruning with a cron scheduler
package evidence
