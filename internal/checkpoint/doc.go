// Package checkpoint persists annotation job progress in SQLite so an
// interrupted job can resume without re-annotating completed lines. One row
// per job holds the completed line indices and the engine settings the job
// was started with; the row is deleted when the job completes.
package checkpoint
