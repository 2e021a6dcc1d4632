// Package sqlite provides the durable SegmentStore adapter.
//
// One row per segment; embeddings are stored inline as fixed-length
// little-endian float32 blobs next to the row. The database runs in WAL
// mode so reads operate on the latest committed snapshot without blocking
// writers, and dedup relies on the unique (parent_id, content_hash)
// constraint rather than application-level locking.
//
// Schema changes go through embedded migrations in the migrations
// subpackage, applied in version order at open time.
package sqlite
