// Package database provides SQLite-backed persistence for media items
// and their AI analysis state.
//
// Each item carries a processing status (pending, processing, completed,
// failed) and transitions between states are guarded: status changes use
// conditional UPDATEs so that concurrent schedulers and handlers cannot
// move the same item twice. Embeddings are stored as packed little-endian
// float32 blobs alongside the item row.
package database
