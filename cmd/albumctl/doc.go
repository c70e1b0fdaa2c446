// Command albumctl provides a CLI utility for operating the photo album
// AI processing pipeline.
//
// It supports the following operations:
//   - -status: Show item counts by processing state for each media kind
//   - -retry-failed: Reset failed items of one kind back to pending
//   - -orphans: List pending items whose backing media file is missing
//
// Usage:
//
//	albumctl [flags]
//
// Flags:
//
//	-status        Show item counts by processing state. Orphaned items
//	               are reported separately and excluded from pending.
//
//	-retry-failed  Move failed items of the given -kind back to pending
//	               so the next scheduled or manual batch picks them up.
//
//	-orphans       Print the ID and file path of every pending item of
//	               the given -kind whose media file is gone from disk.
//
//	-kind          Media kind for -retry-failed and -orphans, photo
//	               (default) or video.
//
// Environment:
//
//	DATABASE_DIR - Path to database directory (default: /database)
//	MEDIA_DIR    - Path to media directory (default: /media)
//
// Notes:
//
// albumctl operates on the same SQLite database as the server. Status
// transitions it performs use the same guarded updates as the pipeline,
// so it is safe to run while the server is processing.
package main
