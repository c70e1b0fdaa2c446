// Package scheduler decides which pending media items get queued for AI
// analysis and when: a configurable daily batch per media kind, manual
// batches with role-dependent size limits, and optional immediate
// processing on upload. Items whose file has vanished from disk are
// treated as orphans and never consume batch capacity.
package scheduler
