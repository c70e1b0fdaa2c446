// Package pipeline executes AI analysis tasks for media items on a
// bounded worker pool. Each task drives one item through the processing
// state machine: claim with a guarded pending to processing transition,
// analyze with retries under a soft deadline, embed, then complete or
// fail. An item whose analysis succeeds but whose embedding fails still
// completes, with no vector.
package pipeline
