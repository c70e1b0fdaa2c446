// Package handlers provides HTTP request handlers for the photo album
// AI analysis API.
//
// It includes handlers for:
//   - Queueing single items and batches for analysis
//   - Retrying failed items
//   - Hybrid text and semantic search
//   - Processing status counts
//   - Health checks and build information
package handlers
