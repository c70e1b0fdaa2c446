// Package workers provides worker pool sizing for the analysis pipeline
// based on available CPU resources and container limits.
package workers
