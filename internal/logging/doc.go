// Package logging provides leveled logging for the album pipeline.
//
// The level is read once from the DEBUG or LOG_LEVEL environment
// variables; the default is info.
package logging
