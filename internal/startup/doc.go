// Package startup handles application configuration and startup logging.
//
// Configuration comes from environment variables with sensible defaults
// for container deployment. The package also owns the structured startup
// banner and section logs, build information injected at link time, and
// the shutdown log helpers used by main.
package startup
