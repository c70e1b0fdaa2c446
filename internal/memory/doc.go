// Package memory provides GOMEMLIMIT configuration from container limits
// and a heap monitor that pauses analysis work under memory pressure.
package memory
