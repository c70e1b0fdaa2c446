// Package middleware provides HTTP middleware for the API server.
//
// It includes:
//   - Request logging in W3C Extended Log Format
//   - Response compression (gzip)
//   - Prometheus request metrics
//   - Configurable filtering for health check endpoints
package middleware
