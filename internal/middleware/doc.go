// Package middleware provides HTTP middleware for the media embedder API.
//
// It includes:
//   - Request logging in W3C Extended Log Format with request IDs
//   - Prometheus request metrics labeled by route template
//   - Gzip compression of HTML and JSON responses
package middleware
