// Package handlers provides the HTTP API of the media embedder.
//
// It includes handlers for:
//   - Rewriting posted HTML so allowed video links become inline players
//   - Reading cached thumbnails and titles by source URL
//   - Reading and updating the shared playback volume
//   - Health, readiness and version probes
//
// [Handlers.Routes] registers every endpoint on a gorilla/mux router.
package handlers
