// Package embedder runs the per-link embedding pipeline.
//
// For each candidate link the [Embedder] walks a small state machine:
//
//	Idle → CacheCheck → CacheHit → Apply → Done
//	                  → CacheMiss → Fetching(small) → Decoding
//	                        → Thumbnailing → Apply → CachePersist → Done
//	                        → Fetching(large) → Decoding → ...
//	                  → Failed
//
// A decode failure on the small prefix escalates exactly once to the large
// budget. An HTTP status failure is terminal on either fetch, as is a raster
// failure. Container titles are scanned concurrently with frame decoding.
// Cache writes that fail are reported and otherwise ignored.
//
// [Embedder.Run] consumes watcher events and starts one goroutine per link
// with no concurrency limit.
package embedder
