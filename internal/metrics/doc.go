// Package metrics provides Prometheus instrumentation for the media embedder.
//
// All metrics are prefixed with "media_embedder_" and registered with the
// default registry through promauto. Expose them by mounting
// promhttp.Handler() on the metrics listener.
//
// # Metric Categories
//
//   - HTTP: request counts, durations and in-flight gauge
//   - Database: query counts and durations, open connections, file sizes
//   - Cache: hits and misses per namespace, swallowed storage errors,
//     entries and bytes per namespace version (via [Collector])
//   - Embedding: outcomes, failure reasons, escalations to the large byte
//     budget, title scan results
//   - Fetch: range fetches per budget and status, bytes received, duration
//   - Decode/Thumbnail: decode outcomes, open transient decode resources,
//     thumbnail generation time and halving passes
//
// The embedder's failure reporter writes to these metrics, making the
// Prometheus endpoint the observability sink for failed links.
//
// Example PromQL, thumbnail cache hit rate:
//
//	rate(media_embedder_cache_hits_total{namespace="thumbnail"}[5m]) /
//	(rate(media_embedder_cache_hits_total{namespace="thumbnail"}[5m]) +
//	 rate(media_embedder_cache_misses_total{namespace="thumbnail"}[5m]))
//
// Share of embeds that needed the large budget:
//
//	rate(media_embedder_embed_escalations_total[1h]) /
//	rate(media_embedder_embeds_total{outcome!="cache_hit"}[1h])
package metrics
