// Package memory keeps the embedder's Go heap inside its container limit.
//
// Go detects cgroup CPU limits for GOMAXPROCS but not memory limits, so
// [ConfigureFromEnv] derives GOMEMLIMIT at startup:
//
//   - GOMEMLIMIT: used as is when set.
//   - MEMORY_LIMIT: container limit in bytes, typically from the Kubernetes
//     Downward API (resources.limits.memory).
//   - MEMORY_RATIO: share of MEMORY_LIMIT for the heap, default 0.75. Frame
//     extraction runs ffmpeg as a child process and libvips allocates
//     outside the Go heap, so both live in the remainder.
//
// [Monitor] samples heap usage, exports media_embedder_memory_* gauges and
// forces a collection when usage crosses the critical ratio.
package memory
