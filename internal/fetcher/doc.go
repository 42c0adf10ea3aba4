// Package fetcher downloads a bounded prefix of a remote media file with a
// single ranged GET.
//
// A fetch either returns a [Chunk] of at most the requested budget, or one of
// two typed errors:
//
//   - [*TransportError] when the server answered with a non-2xx status
//   - [*NetworkError] when no response was received at all
//
// A body that ends early or fails mid-read is not an error; the bytes that
// did arrive are returned with Chunk.Truncated set. Deciding whether to retry
// with a larger budget is left to the caller.
package fetcher
