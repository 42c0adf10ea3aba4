// Package filesystem wraps the file operations embedctl performs on input
// and output documents with retries for stale NFS file handles.
//
// Only ESTALE is retried; every other error is returned immediately.
// Backoff starts at InitialBackoff and doubles up to MaxBackoff.
//
//	f, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())
//
// Outputs are written with WriteFileAtomic, which renames a temporary file
// into place.
//
// Metrics are recorded under media_embedder_filesystem_*, labeled by
// operation ("open", "stat", "write").
package filesystem
