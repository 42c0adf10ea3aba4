// Package logging provides a simple leveled logging interface for the
// media embedder.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information (per-link pipeline steps)
//   - INFO: General operational messages
//   - WARN: Warning conditions (cache write failures, degraded features)
//   - ERROR: Error conditions (failed embeddings)
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the DEBUG or LOG_LEVEL environment
// variables, or explicitly with [SetLevel] (used by the CLI's --verbose).
package logging
