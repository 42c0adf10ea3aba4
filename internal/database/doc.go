// Package database provides the versioned key/value cache used by the
// media embedder.
//
// Three namespaces are stored:
//   - thumbnail: encoded poster images keyed by source URL
//   - title: container titles keyed by source URL
//   - volume: the single global playback volume
//
// Each namespace carries a version that is embedded in the physical key
// ("thumbnail@3:https://..."). Bumping a version orphans every entry written
// under the previous one without deleting it; there is no eviction.
//
// [Database] persists entries in SQLite (WAL mode) and is created lazily by
// [New] on first use. [MemoryStore] implements the same [Store] contract in
// process memory for tests and cache-less runs.
package database
