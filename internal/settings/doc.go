// Package settings owns the persisted settings record shared by the daemon and
// foreground contexts.
//
// Store keeps one JSON value per top-level key in SQLite. Defaults are
// materialized at first install so reads are plain lookups; absent keys still
// resolve to their default. Set replaces a whole key (callers needing partial
// updates read-modify-write) and fans a Change carrying the old and new value
// out to every subscriber, including the writer, which filters by origin.
//
// Cache is the foreground half: a read-through copy filled over the transport
// and invalidated by change notifications from other origins.
package settings
