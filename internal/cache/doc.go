// Package cache remembers hook runs that passed on an exact set of inputs so
// they are not repeated.
//
// # Keys
//
// A key is the SHA-256 of the plugin, hook, evaluation directory, command
// and the content hash of every input file, encoded with length prefixes and
// with files sorted by path. Input order never changes the key and distinct
// inputs never share one. A deleted input file hashes to a fixed marker, so
// deleting a file invalidates the entry like editing it does.
//
// # Storage
//
// Entries live one file per key under
//
//	<state_dir>/cache/<project-key>/<key>.json
//
// and are written atomically. A missing or corrupt entry is a miss. Only
// passing runs are stored; recording a failure deletes the entry.
//
// # Attempts
//
// Consecutive failures are counted per hook and directory in attempts.json,
// guarded by a file lock because parallel hooks and concurrent sessions
// update it. The engine stops blocking on a hook once it has failed
// max_attempts times in a row.
package cache
