// Package progress tracks render completion per job.
//
// A Tracker owns the clamping, monotonic and retention rules and delegates
// persistence to a Store. Stores exist for a directory of JSON documents
// (guarded by a file lock, with the legacy single-slot document mirrored for
// older pollers), SQLite, Redis, and process memory. Tracker writes never fail
// the caller: store errors are logged and swallowed, and reads degrade to 0.
package progress
