package storage

// storage maps the keys of a tree-shaped cache onto a flat key/value backend.
// It contains the Storage interface consumed by the cache layer, along with
// three strategies implementing it: Simple, InsertOnly (versioned history)
// and TimedRoundRobin (time-windowed shard rotation). Note that the storage
// package doesn't open connections: callers hand it ready backend.Backend
// values, e.g., built by the userconfig package.
