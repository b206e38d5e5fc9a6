package janitor

// janitor runs a storage's garbage collection on a schedule. Redis expires
// keys on its own, but the embedded backend only drops expired and
// superseded entries from disk when its value log is collected.
