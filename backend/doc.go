package backend

// backend contains the Backend interface, the minimal command set every
// storage strategy consumes from a key/value system, along with an
// implementation for Redis and one for BadgerDB. Note that the backend
// package isn't concerned with how keys are laid out by the storages, and
// deals only in literal keys and opaque binary values.
