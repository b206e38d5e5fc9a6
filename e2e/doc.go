package e2e

// e2e contains integration tests and utility code required to set up
// dependencies. Each test writes a YAML configuration, builds a storage from
// it the way the CLI does and drives it against a real backend: an
// in-process Redis server or an on-disk Badger database.
