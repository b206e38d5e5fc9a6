package userconfig

// userconfig reads the YAML configuration of a tree key storage, validates
// it and opens the storage it describes. It's the only package that knows
// how backends and storage modes are chosen.
