package keycodec

// keycodec turns integers into compact key suffixes and protects the reserved
// separator characters inside arbitrary key text. Storages use it whenever
// they need to synthesize a literal backend key out of a caller's key, e.g.,
// to append a version number, and to tell synthesized keys apart from the
// base keys callers wrote.
