package backend

// Endpoint is a group of logical databases served by one Redis server.
type Endpoint struct {
	Host string
	Port int
	DBs  []int
}

// DialPool expands every endpoint into one backend per database, keeping
// the order of endpoints and of databases within each endpoint.
func DialPool(endpoints []Endpoint) []Backend {
	var pool []Backend
	for _, e := range endpoints {
		for _, db := range e.DBs {
			pool = append(pool, DialRedis(e.Host, e.Port, db))
		}
	}
	return pool
}

// CloseAll closes every backend, returning the first error met.
func CloseAll(backends ...Backend) error {
	var first error
	for _, b := range backends {
		if b == nil {
			continue
		}
		if err := b.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
