package storage

import "time"

// ActiveIndex returns which of n shards is active at now, given rotation
// windows of length window starting at base. Times before base count
// backwards, so the result is always within [0, n). It returns -1 when n or
// window isn't positive.
func ActiveIndex(now, base time.Time, window time.Duration, n int) int {
	if n <= 0 || window <= 0 {
		return -1
	}
	elapsed := now.Sub(base)
	slot := int64(elapsed / window)
	if elapsed%window < 0 {
		slot--
	}
	i := int(slot % int64(n))
	if i < 0 {
		i += n
	}
	return i
}
