package cursor

import "iter"

// PageSize is the COUNT hint sent with every scan request.
const PageSize int64 = 1000

// PageFunc fetches the page starting at cursor. A zero next cursor marks the
// last page.
type PageFunc[T any] func(cursor uint64) (items []T, next uint64, err error)

// Depaginate walks every page returned by fetch, starting at cursor 0.
//
// An empty page doesn't end the sequence: backends may return one with a
// non-terminal cursor while the keyspace is being mutated, so only the
// terminal cursor stops paging. A fetch error is yielded once and ends the
// sequence.
func Depaginate[T any](fetch PageFunc[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var cur uint64
		for {
			items, next, err := fetch(cur)
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			for _, item := range items {
				if !yield(item, nil) {
					return
				}
			}
			if next == 0 {
				return
			}
			cur = next
		}
	}
}

// Collect drains seq into a slice, stopping at the first error.
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	var out []T
	for item, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, item)
	}
	return out, nil
}
