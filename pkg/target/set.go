package target

import "github.com/willf/bloom"

// minCapacity keeps the filter sensibly sized for tiny watch lists.
const minCapacity = 1024

// Set is the two-tier matcher the scan hot path queries: a Bloom filter
// probe first, and on a positive, confirmation against the SQLite store.
// A Set is built once per scan; the filter is read-only afterwards and
// safe for concurrent Test calls.
type Set struct {
	filter *bloom.BloomFilter
	store  *Store
	count  int64
}

// NewSet snapshots the store into a Bloom filter sized for the requested
// false positive rate.
func NewSet(store *Store, fpRate float64) (*Set, error) {
	count, err := store.Count()
	if err != nil {
		return nil, err
	}
	capacity := uint(count)
	if capacity < minCapacity {
		capacity = minCapacity
	}
	filter := bloom.NewWithEstimates(capacity, fpRate)
	err = store.Addresses(func(addr string) error {
		filter.Add([]byte(addr))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Set{filter: filter, store: store, count: count}, nil
}

// Contains reports whether the address is on the watch list. The filter
// answers definite negatives without touching the database; positives are
// confirmed, so the result carries no false positives.
func (s *Set) Contains(address string) (bool, error) {
	if !s.filter.Test([]byte(address)) {
		return false, nil
	}
	return s.store.Exists(address)
}

// MayContain is the probe-only fast path, used where a later confirm pass
// is acceptable. It can report false positives, never false negatives.
func (s *Set) MayContain(address string) bool {
	return s.filter.Test([]byte(address))
}

// Len is the watch list size at snapshot time.
func (s *Set) Len() int64 {
	return s.count
}
