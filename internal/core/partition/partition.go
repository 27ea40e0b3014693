package partition

import "hash/fnv"

// For returns the partition in [0, n) for a tenant key.
// Stable and deterministic: the same key always maps to the same partition
// for a given n. Uses FNV-32a.
func For(key string, n int) int {
	if n <= 0 {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(n))
}
