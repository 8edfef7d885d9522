package utils

import "hash/fnv"

// HashStringToUint64 gives a stable hash for deterministic choices keyed on
// input text, such as the mock extractor's synthesized answers.
func HashStringToUint64(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}
