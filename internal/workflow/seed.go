package workflow

import (
	"math"
	"math/rand/v2"
)

const (
	// MaxSeed is the largest seed the sampler accepts.
	MaxSeed uint64 = math.MaxUint64 - 1
	// MaxPrefixRunes bounds the filename prefix written to the save node.
	MaxPrefixRunes = 100
)

// RandomSeed returns a uniformly distributed seed in [1, MaxSeed].
func RandomSeed() uint64 {
	return rand.Uint64N(MaxSeed) + 1
}

// TruncatePrefix limits s to MaxPrefixRunes characters.
func TruncatePrefix(s string) string {
	runes := []rune(s)
	if len(runes) <= MaxPrefixRunes {
		return s
	}
	return string(runes[:MaxPrefixRunes])
}
