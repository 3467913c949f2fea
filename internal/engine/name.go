package engine

import (
	"strings"

	"github.com/tartampluch/go-fiscalcode/internal/config"
)

const vowelSet = "AEIOU"

// EncodeName reduces a surname or given name to its 3-letter skeleton.
//
// Consonants come first, then vowels, then 'X' padding. With three or more
// consonants only consonants are used: the first three for a surname, and for
// a given name with four or more consonants the 1st, 3rd and 4th.
// Letters outside A-Z are ignored; a name without letters yields "XXX".
func EncodeName(name string, isGivenName bool) string {
	consonants, vowels := splitLetters(name)

	switch {
	case isGivenName && len(consonants) > config.SkeletonLength:
		return string([]byte{consonants[0], consonants[2], consonants[3]})
	case len(consonants) >= config.SkeletonLength:
		return string(consonants[:config.SkeletonLength])
	}

	skeleton := make([]byte, 0, len(consonants)+len(vowels)+config.SkeletonLength)
	skeleton = append(skeleton, consonants...)
	skeleton = append(skeleton, vowels...)
	for len(skeleton) < config.SkeletonLength {
		skeleton = append(skeleton, config.FillerChar)
	}
	return string(skeleton[:config.SkeletonLength])
}

// splitLetters upper-cases name and partitions its A-Z letters, in order,
// into consonants and vowels.
func splitLetters(name string) (consonants, vowels []byte) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for i := 0; i < len(upper); i++ {
		c := upper[i]
		if c < 'A' || c > 'Z' {
			continue
		}
		if strings.IndexByte(vowelSet, c) >= 0 {
			vowels = append(vowels, c)
		} else {
			consonants = append(consonants, c)
		}
	}
	return consonants, vowels
}
