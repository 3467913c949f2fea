package engine

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/tartampluch/go-fiscalcode/internal/config"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalizer prepares a raw name for EncodeName. It returns only A-Z letters
// or an error wrapping ErrOutOfDomain.
type Normalizer func(name string) (string, error)

// TransliterateNormalizer is the default policy: accents are removed
// ("Niccolò" -> "NICCOLO") and anything that is still not A-Z, such as
// spaces, apostrophes, hyphens and digits, is dropped. It never fails.
func TransliterateNormalizer(name string) (string, error) {
	// transform.Chain is stateful, so each call builds its own.
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, name)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrOutOfDomain, err)
	}

	var b strings.Builder
	for _, r := range strings.ToUpper(stripped) {
		if r >= 'A' && r <= 'Z' {
			b.WriteRune(r)
		}
	}
	return b.String(), nil
}

// StrictNormalizer upper-cases the name and removes spaces; any other rune
// outside A-Z is rejected.
func StrictNormalizer(name string) (string, error) {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(name)) {
		switch {
		case r == ' ':
			continue
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		default:
			return "", fmt.Errorf("%w: %q in %q", ErrOutOfDomain, r, name)
		}
	}
	return b.String(), nil
}

// NormalizerByName maps a configuration value to a Normalizer.
// The empty string selects config.DefaultNormalize.
func NormalizerByName(mode string) (Normalizer, error) {
	switch mode {
	case "", config.NormalizeTransliterate:
		return TransliterateNormalizer, nil
	case config.NormalizeStrict:
		return StrictNormalizer, nil
	}
	return nil, fmt.Errorf("%s: %q", config.ErrUnknownNormalize, mode)
}
