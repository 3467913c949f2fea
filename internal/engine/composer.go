package engine

import (
	"fmt"

	"github.com/tartampluch/go-fiscalcode/internal/config"
)

// Composer assembles fiscal codes. It holds no mutable state and is safe
// for concurrent use.
type Composer struct {
	// Normalize runs on surname and given name before encoding.
	// Nil means TransliterateNormalizer.
	Normalize Normalizer
}

// NewComposer returns a Composer using the named normalisation mode.
func NewComposer(mode string) (*Composer, error) {
	n, err := NormalizerByName(mode)
	if err != nil {
		return nil, err
	}
	return &Composer{Normalize: n}, nil
}

var defaultComposer = &Composer{}

// Compose computes the fiscal code with the default normalisation.
func Compose(in PersonInput, table MunicipalityTable) (string, error) {
	return defaultComposer.Compose(in, table)
}

// Compose computes the 16-character fiscal code of in, resolving the birth
// city in table. The input is assumed to have passed ValidatePerson.
func (c *Composer) Compose(in PersonInput, table MunicipalityTable) (string, error) {
	body, err := c.Body(in, table)
	if err != nil {
		return "", err
	}
	check, err := CheckChar(body)
	if err != nil {
		return "", err
	}
	return body + string(check), nil
}

// Body builds the 15-character body: surname skeleton, given-name skeleton,
// date/sex token and municipality short code, in that order.
func (c *Composer) Body(in PersonInput, table MunicipalityTable) (string, error) {
	normalize := c.Normalize
	if normalize == nil {
		normalize = TransliterateNormalizer
	}

	surname, err := normalize(in.Surname)
	if err != nil {
		return "", fmt.Errorf("%s: %w", config.FieldSurname, err)
	}
	givenName, err := normalize(in.GivenName)
	if err != nil {
		return "", fmt.Errorf("%s: %w", config.FieldGivenName, err)
	}
	if !in.Sex.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidSex, in.Sex)
	}

	surnameSkeleton := EncodeName(surname, false)
	givenSkeleton := EncodeName(givenName, true)
	dateSex := EncodeDateSex(in.BirthDate, in.Sex)

	code, ok := ResolveCity(in.BirthCity, table)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrCityNotFound, in.BirthCity)
	}
	if err := checkCityCode(code); err != nil {
		return "", err
	}

	return surnameSkeleton + givenSkeleton + dateSex + code, nil
}

// checkCityCode guards the check-digit step against malformed reference data.
func checkCityCode(code string) error {
	if len(code) != config.CityCodeLength {
		return fmt.Errorf("%w: %q", ErrInvalidCityCode, code)
	}
	for i := 0; i < len(code); i++ {
		if _, ok := symbolIndex(code[i]); !ok {
			return fmt.Errorf("%w: %q in city code %q", ErrOutOfDomain, code[i], code)
		}
	}
	return nil
}
