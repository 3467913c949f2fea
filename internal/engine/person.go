package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/tartampluch/go-fiscalcode/internal/config"
)

// Sex is the registry sex used by the date/sex token.
type Sex string

const (
	SexMale   Sex = config.SexMale
	SexFemale Sex = config.SexFemale
)

// Valid reports whether s is one of the two supported values.
func (s Sex) Valid() bool {
	return s == SexMale || s == SexFemale
}

// ParseSex accepts "male"/"female" and the vCard GENDER letters "M"/"F",
// case-insensitively.
func ParseSex(value string) (Sex, error) {
	v := strings.TrimSpace(value)
	switch {
	case strings.EqualFold(v, config.SexMale), strings.EqualFold(v, config.SexMaleShort):
		return SexMale, nil
	case strings.EqualFold(v, config.SexFemale), strings.EqualFold(v, config.SexFemaleShort):
		return SexFemale, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSex, value)
}

// PersonInput carries the raw data a fiscal code is computed from.
// BirthCity is a municipality display name, e.g. "Roma (RM)".
type PersonInput struct {
	Surname   string    `json:"surname"`
	GivenName string    `json:"given_name"`
	Sex       Sex       `json:"sex"`
	BirthDate time.Time `json:"birth_date"`
	BirthCity string    `json:"birth_city"`
}
