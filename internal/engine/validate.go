package engine

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tartampluch/go-fiscalcode/internal/config"
)

// ValidationError describes one rejected field. Key is the translation key
// the UI uses to localise Message.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Key     string `json:"-"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors aggregates the failures of one input.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = e.Error()
	}
	return fmt.Sprintf("%s: %s", config.ErrValidation, strings.Join(parts, "; "))
}

// Is lets errors.Is(err, ErrValidation) match.
func (v ValidationErrors) Is(target error) bool {
	return target == ErrValidation
}

// ValidatePerson enforces the form rules Compose relies on: names present
// and at least 3 characters long, a known sex, a birth date that is set and
// not after now, and a birth city that is one of options.
func ValidatePerson(in PersonInput, options MunicipalityTable, now time.Time) ValidationErrors {
	var errs ValidationErrors

	errs = appendNameErrors(errs, config.FieldSurname, in.Surname)
	errs = appendNameErrors(errs, config.FieldGivenName, in.GivenName)

	if in.Sex == "" {
		errs = append(errs, ValidationError{config.FieldSex, config.ValMsgRequired, config.TKeyErrRequired})
	} else if !in.Sex.Valid() {
		errs = append(errs, ValidationError{config.FieldSex, config.ValMsgSex, config.TKeyErrRequired})
	}

	if in.BirthDate.IsZero() {
		errs = append(errs, ValidationError{config.FieldBirthDate, config.ValMsgRequired, config.TKeyErrRequired})
	} else if dateOnly(in.BirthDate).After(dateOnly(now)) {
		errs = append(errs, ValidationError{config.FieldBirthDate, config.ValMsgFuture, config.TKeyErrDateFuture})
	}

	if strings.TrimSpace(in.BirthCity) == "" {
		errs = append(errs, ValidationError{config.FieldBirthCity, config.ValMsgRequired, config.TKeyErrRequired})
	} else if !options.Contains(in.BirthCity) {
		errs = append(errs, ValidationError{config.FieldBirthCity, config.ValMsgNotOption, config.TKeyErrNotOption})
	}

	return errs
}

func appendNameErrors(errs ValidationErrors, field, value string) ValidationErrors {
	trimmed := strings.TrimSpace(value)
	switch {
	case trimmed == "":
		return append(errs, ValidationError{field, config.ValMsgRequired, config.TKeyErrRequired})
	case utf8.RuneCountInString(trimmed) < config.MinNameLength:
		return append(errs, ValidationError{field, config.ValMsgMinLength, config.TKeyErrMinLength})
	}
	return errs
}

// dateOnly drops the time of day so birth dates compare as calendar days.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
