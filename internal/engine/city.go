package engine

import (
	"fmt"
	"strings"

	"github.com/tartampluch/go-fiscalcode/internal/config"
)

// MunicipalityEntry pairs a display name ("Roma (RM)") with the municipality
// short code ("H501").
type MunicipalityEntry struct {
	DisplayName string `json:"display_name"`
	ShortCode   string `json:"short_code"`
}

// MunicipalityTable is the ordered, read-only lookup table built from the
// reference lists. Display names are expected to be unique.
type MunicipalityTable []MunicipalityEntry

// DisplayName formats the label used for lookup and autocomplete.
func DisplayName(municipality, provinceAbbreviation string) string {
	return fmt.Sprintf(config.FormatCityLabel, municipality, provinceAbbreviation)
}

// ResolveCity returns the short code of the first entry whose display name
// equals displayName exactly (case-sensitive).
func ResolveCity(displayName string, table MunicipalityTable) (string, bool) {
	for _, e := range table {
		if e.DisplayName == displayName {
			return e.ShortCode, true
		}
	}
	return "", false
}

// Contains reports whether displayName is one of the table's options.
func (t MunicipalityTable) Contains(displayName string) bool {
	_, ok := ResolveCity(displayName, t)
	return ok
}

// FilterOptions returns up to limit display names containing query,
// compared case-insensitively, in table order. A non-positive limit falls
// back to config.DefaultOptionsLimit.
func FilterOptions(table MunicipalityTable, query string, limit int) []string {
	if limit <= 0 {
		limit = config.DefaultOptionsLimit
	}
	needle := strings.ToLower(query)
	options := make([]string, 0, limit)
	for _, e := range table {
		if !strings.Contains(strings.ToLower(e.DisplayName), needle) {
			continue
		}
		options = append(options, e.DisplayName)
		if len(options) == limit {
			break
		}
	}
	return options
}
