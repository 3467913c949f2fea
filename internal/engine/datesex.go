package engine

import (
	"fmt"
	"time"

	"github.com/tartampluch/go-fiscalcode/internal/config"
)

// EncodeDateSex builds the 5-character token: two-digit year, month letter,
// two-digit day (plus 40 for women). The caller guarantees a valid date.
func EncodeDateSex(date time.Time, sex Sex) string {
	day := date.Day()
	if sex == SexFemale {
		day += config.FemaleDayOffset
	}
	return fmt.Sprintf(config.FormatDateSex, date.Year()%100, MonthLetter(date.Month()), day)
}

// MonthLetter returns the letter assigned to a calendar month.
// F, G, I, N, O and Q are never used.
func MonthLetter(m time.Month) byte {
	return config.MonthLetters[m-time.January]
}
