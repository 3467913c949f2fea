package ui

import (
	"unicode/utf8"

	"fyne.io/fyne/v2/driver/mobile"
	"fyne.io/fyne/v2/widget"
)

// NumericalEntry is an Entry that only accepts typed digits, up to
// MaxDigits of them when MaxDigits is positive.
type NumericalEntry struct {
	widget.Entry

	MaxDigits int
}

// NewNumericalEntry creates an unbounded NumericalEntry.
func NewNumericalEntry() *NumericalEntry {
	entry := &NumericalEntry{}
	entry.ExtendBaseWidget(entry)
	return entry
}

// NewPortEntry creates a NumericalEntry sized for a TCP port.
func NewPortEntry(maxDigits int) *NumericalEntry {
	entry := NewNumericalEntry()
	entry.MaxDigits = maxDigits
	return entry
}

// TypedRune drops non-digits and digits beyond MaxDigits.
// Pasted text bypasses this filter; Validator covers that case.
func (e *NumericalEntry) TypedRune(r rune) {
	if r < '0' || r > '9' {
		return
	}
	if e.MaxDigits > 0 && utf8.RuneCountInString(e.Text) >= e.MaxDigits {
		return
	}
	e.Entry.TypedRune(r)
}

// Keyboard shows the numeric keypad on mobile devices.
func (e *NumericalEntry) Keyboard() mobile.KeyboardType {
	return mobile.NumberKeyboard
}
