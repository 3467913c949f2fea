package engine

import (
	"fmt"

	"github.com/tartampluch/go-fiscalcode/internal/config"
)

// alphabet is the 36-symbol domain both conversion tables are keyed by.
const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// oddTable holds the values for characters at odd (1st, 3rd, ...) positions.
var oddTable = [len(alphabet)]int{
	1, 0, 5, 7, 9, 13, 15, 17, 19, 21, // 0-9
	1, 0, 5, 7, 9, 13, 15, 17, 19, 21, // A-J
	2, 4, 18, 20, 11, 3, 6, 8, 12, 14, // K-T
	16, 10, 22, 25, 24, 23, // U-Z
}

// evenTable holds the values for characters at even positions: digits map
// to themselves, letters to their 0-indexed alphabet position.
var evenTable = [len(alphabet)]int{
	0, 1, 2, 3, 4, 5, 6, 7, 8, 9, // 0-9
	0, 1, 2, 3, 4, 5, 6, 7, 8, 9, // A-J
	10, 11, 12, 13, 14, 15, 16, 17, 18, 19, // K-T
	20, 21, 22, 23, 24, 25, // U-Z
}

// symbolIndex maps a symbol of the alphabet to its table index.
func symbolIndex(c byte) (int, bool) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), true
	case c >= 'A' && c <= 'Z':
		return int(c-'A') + 10, true
	}
	return 0, false
}

// OddValue returns the odd-position table value of c.
func OddValue(c byte) (int, bool) {
	i, ok := symbolIndex(c)
	if !ok {
		return 0, false
	}
	return oddTable[i], true
}

// EvenValue returns the even-position table value of c.
func EvenValue(c byte) (int, bool) {
	i, ok := symbolIndex(c)
	if !ok {
		return 0, false
	}
	return evenTable[i], true
}

// CheckChar computes the check character of a 15-character body.
//
// Positions are 1-indexed: the 1st, 3rd, ... characters are summed with the
// odd table and the 2nd, 4th, ... with the even table. The total mod 26
// selects a letter A-Z.
func CheckChar(body string) (byte, error) {
	if len(body) != config.BodyLength {
		return 0, fmt.Errorf("%w: got %d", ErrBodyLength, len(body))
	}

	odds, evens := partitionByPosition(body)

	oddSum, err := sumWith(odds, OddValue)
	if err != nil {
		return 0, err
	}
	evenSum, err := sumWith(evens, EvenValue)
	if err != nil {
		return 0, err
	}
	return byte('A' + (oddSum+evenSum)%config.CheckModulus), nil
}

// partitionByPosition splits s by 1-indexed position parity, keeping order.
func partitionByPosition(s string) (odds, evens []byte) {
	for i := 0; i < len(s); i++ {
		if (i+1)%2 == 0 {
			evens = append(evens, s[i])
		} else {
			odds = append(odds, s[i])
		}
	}
	return odds, evens
}

func sumWith(group []byte, value func(byte) (int, bool)) (int, error) {
	sum := 0
	for _, c := range group {
		v, ok := value(c)
		if !ok {
			return 0, fmt.Errorf("%w: %q", ErrOutOfDomain, c)
		}
		sum += v
	}
	return sum, nil
}
