package fault

import (
	"strconv"
)

// Corrupt perturbs an integer value by +1..3 or -1..2, never below zero. An
// empty value becomes "0"; anything else that is not an integer is returned
// unchanged.
func Corrupt(src Source, value string) string {
	if value == "" {
		return "0"
	}

	n, err := strconv.Atoi(value)
	if err != nil {
		return value
	}

	if src.IntN(2) == 0 {
		n += src.IntN(3) + 1
	} else {
		n -= src.IntN(2) + 1
		if n < 0 {
			n = 0
		}
	}

	return strconv.Itoa(n)
}
