// Package level normalizes the stage tokens stored on users and courses.
//
// Two encodings circulate in the data: "3-bosqich" and "level_3". All
// comparisons go through Ordinal; raw tokens are never compared as strings.
package level

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxStage is the highest stage the course catalog covers.
const MaxStage = 7

// Ordinal parses a stage token into its numeric rank.
// Accepts "N-bosqich", "level_N" and bare numeric-prefixed strings.
// Unparseable or empty input yields 0, never an error.
func Ordinal(token string) int {
	s := strings.TrimSpace(strings.ToLower(token))
	if s == "" {
		return 0
	}

	if rest, ok := strings.CutPrefix(s, "level_"); ok {
		s = rest
	} else if base, ok := strings.CutSuffix(s, "-bosqich"); ok {
		s = base
	}

	// Tolerate trailing junk after the number ("3-bosqich (eski)").
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}

	n, err := strconv.Atoi(s[:end])
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// Token renders an ordinal in the canonical "N-bosqich" form.
func Token(n int) string {
	if n < 0 {
		n = 0
	}
	return fmt.Sprintf("%d-bosqich", n)
}

// Next returns the canonical token one stage above the given one.
func Next(token string) string {
	return Token(Ordinal(token) + 1)
}

// Compare orders two tokens by ordinal: -1, 0 or 1.
func Compare(a, b string) int {
	oa, ob := Ordinal(a), Ordinal(b)
	switch {
	case oa < ob:
		return -1
	case oa > ob:
		return 1
	default:
		return 0
	}
}
