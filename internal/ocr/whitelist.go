package ocr

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Whitelist is the set of characters a recognition pass may emit.
//
// The zero value is unrestricted: the engine's default alphabet applies.
// Characters keep their first-seen order; duplicates are dropped, so two
// whitelists built from differently ordered or repeated input compare equal
// with Equal.
type Whitelist struct {
	chars string
}

// Well-known whitelists.
var (
	// Unrestricted leaves the engine's alphabet untouched.
	Unrestricted = Whitelist{}

	// Alpha admits ASCII letters, A-Za-z.
	Alpha = NewWhitelist("ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz")

	// Numeric admits digits and the separators found in amounts, dates and
	// times: 0-9 . / : % , -
	Numeric = NewWhitelist("0123456789./:%,-")
)

const (
	maxRangeSize = 1024

	// maxPatternChars bounds a pattern's expansion before duplicates are
	// dropped.
	maxPatternChars = 4096
)

// NewWhitelist builds a whitelist from a literal character sequence.
// An empty sequence yields Unrestricted.
func NewWhitelist(chars string) Whitelist {
	seen := make(map[rune]bool, len(chars))
	var b strings.Builder
	for _, r := range chars {
		if seen[r] {
			continue
		}
		seen[r] = true
		b.WriteRune(r)
	}
	return Whitelist{chars: b.String()}
}

// ParseWhitelist builds a whitelist from range syntax such as "A-Za-z" or
// "0-9./:%,-". A hyphen is literal at the start or end of the pattern, or when
// it follows a completed range. Descending ranges are rejected.
func ParseWhitelist(pattern string) (Whitelist, error) {
	runes := []rune(pattern)
	var b strings.Builder
	n := 0
	for i := 0; i < len(runes); i++ {
		lo := runes[i]
		if i+2 < len(runes) && runes[i+1] == '-' {
			hi := runes[i+2]
			if hi < lo {
				return Whitelist{}, fmt.Errorf("invalid range %q-%q in whitelist %q", lo, hi, pattern)
			}
			if hi-lo > maxRangeSize {
				return Whitelist{}, fmt.Errorf("range %q-%q in whitelist %q spans more than %d characters", lo, hi, pattern, maxRangeSize)
			}
			n += int(hi-lo) + 1
			if n > maxPatternChars {
				return Whitelist{}, errPatternTooLong(pattern)
			}
			for r := lo; r <= hi; r++ {
				b.WriteRune(r)
			}
			i += 2
			continue
		}
		n++
		if n > maxPatternChars {
			return Whitelist{}, errPatternTooLong(pattern)
		}
		b.WriteRune(lo)
	}
	return NewWhitelist(b.String()), nil
}

func errPatternTooLong(pattern string) error {
	if len(pattern) > 32 {
		pattern = pattern[:32] + "..."
	}
	return fmt.Errorf("whitelist %q expands to more than %d characters", pattern, maxPatternChars)
}

// String returns the whitelist characters in first-seen order, the form the
// engine expects.
func (w Whitelist) String() string { return w.chars }

// Len returns the number of distinct characters. Zero means unrestricted.
func (w Whitelist) Len() int { return utf8.RuneCountInString(w.chars) }

// IsUnrestricted reports whether the whitelist leaves the alphabet untouched.
func (w Whitelist) IsUnrestricted() bool { return w.chars == "" }

// Allows reports whether r may appear in the output of a pass using w.
func (w Whitelist) Allows(r rune) bool {
	return w.IsUnrestricted() || strings.ContainsRune(w.chars, r)
}

// Equal reports whether both whitelists admit the same set of characters.
func (w Whitelist) Equal(other Whitelist) bool {
	if w.Len() != other.Len() {
		return false
	}
	for _, r := range w.chars {
		if !strings.ContainsRune(other.chars, r) {
			return false
		}
	}
	return true
}
