// Package naming computes collision-free archive filenames. A filename is
// {name}[_{flavour}]_{YYYY-MM}[{suffix}].zim where the suffix is a base-26
// alphabetic counter ("" -> "a" -> ... -> "z" -> "aa" -> "ab" ...).
package naming

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Ext is the archive file extension.
const Ext = ".zim"

// ErrInvalidInput flags a missing or malformed date.
var ErrInvalidInput = errors.New("invalid input")

// BasePattern builds the filename prefix for a (name, flavour, period)
// triple. The date must parse to at least a YYYY-MM period.
func BasePattern(name, flavour, date string) (string, error) {
	period, err := Period(date)
	if err != nil {
		return "", err
	}
	if flavour != "" {
		return fmt.Sprintf("%s_%s_%s", name, flavour, period), nil
	}
	return fmt.Sprintf("%s_%s", name, period), nil
}

// Period validates the date and returns its YYYY-MM part.
func Period(date string) (string, error) {
	if date == "" {
		return "", fmt.Errorf("%w: date is missing", ErrInvalidInput)
	}
	for _, layout := range []string{"2006-01-02", "2006-01"} {
		if _, err := time.Parse(layout, date); err == nil {
			return date[:7], nil
		}
	}
	return "", fmt.Errorf("%w: date %q is not an ISO period", ErrInvalidInput, date)
}

// SuffixOf extracts the counter suffix from a filename sharing the given base
// pattern. The second return is false when the filename does not belong to
// the pattern (wrong prefix, wrong extension, or a non-alphabetic suffix).
func SuffixOf(filename, base string) (string, bool) {
	if !strings.HasPrefix(filename, base) || !strings.HasSuffix(filename, Ext) {
		return "", false
	}
	suffix := strings.TrimSuffix(strings.TrimPrefix(filename, base), Ext)
	for _, r := range suffix {
		if r < 'a' || r > 'z' {
			return "", false
		}
	}
	return suffix, true
}

// Less orders suffixes by (length, lexicographic), the counter's natural
// order: "" < "a" < "z" < "aa".
func Less(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

// Next increments a suffix: rightmost letter first, carrying left, prepending
// "a" on full carry-out.
func Next(suffix string) string {
	b := []byte(suffix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 'z' {
			b[i]++
			return string(b)
		}
		b[i] = 'a'
	}
	return "a" + string(b)
}

// Allocate returns a filename under the base pattern that is not present in
// existing. It extends the highest known suffix and never reuses one freed by
// a deleted location, so gaps stay gaps.
func Allocate(name, flavour, date string, existing []string) (string, error) {
	base, err := BasePattern(name, flavour, date)
	if err != nil {
		return "", err
	}
	highest, found := "", false
	for _, fn := range existing {
		suffix, ok := SuffixOf(fn, base)
		if !ok {
			continue
		}
		if !found || Less(highest, suffix) {
			highest, found = suffix, true
		}
	}
	if !found {
		return base + Ext, nil
	}
	return base + Next(highest) + Ext, nil
}
