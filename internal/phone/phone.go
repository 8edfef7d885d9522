package phone

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidPhone is returned when a raw phone string cannot be canonicalized
// to E.164. Surfaced as code INVALID_PHONE_NUMBER at the API boundary.
var ErrInvalidPhone = errors.New("phone number format is invalid")

var (
	e164Pattern = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)
	nonDialable = regexp.MustCompile(`[^\d+]`)
)

// Normalize canonicalizes a raw phone string to E.164. Ten-digit numbers are
// assumed US and prefixed +1; eleven digits starting with 1 get a +. The
// result is idempotent: normalizing an E.164 string returns it unchanged.
func Normalize(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", ErrInvalidPhone
	}

	normalized := nonDialable.ReplaceAllString(raw, "")
	if !strings.HasPrefix(normalized, "+") {
		switch {
		case len(normalized) == 10:
			normalized = "+1" + normalized
		case len(normalized) == 11 && strings.HasPrefix(normalized, "1"):
			normalized = "+" + normalized
		}
	}

	if !e164Pattern.MatchString(normalized) {
		return "", ErrInvalidPhone
	}
	return normalized, nil
}

// Variants returns the stored-format spellings a directory may hold for one
// E.164 identity: with and without the +1 country prefix, with and without
// the leading +. Used by Tier 1 matching and candidate lookup.
func Variants(e164 string) []string {
	bare := strings.TrimPrefix(e164, "+1")
	noPlus := strings.TrimPrefix(e164, "+")

	seen := map[string]bool{}
	out := make([]string, 0, 4)
	for _, v := range []string{e164, bare, "+1" + bare, noPlus, "+" + noPlus} {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
