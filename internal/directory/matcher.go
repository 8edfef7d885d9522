package directory

import (
	"regexp"
	"strings"

	"github.com/contractline/backend/internal/models"
	"github.com/contractline/backend/internal/phone"
)

// Signals are the secondary identity signals available this turn. Tier 2
// matching needs at least two of the three.
type Signals struct {
	BusinessName  string
	LicenseNumber string
	ContactEmail  string
}

// Count reports how many identity signals are present this turn.
func (s Signals) Count() int {
	n := 0
	if strings.TrimSpace(s.BusinessName) != "" {
		n++
	}
	if strings.TrimSpace(s.LicenseNumber) != "" {
		n++
	}
	if strings.TrimSpace(s.ContactEmail) != "" {
		n++
	}
	return n
}

// FromFields lifts the matcher's secondary signals out of an extracted-field
// snapshot.
func FromFields(f models.ExtractedFields) Signals {
	return Signals{
		BusinessName:  f.BusinessName,
		LicenseNumber: f.LicenseNumber,
		ContactEmail:  f.ContactEmail,
	}
}

const (
	tier2MinConfidence = 0.8
	tier2MinScore      = 2.0
)

// Match identifies a caller among candidate directory snapshots. Tier 1 is
// an exact phone match across stored-format variants, confidence 1.0, and
// always wins. Tier 2 triangulates business name, license number and contact
// email, requires score >= 2 with confidence >= 0.8, migrates the stored
// phone onto the new identity, and reports confidence 0.9. Anything else is
// no_match, which triggers new-caller creation downstream.
func Match(normalizedPhone string, signals Signals, candidates []models.CallerRecord) models.MatchResult {
	if normalizedPhone != "" {
		variants := phone.Variants(normalizedPhone)
		for i := range candidates {
			if matchesVariant(candidates[i].Phone, variants) {
				matched := candidates[i]
				return models.MatchResult{
					Type:        models.MatchPhoneExact,
					Confidence:  1.0,
					Caller:      &matched,
					IsReturning: true,
				}
			}
		}
	}

	if signals.Count() >= 2 {
		if idx, ok := bestIdentityMatch(signals, candidates); ok {
			matched := candidates[idx]
			prev := matched.Phone
			if normalizedPhone != "" {
				matched.Phone = normalizedPhone
			}
			return models.MatchResult{
				Type:          models.MatchBusinessIdentity,
				Confidence:    0.9,
				Caller:        &matched,
				PreviousPhone: prev,
				IsReturning:   true,
			}
		}
	}

	return models.MatchResult{Type: models.MatchNone}
}

func matchesVariant(stored string, variants []string) bool {
	stored = strings.TrimSpace(stored)
	if stored == "" {
		return false
	}
	for _, v := range variants {
		if stored == v {
			return true
		}
	}
	return false
}

// bestIdentityMatch scores every candidate and keeps the first one with the
// strictly highest qualifying score. Equal scores resolve to input order,
// which preserves the historical first-in-list behavior.
func bestIdentityMatch(signals Signals, candidates []models.CallerRecord) (int, bool) {
	bestIdx := -1
	bestScore := 0.0
	for i := range candidates {
		score, comparable := identityScore(signals, candidates[i])
		if comparable == 0 {
			continue
		}
		confidence := score / float64(comparable)
		if confidence < tier2MinConfidence || score < tier2MinScore {
			continue
		}
		if bestIdx == -1 || score > bestScore {
			bestIdx = i
			bestScore = score
		}
	}
	return bestIdx, bestIdx >= 0
}

// identityScore returns the raw match score and the number of signals that
// were comparable (present on both sides).
func identityScore(signals Signals, rec models.CallerRecord) (float64, int) {
	score := 0.0
	comparable := 0

	if signals.BusinessName != "" && rec.BusinessName != "" {
		comparable++
		in := NormalizeBusinessName(signals.BusinessName)
		stored := NormalizeBusinessName(rec.BusinessName)
		switch {
		case in == stored:
			score += 1.0
		case strings.Contains(in, stored) || strings.Contains(stored, in):
			score += 0.8
		}
	}

	if signals.LicenseNumber != "" && rec.LicenseNumber != "" {
		comparable++
		if NormalizeLicense(signals.LicenseNumber) == NormalizeLicense(rec.LicenseNumber) {
			score += 1.0
		}
	}

	if signals.ContactEmail != "" && rec.ContactEmail != "" {
		comparable++
		in := strings.ToLower(strings.TrimSpace(signals.ContactEmail))
		stored := strings.ToLower(strings.TrimSpace(rec.ContactEmail))
		if in == stored {
			score += 1.0
		}
	}

	return score, comparable
}

var (
	businessPunct = regexp.MustCompile(`[^a-z0-9_\s]`)
	spaceRuns     = regexp.MustCompile(`\s+`)
	nonAlnum      = regexp.MustCompile(`[^A-Za-z0-9]`)
)

// NormalizeBusinessName lower-cases, strips punctuation and collapses
// whitespace so "ABC Construction, Inc." equals "abc construction inc".
func NormalizeBusinessName(name string) string {
	n := strings.ToLower(name)
	n = businessPunct.ReplaceAllString(n, "")
	n = spaceRuns.ReplaceAllString(n, " ")
	return strings.TrimSpace(n)
}

// NormalizeLicense strips non-alphanumerics and upper-cases.
func NormalizeLicense(license string) string {
	return strings.ToUpper(nonAlnum.ReplaceAllString(license, ""))
}
