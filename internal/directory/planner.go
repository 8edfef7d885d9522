package directory

import (
	"strings"

	"github.com/contractline/backend/internal/models"
)

// PlanMutation turns a match result plus the accumulated fields into exactly
// one insert-or-update intent for the directory store. It performs no I/O;
// the store executes the intent, and cross-call write races stay the store's
// responsibility.
func PlanMutation(match models.MatchResult, fields models.ExtractedFields, normalizedPhone string, today string) models.MutationIntent {
	if match.Caller == nil {
		return models.MutationIntent{
			Op: models.MutationInsert,
			Record: models.CallerRecord{
				Phone:         normalizedPhone,
				BusinessName:  SanitizeBusinessName(fields.BusinessName),
				ContactEmail:  SanitizeEmail(fields.ContactEmail),
				ContactMethod: SanitizeContactMethod(fields.ContactMethod),
				LicenseNumber: NormalizeLicense(fields.LicenseNumber),
				IsRepeat:      false,
				LastContact:   today,
				CreatedDate:   today,
				CallCount:     1,
			},
			Reason: models.ReasonCreateNewCaller,
		}
	}

	existing := *match.Caller
	record := models.CallerRecord{
		Phone:         normalizedPhone,
		BusinessName:  latest(SanitizeBusinessName(fields.BusinessName), existing.BusinessName),
		ContactEmail:  latest(SanitizeEmail(fields.ContactEmail), existing.ContactEmail),
		ContactMethod: latest(SanitizeContactMethod(fields.ContactMethod), existing.ContactMethod),
		LicenseNumber: latest(NormalizeLicense(fields.LicenseNumber), existing.LicenseNumber),
		IsRepeat:      true,
		LastContact:   today,
		CreatedDate:   existing.CreatedDate,
		CallCount:     existing.CallCount + 1,
	}
	if record.CreatedDate == "" {
		record.CreatedDate = today
	}

	searchKey := normalizedPhone
	reason := models.ReasonIncrementCallCount
	if match.Type == models.MatchBusinessIdentity {
		reason = models.ReasonUpdatePhoneAndIncrement
		// The row still carries the pre-migration phone.
		if match.PreviousPhone != "" {
			searchKey = match.PreviousPhone
		}
	}

	return models.MutationIntent{
		Op:        models.MutationUpdate,
		SearchKey: searchKey,
		Record:    record,
		Reason:    reason,
	}
}

func latest(incoming, existing string) string {
	if incoming != "" {
		return incoming
	}
	return existing
}

// SanitizeBusinessName trims, collapses whitespace and title-cases each word.
func SanitizeBusinessName(name string) string {
	name = spaceRuns.ReplaceAllString(strings.TrimSpace(name), " ")
	if name == "" {
		return ""
	}
	words := strings.Split(name, " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func SanitizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SanitizeContactMethod restricts the preferred contact method to the fixed
// enumeration; anything else is treated as absent, not as an error.
func SanitizeContactMethod(method string) string {
	m := strings.ToLower(strings.TrimSpace(method))
	if m == "sms" || m == "email" {
		return m
	}
	return ""
}
