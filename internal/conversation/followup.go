package conversation

import (
	"strings"

	"github.com/contractline/backend/internal/extract"
	"github.com/contractline/backend/internal/models"
)

// FollowUp is the selector's decision for one turn: either the single next
// question to ask, or completion with compliance-relevant warnings surfaced
// as a side list (never blocking).
type FollowUp struct {
	HasFollowUp bool            `json:"has_follow_up"`
	Question    string          `json:"question,omitempty"`
	Field       extract.Field   `json:"missing_field,omitempty"`
	Remaining   []extract.Field `json:"remaining_fields,omitempty"`
	IsComplete  bool            `json:"is_complete"`
	Warnings    []string        `json:"compliance_warnings,omitempty"`
}

var fieldQuestions = map[extract.Field]string{
	extract.FieldBusinessName:   "What's the name of your business?",
	extract.FieldProjectType:    "What type of project is this? (e.g., kitchen remodel, bathroom renovation, deck build)",
	extract.FieldProjectAddress: "What's the project address?",
	extract.FieldBudget:         "What's the total budget for this project?",
	extract.FieldPaymentTerms:   "How would you like to structure the payments? (e.g., 50% upfront, 50% on completion)",
	extract.FieldStartDate:      "When would you like to start this project?",
	extract.FieldContactMethod:  "What's the best way to get the contract to you — text or email?",
}

const (
	nextMonthStartDateQuestion = "Should we put the 1st of next month or leave it blank for you to fill in later?"
	urgentStartDateQuestion    = "Would you like to start within the next week, or do you have a specific date in mind?"
)

// NextQuestion picks the single highest-priority question for the missing
// fields, with two transcript-sensitive variants for the start date. A
// missing list of zero signals completion.
func NextQuestion(missing []extract.Field, transcript string, accumulated models.ExtractedFields) FollowUp {
	if len(missing) > 0 {
		field := missing[0]
		question := fieldQuestions[field]
		if field == extract.FieldStartDate {
			lower := strings.ToLower(transcript)
			switch {
			case strings.Contains(lower, "asap") || strings.Contains(lower, "immediately"):
				question = urgentStartDateQuestion
			case strings.Contains(lower, "next month") || strings.Contains(lower, "following month"):
				question = nextMonthStartDateQuestion
			}
		}
		return FollowUp{
			HasFollowUp: true,
			Question:    question,
			Field:       field,
			Remaining:   missing[1:],
		}
	}

	var warnings []string
	if !extract.Known(accumulated, extract.FieldLicenseNumber) && extract.Known(accumulated, extract.FieldBusinessName) {
		warnings = append(warnings, "Missing: GC License Number")
	}
	terms := strings.ToLower(accumulated.PaymentTerms)
	if strings.Contains(terms, "50%") && strings.Contains(terms, "upfront") {
		warnings = append(warnings, "CSLB payment structure may be unclear")
	}

	return FollowUp{IsComplete: true, Warnings: warnings}
}
