package extract

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/contractline/backend/internal/models"
	"github.com/contractline/backend/internal/utils"
)

// MockExtractor is a deterministic transcript scanner for dev and tests. It
// picks out the obvious surface signals (dollar amounts, project keywords,
// contact method) and leaves the rest absent, which exercises the follow-up
// path without a live model.
type MockExtractor struct {
	ModelVersion string
}

var (
	budgetPattern  = regexp.MustCompile(`\$[\d,]+(?:\.\d{2})?`)
	licensePattern = regexp.MustCompile(`\b[A-Z]\d{8}\b`)
	addressPattern = regexp.MustCompile(`(?i)\b(?:at|on)\s+(\d+\s+[A-Za-z0-9 .]+?(?:street|st|avenue|ave|road|rd|drive|dr|lane|ln|boulevard|blvd|way))\b`)
	fromPattern    = regexp.MustCompile(`(?i)\bfrom\s+([A-Z][A-Za-z0-9&' ]{1,40}?)(?:\.|,|$)`)
	splitPattern   = regexp.MustCompile(`(?i)\d+%\s*(?:upfront|up front|down|on completion)`)
)

var projectTypes = []string{
	"kitchen remodel", "bathroom renovation", "bathroom remodel",
	"deck build", "roof replacement", "addition", "remodel", "renovation",
}

func (m MockExtractor) ExtractFields(ctx context.Context, transcript string) (models.ExtractedFields, int64, error) {
	start := time.Now()
	lower := strings.ToLower(transcript)
	fields := models.ExtractedFields{}

	if match := fromPattern.FindStringSubmatch(transcript); match != nil {
		fields.BusinessName = strings.TrimSpace(match[1])
	}
	for _, pt := range projectTypes {
		if strings.Contains(lower, pt) {
			fields.ProjectType = pt
			break
		}
	}
	if match := addressPattern.FindStringSubmatch(transcript); match != nil {
		fields.ProjectAddress = strings.TrimSpace(match[1])
	}
	if match := budgetPattern.FindString(transcript); match != "" {
		fields.Budget = match
	}
	if terms := splitPattern.FindAllString(transcript, -1); len(terms) > 0 {
		fields.PaymentTerms = strings.Join(terms, " ")
	}
	if match := licensePattern.FindString(transcript); match != "" {
		fields.LicenseNumber = match
	}
	switch {
	case strings.Contains(lower, "text") || strings.Contains(lower, "sms"):
		fields.ContactMethod = "sms"
	case strings.Contains(lower, "email"):
		fields.ContactMethod = "email"
	}
	if strings.Contains(lower, "next month") {
		fields.StartDate = "next month"
	} else if strings.Contains(lower, "asap") || strings.Contains(lower, "immediately") {
		fields.StartDate = "asap"
	}
	if fields.ProjectType != "" {
		fields.Scope = fields.ProjectType
		if utils.HashStringToUint64(transcript)%2 == 0 {
			fields.MaterialsBy = "contractor"
		} else {
			fields.MaterialsBy = "client"
		}
	}

	return fields, time.Since(start).Milliseconds(), nil
}
