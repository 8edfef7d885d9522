// Package compliance checks accumulated project data against the CSLB §7159
// home improvement contract requirements. It is a downstream consumer of the
// conversation core's output: warnings inform the founder notification, they
// never block the call flow.
package compliance

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/contractline/backend/internal/models"
)

const (
	StatusCompliant      = "COMPLIANT"
	StatusReviewRequired = "REVIEW_REQUIRED"
	StatusNonCompliant   = "NON_COMPLIANT"
)

// maxUpfrontPercent is the CSLB cap on upfront payment for contracts over
// $1,000.
const maxUpfrontPercent = 10

type Result struct {
	Status          string   `json:"compliance_status"`
	Score           int      `json:"compliance_score"`
	MissingElements []string `json:"missing_elements"`
	Warnings        []string `json:"warnings"`
	Recommendations []string `json:"recommendations"`
}

type elementGroup struct {
	name   string
	fields []func(models.ExtractedFields) string
}

var elementGroups = []elementGroup{
	{"Contractor Information", []func(models.ExtractedFields) string{
		func(f models.ExtractedFields) string { return f.BusinessName },
		func(f models.ExtractedFields) string { return f.LicenseNumber },
	}},
	{"Project Details", []func(models.ExtractedFields) string{
		func(f models.ExtractedFields) string { return f.ProjectAddress },
		func(f models.ExtractedFields) string { return f.Scope },
		func(f models.ExtractedFields) string { return f.ProjectType },
	}},
	{"Financial Terms", []func(models.ExtractedFields) string{
		func(f models.ExtractedFields) string { return f.Budget },
		func(f models.ExtractedFields) string { return f.PaymentTerms },
	}},
	{"Project Timeline", []func(models.ExtractedFields) string{
		func(f models.ExtractedFields) string { return f.StartDate },
		func(f models.ExtractedFields) string { return f.EndDate },
	}},
	{"Materials Information", []func(models.ExtractedFields) string{
		func(f models.ExtractedFields) string { return f.MaterialsBy },
	}},
}

var prohibitedTerms = []string{
	"waiver of lien rights",
	"unconditional lien waiver",
	"pay when paid",
	"no damages for delay",
	"unlimited indemnification",
}

var (
	upfrontPattern   = regexp.MustCompile(`(\d+)%\s*upfront`)
	caLicensePattern = regexp.MustCompile(`^[A-Z]\d{8}$`)
)

var dateLayouts = []string{"2006-01-02", "January 2, 2006", "January 2006", "January 2", "Jan 2, 2006", "01/02/2006"}

// Check runs every validation over the accumulated fields and folds the
// outcome into a status, a 0-100 score and actionable recommendations.
func Check(fields models.ExtractedFields) Result {
	var missing []string
	var warnings []string

	for _, group := range elementGroups {
		present := 0
		for _, get := range group.fields {
			if strings.TrimSpace(get(fields)) != "" {
				present++
			}
		}
		switch {
		case present == 0:
			missing = append(missing, group.name)
		case present < len(group.fields):
			warnings = append(warnings, fmt.Sprintf("%s: incomplete (%d/%d fields)", group.name, present, len(group.fields)))
		}
	}

	warnings = append(warnings, paymentWarnings(fields.PaymentTerms)...)
	warnings = append(warnings, scopeWarnings(fields.Scope, fields.ProjectType)...)
	warnings = append(warnings, timelineWarnings(fields.StartDate, fields.EndDate)...)
	warnings = append(warnings, licenseWarnings(fields.LicenseNumber, fields.BusinessName)...)

	status := StatusCompliant
	switch {
	case len(missing) > 0:
		status = StatusNonCompliant
	case len(warnings) > 0:
		status = StatusReviewRequired
	}

	var recommendations []string
	if len(missing) > 0 {
		recommendations = append(recommendations, "Add missing required elements: "+strings.Join(missing, ", "))
	}
	if len(warnings) > 0 {
		recommendations = append(recommendations, "Review and address compliance warnings")
	}
	if strings.TrimSpace(fields.LicenseNumber) == "" {
		recommendations = append(recommendations, "Include contractor license number")
	}
	if strings.TrimSpace(fields.EndDate) == "" {
		recommendations = append(recommendations, "Specify project completion date")
	}

	totalChecks := len(elementGroups) + 4
	passed := float64(totalChecks) - float64(len(missing)) - float64(len(warnings))*0.5
	score := int(passed / float64(totalChecks) * 100)
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return Result{
		Status:          status,
		Score:           score,
		MissingElements: missing,
		Warnings:        warnings,
		Recommendations: recommendations,
	}
}

func paymentWarnings(paymentTerms string) []string {
	terms := strings.ToLower(strings.TrimSpace(paymentTerms))
	if terms == "" {
		return nil
	}

	var warnings []string
	if match := upfrontPattern.FindStringSubmatch(terms); match != nil {
		percent, _ := strconv.Atoi(match[1])
		if percent > maxUpfrontPercent {
			warnings = append(warnings, fmt.Sprintf("Upfront payment (%d%%) exceeds CSLB maximum (%d%%)", percent, maxUpfrontPercent))
		}
	}
	for _, term := range prohibitedTerms {
		if strings.Contains(terms, term) {
			warnings = append(warnings, fmt.Sprintf("Prohibited term detected: %q", term))
		}
	}
	if !strings.Contains(terms, "progress") && !strings.Contains(terms, "milestone") && !strings.Contains(terms, "completion") {
		warnings = append(warnings, "Payment structure should include progress payments or completion-based terms")
	}
	return warnings
}

func scopeWarnings(scope, projectType string) []string {
	var warnings []string
	if len(strings.TrimSpace(scope)) < 10 {
		warnings = append(warnings, "Project scope is too brief - CSLB requires detailed description")
		return warnings
	}
	if projectType != "" {
		scopeLower := strings.ToLower(scope)
		typeLower := strings.ToLower(projectType)
		if !strings.Contains(scopeLower, typeLower) && !strings.Contains(scopeLower, "renovation") && !strings.Contains(scopeLower, "construction") {
			warnings = append(warnings, "Project scope should clearly describe the type of work")
		}
	}
	return warnings
}

func timelineWarnings(startDate, endDate string) []string {
	var warnings []string
	if strings.TrimSpace(startDate) == "" {
		warnings = append(warnings, "Start date is required for CSLB compliance")
	}
	if strings.TrimSpace(endDate) == "" {
		warnings = append(warnings, "Completion date should be specified")
		return warnings
	}
	start, okStart := parseLooseDate(startDate)
	end, okEnd := parseLooseDate(endDate)
	if okStart && okEnd && !end.After(start) {
		warnings = append(warnings, "Completion date should be after start date")
	}
	return warnings
}

func licenseWarnings(licenseNumber, businessName string) []string {
	var warnings []string
	license := strings.TrimSpace(licenseNumber)
	if license == "" {
		if strings.TrimSpace(businessName) != "" {
			warnings = append(warnings, "Contractor license number is required for CSLB compliance")
		}
		return warnings
	}
	if !caLicensePattern.MatchString(license) {
		warnings = append(warnings, "License number format appears invalid (should be A12345678)")
	}
	return warnings
}

// parseLooseDate tries a few spoken-date layouts; unparseable dates skip the
// ordering check rather than warn.
func parseLooseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
