package compliance

import (
	"strings"
	"testing"

	"github.com/contractline/backend/internal/models"
)

func fullFields() models.ExtractedFields {
	return models.ExtractedFields{
		BusinessName:   "Rodriguez Construction",
		ProjectType:    "kitchen remodel",
		ProjectAddress: "1247 Oak Street, Sacramento",
		Budget:         "$45,000",
		PaymentTerms:   "10% upfront, progress payments, remainder on completion",
		StartDate:      "2026-10-01",
		EndDate:        "2026-12-15",
		Scope:          "Full kitchen remodel including cabinets, counters and flooring renovation",
		LicenseNumber:  "B86753090",
		MaterialsBy:    "contractor",
		ContactMethod:  "sms",
	}
}

func TestCheckCompleteContractIsCompliant(t *testing.T) {
	res := Check(fullFields())
	if res.Status != StatusCompliant {
		t.Fatalf("status = %s, warnings = %v, missing = %v", res.Status, res.Warnings, res.MissingElements)
	}
	if res.Score != 100 {
		t.Fatalf("score = %d, want 100", res.Score)
	}
	if len(res.Recommendations) != 0 {
		t.Fatalf("unexpected recommendations: %v", res.Recommendations)
	}
}

func TestCheckMissingGroupIsNonCompliant(t *testing.T) {
	fields := fullFields()
	fields.Budget = ""
	fields.PaymentTerms = ""
	res := Check(fields)
	if res.Status != StatusNonCompliant {
		t.Fatalf("status = %s, want %s", res.Status, StatusNonCompliant)
	}
	found := false
	for _, m := range res.MissingElements {
		if m == "Financial Terms" {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing elements = %v, want Financial Terms", res.MissingElements)
	}
	if len(res.Recommendations) == 0 {
		t.Fatal("expected recommendations for missing elements")
	}
}

func TestCheckPartialGroupWarns(t *testing.T) {
	fields := fullFields()
	fields.EndDate = ""
	res := Check(fields)
	if res.Status != StatusReviewRequired {
		t.Fatalf("status = %s, want %s", res.Status, StatusReviewRequired)
	}
	if !hasWarningContaining(res.Warnings, "Project Timeline: incomplete") {
		t.Fatalf("warnings = %v", res.Warnings)
	}
}

func TestCheckExcessiveUpfrontPayment(t *testing.T) {
	fields := fullFields()
	fields.PaymentTerms = "50% upfront and 50% on completion"
	res := Check(fields)
	if !hasWarningContaining(res.Warnings, "exceeds CSLB maximum") {
		t.Fatalf("warnings = %v", res.Warnings)
	}
	if res.Status != StatusReviewRequired {
		t.Fatalf("status = %s", res.Status)
	}
}

func TestCheckTenPercentUpfrontAllowed(t *testing.T) {
	res := Check(fullFields())
	if hasWarningContaining(res.Warnings, "exceeds CSLB maximum") {
		t.Fatalf("10%% upfront should not warn: %v", res.Warnings)
	}
}

func TestCheckProhibitedTerm(t *testing.T) {
	fields := fullFields()
	fields.PaymentTerms = "pay when paid, progress payments"
	res := Check(fields)
	if !hasWarningContaining(res.Warnings, "Prohibited term") {
		t.Fatalf("warnings = %v", res.Warnings)
	}
}

func TestCheckNoProgressStructure(t *testing.T) {
	fields := fullFields()
	fields.PaymentTerms = "10% upfront then monthly invoices"
	res := Check(fields)
	if !hasWarningContaining(res.Warnings, "progress payments") {
		t.Fatalf("warnings = %v", res.Warnings)
	}
}

func TestCheckBriefScope(t *testing.T) {
	fields := fullFields()
	fields.Scope = "remodel"
	res := Check(fields)
	if !hasWarningContaining(res.Warnings, "too brief") {
		t.Fatalf("warnings = %v", res.Warnings)
	}
}

func TestCheckTimelineOrdering(t *testing.T) {
	fields := fullFields()
	fields.StartDate = "2026-12-15"
	fields.EndDate = "2026-10-01"
	res := Check(fields)
	if !hasWarningContaining(res.Warnings, "after start date") {
		t.Fatalf("warnings = %v", res.Warnings)
	}
}

func TestCheckUnparseableDatesSkipOrdering(t *testing.T) {
	fields := fullFields()
	fields.StartDate = "sometime soon"
	fields.EndDate = "whenever"
	res := Check(fields)
	if hasWarningContaining(res.Warnings, "after start date") {
		t.Fatalf("unexpected ordering warning: %v", res.Warnings)
	}
}

func TestCheckLicenseFormat(t *testing.T) {
	fields := fullFields()
	fields.LicenseNumber = "12345"
	res := Check(fields)
	if !hasWarningContaining(res.Warnings, "format appears invalid") {
		t.Fatalf("warnings = %v", res.Warnings)
	}
}

func TestCheckMissingLicenseWithBusiness(t *testing.T) {
	fields := fullFields()
	fields.LicenseNumber = ""
	res := Check(fields)
	if !hasWarningContaining(res.Warnings, "license number is required") {
		t.Fatalf("warnings = %v", res.Warnings)
	}
	if !hasRecommendation(res.Recommendations, "license number") {
		t.Fatalf("recommendations = %v", res.Recommendations)
	}
}

func TestCheckScoreFloorsAtZero(t *testing.T) {
	res := Check(models.ExtractedFields{})
	if res.Status != StatusNonCompliant {
		t.Fatalf("status = %s", res.Status)
	}
	if res.Score < 0 || res.Score > 100 {
		t.Fatalf("score out of range: %d", res.Score)
	}
}

func hasWarningContaining(warnings []string, substr string) bool {
	for _, w := range warnings {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}

func hasRecommendation(recs []string, substr string) bool {
	for _, r := range recs {
		if strings.Contains(r, substr) {
			return true
		}
	}
	return false
}
