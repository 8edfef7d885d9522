package extract

import (
	"context"
	"testing"

	"github.com/contractline/backend/internal/models"
)

func TestMissingOrder(t *testing.T) {
	fields := models.ExtractedFields{
		ProjectType: "kitchen remodel",
		Budget:      "$25,000",
	}
	missing := Missing(fields)
	want := []Field{FieldBusinessName, FieldProjectAddress, FieldPaymentTerms, FieldStartDate, FieldContactMethod}
	if len(missing) != len(want) {
		t.Fatalf("expected %d missing fields, got %v", len(want), missing)
	}
	for i := range want {
		if missing[i] != want[i] {
			t.Fatalf("priority order broken at %d: got %s, want %s", i, missing[i], want[i])
		}
	}
}

func TestMissingTreatsWhitespaceAsAbsent(t *testing.T) {
	fields := models.ExtractedFields{BusinessName: "   "}
	missing := Missing(fields)
	if len(missing) == 0 || missing[0] != FieldBusinessName {
		t.Fatalf("whitespace-only value must count as missing, got %v", missing)
	}
}

func TestMissingNoSemanticValidation(t *testing.T) {
	fields := models.ExtractedFields{
		BusinessName:   "Acme",
		ProjectType:    "banana",
		ProjectAddress: "???",
		Budget:         "banana",
		PaymentTerms:   "x",
		StartDate:      "y",
		ContactMethod:  "z",
	}
	if missing := Missing(fields); len(missing) != 0 {
		t.Fatalf("content is not judged, only presence; got %v", missing)
	}
	if !MinimumViable(fields) {
		t.Fatalf("present core fields must be viable regardless of content")
	}
}

func TestMinimumViable(t *testing.T) {
	fields := models.ExtractedFields{ProjectType: "deck build", ProjectAddress: "123 Main"}
	if MinimumViable(fields) {
		t.Fatalf("missing budget must not be viable")
	}
	fields.Budget = "$10,000"
	if !MinimumViable(fields) {
		t.Fatalf("type+address+budget must be viable")
	}
}

func TestParseModelOutputFenced(t *testing.T) {
	content := "```json\n{\"business_name\":\"Acme Builders\",\"budget\":\"$25,000\",\"license_number\":null}\n```"
	fields, err := ParseModelOutput(content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fields.BusinessName != "Acme Builders" || fields.Budget != "$25,000" {
		t.Fatalf("unexpected fields: %+v", fields)
	}
	if fields.LicenseNumber != "" {
		t.Fatalf("null must decode to absent, got %q", fields.LicenseNumber)
	}
}

func TestParseModelOutputGarbage(t *testing.T) {
	if _, err := ParseModelOutput("sorry, I could not process that"); err == nil {
		t.Fatalf("expected error for non-JSON output")
	}
}

func TestMockExtractorHappyTranscript(t *testing.T) {
	m := MockExtractor{}
	transcript := "Hi, I'm John from ABC Construction. Kitchen remodel at 123 Main Street, budget $25,000, 50% upfront 50% on completion, starting next month, email me"
	fields, _, err := m.ExtractFields(context.Background(), transcript)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fields.BusinessName != "ABC Construction" {
		t.Fatalf("business name not extracted: %+v", fields)
	}
	if fields.ProjectType != "kitchen remodel" || fields.Budget != "$25,000" {
		t.Fatalf("core fields not extracted: %+v", fields)
	}
	if fields.ProjectAddress == "" || fields.PaymentTerms == "" {
		t.Fatalf("address/terms not extracted: %+v", fields)
	}
	if fields.ContactMethod != "email" {
		t.Fatalf("contact method not extracted: %+v", fields)
	}

	again, _, _ := m.ExtractFields(context.Background(), transcript)
	if again != fields {
		t.Fatalf("mock extraction must be deterministic")
	}
}

func TestMockExtractorEmptyTranscript(t *testing.T) {
	m := MockExtractor{}
	fields, _, err := m.ExtractFields(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fields != (models.ExtractedFields{}) {
		t.Fatalf("empty transcript must extract nothing, got %+v", fields)
	}
}
