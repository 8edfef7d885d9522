package extract

import (
	"context"
	"strings"

	"github.com/contractline/backend/internal/models"
)

// Extractor turns one speech transcript into a best-effort field mapping.
// Results are untrusted: partial, empty or garbled output is normal.
type Extractor interface {
	ExtractFields(ctx context.Context, transcript string) (models.ExtractedFields, int64, error)
}

// Field names the extractable project attributes, using the wire spelling
// shared with the extraction collaborator.
type Field string

const (
	FieldBusinessName   Field = "business_name"
	FieldProjectType    Field = "project_type"
	FieldProjectAddress Field = "project_address"
	FieldScope          Field = "scope"
	FieldBudget         Field = "budget"
	FieldPaymentTerms   Field = "payment_terms"
	FieldMaterialsBy    Field = "materials_by"
	FieldLicenseNumber  Field = "license_number"
	FieldStartDate      Field = "start_date"
	FieldEndDate        Field = "end_date"
	FieldContactMethod  Field = "preferred_contact_method"
	FieldContactEmail   Field = "contact_email"
)

// requiredOrder is the fixed follow-up priority over required fields.
var requiredOrder = []Field{
	FieldBusinessName,
	FieldProjectType,
	FieldProjectAddress,
	FieldBudget,
	FieldPaymentTerms,
	FieldStartDate,
	FieldContactMethod,
}

// Value reads one named field from a snapshot.
func Value(f models.ExtractedFields, name Field) string {
	switch name {
	case FieldBusinessName:
		return f.BusinessName
	case FieldProjectType:
		return f.ProjectType
	case FieldProjectAddress:
		return f.ProjectAddress
	case FieldScope:
		return f.Scope
	case FieldBudget:
		return f.Budget
	case FieldPaymentTerms:
		return f.PaymentTerms
	case FieldMaterialsBy:
		return f.MaterialsBy
	case FieldLicenseNumber:
		return f.LicenseNumber
	case FieldStartDate:
		return f.StartDate
	case FieldEndDate:
		return f.EndDate
	case FieldContactMethod:
		return f.ContactMethod
	case FieldContactEmail:
		return f.ContactEmail
	}
	return ""
}

// Known reports whether a field holds a usable value. Whitespace-only is
// absent; content is otherwise taken at face value ("banana" is a budget).
func Known(f models.ExtractedFields, name Field) bool {
	return strings.TrimSpace(Value(f, name)) != ""
}

// Missing returns the required fields still absent, in follow-up priority
// order.
func Missing(f models.ExtractedFields) []Field {
	var out []Field
	for _, name := range requiredOrder {
		if !Known(f, name) {
			out = append(out, name)
		}
	}
	return out
}

// MinimumViable reports whether the core project details are all known,
// which gates the move to the contact step.
func MinimumViable(f models.ExtractedFields) bool {
	return Known(f, FieldProjectType) && Known(f, FieldProjectAddress) && Known(f, FieldBudget)
}
