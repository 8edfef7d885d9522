// Package notify builds the founder-facing notification produced when a call
// reaches completion: a structured payload plus SMS and email renderings.
package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/contractline/backend/internal/models"
)

type CallerInfo struct {
	Phone       string    `json:"phone"`
	IsReturning bool      `json:"is_returning"`
	CallSid     string    `json:"call_sid"`
	Timestamp   time.Time `json:"timestamp"`
}

type Payload struct {
	BusinessName       string                 `json:"business_name"`
	ProjectType        string                 `json:"project_type"`
	Address            string                 `json:"address"`
	Budget             string                 `json:"budget"`
	PaymentTerms       string                 `json:"payment_terms"`
	StartDate          string                 `json:"start_date"`
	ContactMethod      string                 `json:"contact_method"`
	ComplianceWarnings []string               `json:"compliance_warnings"`
	ScopeSummary       string                 `json:"scope_summary"`
	CallerInfo         CallerInfo             `json:"caller_info"`
	ExtractedData      models.ExtractedFields `json:"extracted_data"`
}

type Notification struct {
	Payload      Payload   `json:"notification_payload"`
	SMSSummary   string    `json:"sms_summary"`
	EmailSubject string    `json:"email_subject"`
	EmailBody    string    `json:"email_body"`
	Timestamp    time.Time `json:"timestamp"`
	CallSid      string    `json:"call_sid"`
}

// Build assembles the notification for a completed call. Optional fields fall
// back to "pending" placeholders so downstream channels never render blanks.
func Build(fields models.ExtractedFields, caller *models.CallerRecord, warnings []string, callSid, callerPhone string, now time.Time) Notification {
	if warnings == nil {
		warnings = []string{}
	}

	contactMethod := fields.ContactMethod
	if contactMethod == "" && caller != nil {
		contactMethod = caller.ContactMethod
	}

	payload := Payload{
		BusinessName:       orDefault(fields.BusinessName, "Unknown"),
		ProjectType:        orDefault(fields.ProjectType, "Unknown"),
		Address:            orDefault(fields.ProjectAddress, "Address pending"),
		Budget:             orDefault(fields.Budget, "Budget pending"),
		PaymentTerms:       orDefault(fields.PaymentTerms, "Terms pending"),
		StartDate:          orDefault(fields.StartDate, "Date pending"),
		ContactMethod:      orDefault(contactMethod, "Unknown"),
		ComplianceWarnings: warnings,
		ScopeSummary:       ScopeSummary(fields),
		CallerInfo: CallerInfo{
			Phone:       callerPhone,
			IsReturning: caller != nil && caller.IsRepeat,
			CallSid:     callSid,
			Timestamp:   now,
		},
		ExtractedData: fields,
	}

	return Notification{
		Payload:      payload,
		SMSSummary:   smsSummary(payload),
		EmailSubject: fmt.Sprintf("New Contract Request: %s - %s (%s)", payload.BusinessName, payload.ProjectType, payload.Budget),
		EmailBody:    emailBody(payload),
		Timestamp:    now,
		CallSid:      callSid,
	}
}

// ScopeSummary joins the project descriptors into a single display line.
func ScopeSummary(fields models.ExtractedFields) string {
	var parts []string
	if fields.ProjectType != "" {
		parts = append(parts, fields.ProjectType)
	}
	if fields.Scope != "" {
		parts = append(parts, fields.Scope)
	}
	if fields.MaterialsBy != "" {
		parts = append(parts, "Materials: "+fields.MaterialsBy)
	}
	if len(parts) == 0 {
		return "Scope details pending"
	}
	return strings.Join(parts, " - ")
}

func smsSummary(p Payload) string {
	lines := []string{
		p.BusinessName,
		p.ProjectType,
		p.Address,
		p.Budget,
		p.StartDate,
		p.ContactMethod,
	}
	if len(p.ComplianceWarnings) > 0 {
		lines = append(lines, "Warnings: "+strings.Join(p.ComplianceWarnings, ", "))
	}
	return strings.Join(lines, "\n")
}

func emailBody(p Payload) string {
	var b strings.Builder
	b.WriteString("New Contract Request Received\n\n")
	fmt.Fprintf(&b, "Business: %s\n", p.BusinessName)
	fmt.Fprintf(&b, "Project: %s\n", p.ProjectType)
	fmt.Fprintf(&b, "Address: %s\n", p.Address)
	fmt.Fprintf(&b, "Budget: %s\n", p.Budget)
	fmt.Fprintf(&b, "Payment Terms: %s\n", p.PaymentTerms)
	fmt.Fprintf(&b, "Start Date: %s\n", p.StartDate)
	fmt.Fprintf(&b, "Contact Method: %s\n\n", p.ContactMethod)
	fmt.Fprintf(&b, "Scope Summary:\n%s\n\n", p.ScopeSummary)
	b.WriteString("Caller Info:\n")
	fmt.Fprintf(&b, "- Phone: %s\n", p.CallerInfo.Phone)
	fmt.Fprintf(&b, "- Returning Caller: %s\n", yesNo(p.CallerInfo.IsReturning))
	fmt.Fprintf(&b, "- Call ID: %s\n", p.CallerInfo.CallSid)
	if len(p.ComplianceWarnings) > 0 {
		fmt.Fprintf(&b, "\nCompliance Warnings:\n%s\n", strings.Join(p.ComplianceWarnings, "\n"))
	}
	b.WriteString("\nFull extracted data available in JSON format.")
	return b.String()
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}
