package directory

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/contractline/backend/internal/models"
)

// Directory snapshots arrive in two shapes: row arrays in sheet column order
// [phone, business, email, method, repeat, last_contact, created, call_count,
// license] or keyed objects with snake_case (camelCase tolerated) keys. Both
// collapse to models.CallerRecord here so the matcher never branches on
// input shape.

// DecodeCandidates parses a raw JSON candidate set in either shape. Header
// rows and unparseable entries are skipped, never fatal: the matcher treats
// a bad snapshot as a smaller candidate set.
func DecodeCandidates(data json.RawMessage) []models.CallerRecord {
	if len(data) == 0 {
		return nil
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil
	}

	out := make([]models.CallerRecord, 0, len(elems))
	for _, e := range elems {
		var keyed map[string]any
		if err := json.Unmarshal(e, &keyed); err == nil {
			if rec, ok := fromKeyed(keyed); ok {
				out = append(out, rec)
			}
			continue
		}
		var row []any
		if err := json.Unmarshal(e, &row); err == nil {
			if rec, ok := fromRow(row); ok {
				out = append(out, rec)
			}
		}
	}
	return out
}

func fromRow(row []any) (models.CallerRecord, bool) {
	if len(row) == 0 {
		return models.CallerRecord{}, false
	}
	cell := func(i int) string {
		if i >= len(row) {
			return ""
		}
		return asString(row[i])
	}
	first := strings.ToLower(cell(0))
	if strings.Contains(first, "phone") || strings.Contains(first, "business") {
		// header row
		return models.CallerRecord{}, false
	}

	rec := models.CallerRecord{
		Phone:         cell(0),
		BusinessName:  cell(1),
		ContactEmail:  cell(2),
		ContactMethod: cell(3),
		IsRepeat:      asBool(valueAt(row, 4)),
		LastContact:   cell(5),
		CreatedDate:   cell(6),
		CallCount:     asInt(valueAt(row, 7), 1),
		LicenseNumber: cell(8),
	}
	if rec.Phone == "" {
		return models.CallerRecord{}, false
	}
	return rec, true
}

func fromKeyed(m map[string]any) (models.CallerRecord, bool) {
	pick := func(keys ...string) string {
		for _, k := range keys {
			if v, ok := m[k]; ok {
				if s := asString(v); s != "" {
					return s
				}
			}
		}
		return ""
	}

	rec := models.CallerRecord{
		Phone:         pick("phone_number", "phone", "phoneNumber"),
		BusinessName:  pick("business_name", "businessName"),
		ContactEmail:  pick("contact_email", "contactEmail"),
		ContactMethod: pick("contact_method", "contactMethod", "preferredContact"),
		LicenseNumber: pick("license_number", "licenseNumber"),
		LastContact:   pick("last_contact_date", "lastCallDate"),
		CreatedDate:   pick("created_date", "createdDate"),
		CallCount:     asInt(firstValue(m, "call_count", "callCount"), 1),
		IsRepeat:      asBool(firstValue(m, "is_repeat", "isRepeat")),
	}
	if rec.Phone == "" {
		return models.CallerRecord{}, false
	}
	return rec, true
}

func valueAt(row []any, i int) any {
	if i >= len(row) {
		return nil
	}
	return row[i]
}

func firstValue(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v
		}
	}
	return nil
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func asInt(v any, fallback int) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return n
		}
	}
	return fallback
}

func asBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return strings.EqualFold(strings.TrimSpace(t), "true")
	}
	return false
}
