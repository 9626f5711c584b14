package calls

import "strings"

// Allowed values for the lead_type field. Anything outside this set is
// treated as absent, the same as a missing or mistyped key.
var allowedLeadTypes = map[string]bool{
	"buyer":    true,
	"seller":   true,
	"renter":   true,
	"investor": true,
	"other":    true,
}

// ExtractLead maps a call's free-form structured-analysis data onto a Lead.
// The mapping is deliberately defensive: a missing key or a value of the
// wrong primitive type becomes a nil field rather than an error, because the
// analysis payload is produced by a model and its shape is not guaranteed.
// Returns nil when no field at all could be captured.
func ExtractLead(data map[string]any) *Lead {
	if len(data) == 0 {
		return nil
	}

	lead := &Lead{
		Name:        stringField(data, "name"),
		Email:       stringField(data, "email"),
		Phone:       stringField(data, "phone"),
		LeadType:    leadTypeField(data),
		BudgetRange: stringField(data, "budget_range"),
		Timeline:    stringField(data, "timeline"),
		Notes:       stringField(data, "notes"),
	}

	if lead.Name == nil && lead.Email == nil && lead.Phone == nil &&
		lead.LeadType == nil && lead.BudgetRange == nil &&
		lead.Timeline == nil && lead.Notes == nil {
		return nil
	}
	return lead
}

func stringField(data map[string]any, key string) *string {
	v, ok := data[key]
	if !ok {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func leadTypeField(data map[string]any) *string {
	s := stringField(data, "lead_type")
	if s == nil {
		return nil
	}
	normalized := strings.ToLower(*s)
	if !allowedLeadTypes[normalized] {
		return nil
	}
	return &normalized
}
