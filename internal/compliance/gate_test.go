package compliance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGateAudit(t *testing.T) {
	gate := NewGate()

	tests := []struct {
		name       string
		text       string
		wantStatus Status
		wantReason string
	}{
		// Clean qualification copy
		{"normal seller reply", "Thanks Maria! What price range were you hoping to get for the property?", StatusPassed, ""},
		{"slot proposal", "I have Tuesday at 10am or Wednesday at 2pm available. Which works better?", StatusPassed, ""},
		{"empty text", "", StatusPassed, ""},

		// Fair housing
		{"protected class mention", "This area is popular with people of your religion", StatusBlocked, "fair_housing:protected_class"},
		{"steering by family status", "It's a great neighborhood for families with young kids", StatusBlocked, "fair_housing:steering"},
		{"section 8 exclusion", "The landlord takes no Section 8 vouchers", StatusBlocked, "fair_housing:exclusion"},
		{"safety steering", "You'd want to avoid that sketchy part of town", StatusBlocked, "fair_housing:steering"},

		// Financial guarantees
		{"appreciation guarantee", "This home is guaranteed to appreciate 10% a year", StatusBlocked, "finance:guarantee"},
		{"cant lose", "At this price you can't lose money", StatusBlocked, "finance:guarantee"},

		// Leaks
		{"credential leak", "our api_key: sk_live_abc123 works", StatusBlocked, "leak:credential"},
		{"database url", "data lives at postgres://u:p@db:5432/crm", StatusBlocked, "leak:database_url"},
		{"ssn", "your file shows 123-45-6789", StatusBlocked, "leak:ssn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := gate.Audit(tt.text, AuditContext{Mode: "seller", ContactID: "contact_1"})
			assert.Equal(t, tt.wantStatus, result.Status)
			if tt.wantReason != "" {
				assert.Equal(t, tt.wantReason, result.Reason)
				assert.NotEmpty(t, result.Violations)
			}
		})
	}
}

func TestGateCollectsAllViolations(t *testing.T) {
	gate := NewGate()
	result := gate.Audit("This safe neighborhood is guaranteed to appreciate", AuditContext{})
	assert.Equal(t, StatusBlocked, result.Status)
	assert.GreaterOrEqual(t, len(result.Violations), 2)
}

func TestFallbackMessagePerMode(t *testing.T) {
	assert.Contains(t, FallbackMessage("seller"), "home sale")
	assert.Contains(t, FallbackMessage("buyer"), "home search")
	assert.Contains(t, FallbackMessage("lead"), "team")
	assert.Contains(t, FallbackMessage(""), "team")
}
