// Package compliance provides the synchronous audit gate every outbound
// message passes before dispatch, plus the persistent audit trail.
package compliance

import (
	"regexp"
	"strings"
)

// Status is the outcome of auditing one outbound message.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusBlocked Status = "blocked"
)

// Result reports why a message was blocked, if it was.
type Result struct {
	Status     Status
	Reason     string
	Violations []string
}

// AuditContext carries the routing facts the gate needs for logging.
type AuditContext struct {
	Mode      string
	ContactID string
}

type gatePattern struct {
	re     *regexp.Regexp
	reason string
}

// Fair-housing and safety patterns. Any match blocks the message
// outright; there is no sanitize-and-send path for steering language.
var gatePatterns = []gatePattern{
	// Protected-class steering
	{regexp.MustCompile(`(?i)\b(race|racial|religion|religious|national origin|ethnicity|ethnic)\b`), "fair_housing:protected_class"},
	{regexp.MustCompile(`(?i)\b(familial status|disability|handicap)\b`), "fair_housing:protected_class"},
	{regexp.MustCompile(`(?i)(perfect|great|ideal|good) (neighborhood|area|community) for (families|singles|couples|retirees|professionals)`), "fair_housing:steering"},
	{regexp.MustCompile(`(?i)no (kids|children|families|section\s*8)`), "fair_housing:exclusion"},
	{regexp.MustCompile(`(?i)(safe|dangerous|bad|sketchy) (neighborhood|area|part of town)`), "fair_housing:steering"},

	// Financial guarantees a bot must never make
	{regexp.MustCompile(`(?i)guaranteed? (to )?(sell|appreciate|profit|close)`), "finance:guarantee"},
	{regexp.MustCompile(`(?i)(can'?t|cannot) lose( money)?`), "finance:guarantee"},
	{regexp.MustCompile(`(?i)(risk[- ]free|sure thing) invest`), "finance:guarantee"},

	// Credential / infrastructure leaks
	{regexp.MustCompile(`(?i)(api[_\s]?key|secret[_\s]?key|access[_\s]?token|bearer\s+token)\s*[:=]\s*\S+`), "leak:credential"},
	{regexp.MustCompile(`(?i)(postgres|mysql|redis|mongodb)://\S+`), "leak:database_url"},

	// PII that must never appear in an outbound SMS
	{regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), "leak:ssn"},
	{regexp.MustCompile(`\b(?:\d[ -]?){15,16}\b`), "leak:card_number"},
}

// Gate audits outbound bot text. It is pure and safe for concurrent use.
type Gate struct {
	patterns []gatePattern
}

func NewGate() *Gate {
	return &Gate{patterns: gatePatterns}
}

// Audit checks text against every pattern. A blocked result carries all
// violations so the audit trail records the full picture.
func (g *Gate) Audit(text string, _ AuditContext) Result {
	if strings.TrimSpace(text) == "" {
		return Result{Status: StatusPassed}
	}

	var violations []string
	for _, p := range g.patterns {
		if p.re.MatchString(text) {
			violations = append(violations, p.reason)
		}
	}
	if len(violations) == 0 {
		return Result{Status: StatusPassed}
	}
	return Result{
		Status:     StatusBlocked,
		Reason:     violations[0],
		Violations: violations,
	}
}

// FallbackMessage is the fixed neutral replacement sent when the gate
// blocks a response. The active mode picks the phrasing; generation is
// never retried.
func FallbackMessage(mode string) string {
	switch mode {
	case "seller":
		return "Thanks for sharing that! Let me have one of our team members reach out to walk through your home sale options."
	case "buyer":
		return "Thanks for the details! One of our agents will follow up shortly to help with your home search."
	default:
		return "Thanks for your message! A member of our team will be in touch with you shortly."
	}
}
