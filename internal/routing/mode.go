// Package routing decides which qualification bot owns a contact. All
// precedence and deactivation rules live here; nothing downstream may
// re-check tag membership on its own.
package routing

import "strings"

// Mode identifies which bot, if any, owns the contact for this event.
type Mode string

const (
	ModeSeller Mode = "seller"
	ModeBuyer  Mode = "buyer"
	ModeLead   Mode = "lead"
	ModeNone   Mode = "none"
)

// Canonical seller activation tags. "Hit List" is the legacy alias
// still applied by older pipelines.
const (
	SellerQualifyingTag = "Needs Qualifying"
	SellerHitListTag    = "Hit List"
)

// Flags gates each bot mode on and off without touching precedence.
type Flags struct {
	SellerEnabled bool
	BuyerEnabled  bool
	LeadEnabled   bool
}

// NormalizeTags lowercases and trims a tag set once at the boundary.
func NormalizeTags(tags []string) map[string]struct{} {
	normalized := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		cleaned := strings.ToLower(strings.TrimSpace(tag))
		if cleaned == "" {
			continue
		}
		normalized[cleaned] = struct{}{}
	}
	return normalized
}

// ShouldDeactivate reports whether any deactivation tag is present,
// case-insensitive.
func ShouldDeactivate(tags []string, deactivationTags []string) bool {
	normalized := NormalizeTags(tags)
	for _, tag := range deactivationTags {
		if _, ok := normalized[strings.ToLower(strings.TrimSpace(tag))]; ok {
			return true
		}
	}
	return false
}

// Resolve picks the bot mode for a contact's tag set.
//
// Deactivation always wins: when shouldDeactivate is true no bot
// processes the event, regardless of which activation tags co-occur.
// Otherwise modes are evaluated in fixed precedence seller > buyer >
// lead. When a contact carries both the seller and buyer activation
// tags, seller wins; that ordering is a business rule, not an accident
// of evaluation order.
func Resolve(tags []string, shouldDeactivate bool, flags Flags, buyerTag, leadTag string) Mode {
	if shouldDeactivate {
		return ModeNone
	}

	normalized := NormalizeTags(tags)
	has := func(tag string) bool {
		_, ok := normalized[strings.ToLower(strings.TrimSpace(tag))]
		return ok
	}

	if flags.SellerEnabled && (has(SellerQualifyingTag) || has(SellerHitListTag)) {
		return ModeSeller
	}
	if flags.BuyerEnabled && buyerTag != "" && has(buyerTag) {
		return ModeBuyer
	}
	if flags.LeadEnabled && leadTag != "" && has(leadTag) {
		return ModeLead
	}
	return ModeNone
}
