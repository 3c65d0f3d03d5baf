package router

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/harborhomes/leadrouter/internal/events"
)

// MappingMode selects what happens when an extracted qualification
// field has no configured CRM custom-field id.
type MappingMode string

const (
	// MappingFailOpen logs the miss and writes the fields that do map.
	MappingFailOpen MappingMode = "fail_open"
	// MappingFailClosed suppresses every canonical write for the
	// contact and flags the configuration gap with a tag.
	MappingFailClosed MappingMode = "fail_closed"
)

// FieldMapping maps canonical qualification field names to CRM custom
// field ids.
type FieldMapping map[string]string

// ParseFieldMapping decodes the JSON mapping from configuration. An
// empty document is a valid empty mapping.
func ParseFieldMapping(raw string) (FieldMapping, error) {
	if raw == "" {
		return FieldMapping{}, nil
	}
	var m FieldMapping
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("router: decode field mapping: %w", err)
	}
	return m, nil
}

// mappingResult is the outcome of translating preferences into
// custom-field actions.
type mappingResult struct {
	actions    []events.Action
	missing    []string
	suppressed bool
}

// mapPreferences converts extracted preference fields into
// UpdateCustomField actions. String-convertible values only; structured
// values stay in the conversation context.
func mapPreferences(prefs map[string]any, mapping FieldMapping, mode MappingMode) mappingResult {
	if len(prefs) == 0 {
		return mappingResult{}
	}

	keys := make([]string, 0, len(prefs))
	for key := range prefs {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var result mappingResult
	for _, key := range keys {
		value, ok := stringifyPreference(prefs[key])
		if !ok {
			continue
		}
		fieldID, mapped := mapping[key]
		if !mapped || fieldID == "" {
			result.missing = append(result.missing, key)
			continue
		}
		result.actions = append(result.actions, events.UpdateCustomField(fieldID, value))
	}

	if len(result.missing) > 0 && mode == MappingFailClosed {
		result.actions = nil
		result.suppressed = true
	}
	return result
}

func stringifyPreference(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		if v == "" {
			return "", false
		}
		return v, true
	case float64:
		return fmt.Sprintf("%g", v), true
	case int:
		return fmt.Sprintf("%d", v), true
	case int64:
		return fmt.Sprintf("%d", v), true
	case bool:
		return fmt.Sprintf("%t", v), true
	default:
		return "", false
	}
}
