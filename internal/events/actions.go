package events

// ActionType enumerates the CRM mutations the dispatcher can apply.
type ActionType string

const (
	ActionAddTag            ActionType = "add_tag"
	ActionRemoveTag         ActionType = "remove_tag"
	ActionUpdateCustomField ActionType = "update_custom_field"
	ActionTriggerWorkflow   ActionType = "trigger_workflow"
)

// Action describes an intended CRM mutation. Actions are values, not
// commands; only the outbound dispatcher executes them.
type Action struct {
	Type       ActionType     `json:"type"`
	Tag        string         `json:"tag,omitempty"`
	Field      string         `json:"field,omitempty"`
	Value      string         `json:"value,omitempty"`
	WorkflowID string         `json:"workflow_id,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}

func AddTag(tag string) Action {
	return Action{Type: ActionAddTag, Tag: tag}
}

func RemoveTag(tag string) Action {
	return Action{Type: ActionRemoveTag, Tag: tag}
}

func UpdateCustomField(field, value string) Action {
	return Action{Type: ActionUpdateCustomField, Field: field, Value: value}
}

func TriggerWorkflow(workflowID string, data map[string]any) Action {
	return Action{Type: ActionTriggerWorkflow, WorkflowID: workflowID, Data: data}
}

// Fixed tags applied by the routing and dispatch layers.
const (
	TagDeliveryFailed          = "Delivery-Failed"
	TagComplianceAlert         = "Compliance-Alert"
	TagVoiceHandoffFailed      = "Voice-Handoff-Failed"
	TagAIOff                   = "AI-Off"
	TagDoNotContact            = "Do-Not-Contact"
	TagManualScheduling        = "Manual-Scheduling"
	TagCanonicalMappingMissing = "Canonical-Mapping-Missing"
)
