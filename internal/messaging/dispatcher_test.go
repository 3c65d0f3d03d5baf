package messaging

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborhomes/leadrouter/internal/events"
	"github.com/harborhomes/leadrouter/internal/voice"
)

type fakeCRM struct {
	mu           sync.Mutex
	sent         []string
	addedTags    []string
	removedTags  []string
	fieldWrites  map[string]string
	workflows    []string
	sendErr      error
	addTagsErr   error
	workflowErr  error
	fieldErr     error
	removeErr    error
}

func newFakeCRM() *fakeCRM {
	return &fakeCRM{fieldWrites: make(map[string]string)}
}

func (f *fakeCRM) SendMessage(_ context.Context, _, text, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeCRM) AddTags(_ context.Context, _ string, tags []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addTagsErr != nil {
		return f.addTagsErr
	}
	f.addedTags = append(f.addedTags, tags...)
	return nil
}

func (f *fakeCRM) RemoveTags(_ context.Context, _ string, tags []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.removeErr != nil {
		return f.removeErr
	}
	f.removedTags = append(f.removedTags, tags...)
	return nil
}

func (f *fakeCRM) UpdateCustomField(_ context.Context, _, field, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fieldErr != nil {
		return f.fieldErr
	}
	f.fieldWrites[field] = value
	return nil
}

func (f *fakeCRM) TriggerWorkflow(_ context.Context, _, workflowID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.workflowErr != nil {
		return f.workflowErr
	}
	f.workflows = append(f.workflows, workflowID)
	return nil
}

type fakeVoice struct {
	failures int
	calls    int
}

func (f *fakeVoice) StartCall(_ context.Context, _ voice.CallRequest) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", errors.New("provider unavailable")
	}
	return "call_ok", nil
}

func TestDispatcherSendMessage(t *testing.T) {
	crm := newFakeCRM()
	d := NewDispatcher(crm, nil)

	d.SendMessage(context.Background(), "loc_1", "contact_1", "Hello!", "SMS")
	require.Len(t, crm.sent, 1)
	assert.Empty(t, crm.addedTags)
}

func TestDispatcherSendFailureTagsContact(t *testing.T) {
	crm := newFakeCRM()
	crm.sendErr = errors.New("telco down")
	d := NewDispatcher(crm, nil)

	// Must not panic or surface the failure.
	d.SendMessage(context.Background(), "loc_1", "contact_1", "Hello!", "SMS")
	assert.Equal(t, []string{events.TagDeliveryFailed}, crm.addedTags)
}

func TestDispatcherSendAndTagBothFailing(t *testing.T) {
	crm := newFakeCRM()
	crm.sendErr = errors.New("telco down")
	crm.addTagsErr = errors.New("crm down")
	d := NewDispatcher(crm, nil)

	// Tagging failure is logged and swallowed.
	d.SendMessage(context.Background(), "loc_1", "contact_1", "Hello!", "SMS")
	assert.Empty(t, crm.addedTags)
}

func TestDispatcherApplyActions(t *testing.T) {
	crm := newFakeCRM()
	d := NewDispatcher(crm, nil)

	d.ApplyActions(context.Background(), "loc_1", "contact_1", []events.Action{
		events.AddTag("Hot-Lead"),
		events.RemoveTag("Needs Qualifying"),
		events.UpdateCustomField("field_price", "650000"),
		events.TriggerWorkflow("wf_hot", nil),
	})

	assert.Equal(t, []string{"Hot-Lead"}, crm.addedTags)
	assert.Equal(t, []string{"Needs Qualifying"}, crm.removedTags)
	assert.Equal(t, "650000", crm.fieldWrites["field_price"])
	assert.Equal(t, []string{"wf_hot"}, crm.workflows)
}

func TestDispatcherApplyActionsContinuesAfterFailure(t *testing.T) {
	crm := newFakeCRM()
	crm.workflowErr = errors.New("workflow API down")
	d := NewDispatcher(crm, nil)

	d.ApplyActions(context.Background(), "loc_1", "contact_1", []events.Action{
		events.TriggerWorkflow("wf_broken", nil),
		events.AddTag("Hot-Lead"),
	})

	// Failure tag plus the still-applied follow-up action.
	assert.Contains(t, crm.addedTags, events.TagDeliveryFailed)
	assert.Contains(t, crm.addedTags, "Hot-Lead")
}

func TestDispatcherVoiceRetrySucceedsMidway(t *testing.T) {
	crm := newFakeCRM()
	caller := &fakeVoice{failures: 1}
	d := NewDispatcher(crm, nil).
		WithVoiceClient(caller).
		WithVoiceRetry(3, time.Millisecond)

	d.StartOutboundCall(context.Background(), "loc_1", voice.CallRequest{ContactID: "contact_1", Phone: "+1555"})
	assert.Equal(t, 2, caller.calls)
	assert.Empty(t, crm.addedTags)
}

func TestDispatcherVoiceExhaustionTagsHandoffFailure(t *testing.T) {
	crm := newFakeCRM()
	caller := &fakeVoice{failures: 10}
	d := NewDispatcher(crm, nil).
		WithVoiceClient(caller).
		WithVoiceRetry(3, time.Millisecond)

	d.StartOutboundCall(context.Background(), "loc_1", voice.CallRequest{ContactID: "contact_1", Phone: "+1555"})
	assert.Equal(t, 3, caller.calls, "exactly the configured attempt count")
	assert.Equal(t, []string{events.TagVoiceHandoffFailed}, crm.addedTags)
}

func TestDispatcherVoiceWithoutClient(t *testing.T) {
	crm := newFakeCRM()
	d := NewDispatcher(crm, nil)

	d.StartOutboundCall(context.Background(), "loc_1", voice.CallRequest{ContactID: "contact_1"})
	assert.Empty(t, crm.addedTags)
}
