package crm

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

type customFieldValue struct {
	ID    string `json:"id"`
	Value string `json:"field_value"`
}

// Slot is a bookable calendar window.
type Slot struct {
	Start time.Time `json:"startTime"`
	End   time.Time `json:"endTime"`
}

// AppointmentRequest books a contact into a calendar slot.
type AppointmentRequest struct {
	CalendarID string    `json:"calendarId"`
	LocationID string    `json:"locationId"`
	ContactID  string    `json:"contactId"`
	StartTime  time.Time `json:"startTime"`
	EndTime    time.Time `json:"endTime"`
	Title      string    `json:"title,omitempty"`
}

func (r AppointmentRequest) validate() error {
	if strings.TrimSpace(r.CalendarID) == "" {
		return errors.New("crm: calendar id required")
	}
	if strings.TrimSpace(r.ContactID) == "" {
		return errors.New("crm: contact id required")
	}
	if r.StartTime.IsZero() || r.EndTime.IsZero() {
		return errors.New("crm: appointment start and end required")
	}
	if !r.EndTime.After(r.StartTime) {
		return errors.New("crm: appointment end must follow start")
	}
	return nil
}

// Appointment is the booked event as confirmed by the CRM.
type Appointment struct {
	ID         string    `json:"id"`
	CalendarID string    `json:"calendarId"`
	ContactID  string    `json:"contactId"`
	Status     string    `json:"appointmentStatus"`
	StartTime  time.Time `json:"startTime"`
	EndTime    time.Time `json:"endTime"`
}

// decodeSlots flattens the per-date slot map the calendar API returns
// into a single ordered list.
func decodeSlots(body []byte) ([]Slot, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("crm: decode slots response: %w", err)
	}
	var slots []Slot
	for key, value := range raw {
		if key == "traceId" {
			continue
		}
		var day struct {
			Slots []string `json:"slots"`
		}
		if err := json.Unmarshal(value, &day); err != nil {
			continue
		}
		for _, s := range day.Slots {
			start, err := time.Parse(time.RFC3339, s)
			if err != nil {
				continue
			}
			slots = append(slots, Slot{Start: start, End: start.Add(30 * time.Minute)})
		}
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Start.Before(slots[j].Start) })
	return slots, nil
}
