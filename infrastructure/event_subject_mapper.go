package infrastructure

import (
	"fmt"
	"strings"

	"treasury/domain/events"
)

// Subjects published and consumed by the treasury
const (
	SubjectDistributionCompleted = "treasury.distribution.completed"
	SubjectDepositCompleted      = "treasury.deposit.completed"
	SubjectReserveCredited       = "treasury.reserve.credited"
	SubjectVolatilityTierChanged = "treasury.volatility.tier_changed"

	SubjectInflowsDetected = "treasury.inflows.detected"
)

var subjectsByEventType = map[events.EventType]string{
	events.EventTypeDistributionCompleted: SubjectDistributionCompleted,
	events.EventTypeDepositCompleted:      SubjectDepositCompleted,
	events.EventTypeReserveCredited:       SubjectReserveCredited,
	events.EventTypeVolatilityTierChanged: SubjectVolatilityTierChanged,
}

// EventSubjectMapper handles mapping between domain events and NATS subjects
type EventSubjectMapper struct{}

// NewEventSubjectMapper creates a new event subject mapper
func NewEventSubjectMapper() *EventSubjectMapper {
	return &EventSubjectMapper{}
}

// MapEventToSubject converts a domain event to its NATS subject
func (m *EventSubjectMapper) MapEventToSubject(event events.Event) string {
	if subject, ok := subjectsByEventType[event.Type()]; ok {
		return subject
	}
	return fmt.Sprintf("treasury.unknown.%s", strings.ToLower(string(event.Type())))
}

// MapSubjectToEventType converts a NATS subject back to an event type
func (m *EventSubjectMapper) MapSubjectToEventType(subject string) events.EventType {
	for eventType, s := range subjectsByEventType {
		if s == subject {
			return eventType
		}
	}
	return events.EventType(fmt.Sprintf("unknown_%s", subject))
}

// GetAllSubjects returns every subject the treasury publishes events on
func (m *EventSubjectMapper) GetAllSubjects() []string {
	return []string{
		SubjectDistributionCompleted,
		SubjectDepositCompleted,
		SubjectReserveCredited,
		SubjectVolatilityTierChanged,
	}
}
