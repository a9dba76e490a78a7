package audit

import (
	"time"

	"github.com/google/uuid"
)

// EventType classifies an audit event.
type EventType string

// Event types.
const (
	// EventAuthentication covers session resolution outcomes.
	EventAuthentication EventType = "authentication"

	// EventAuthorization covers policy decisions on guarded routes.
	EventAuthorization EventType = "authorization"
)

// Outcome is the result of the audited action.
type Outcome string

// Outcomes.
const (
	OutcomeAllowed    Outcome = "allowed"
	OutcomeDenied     Outcome = "denied"
	OutcomeRedirected Outcome = "redirected"
)

// Subject is the principal an event is about.
type Subject struct {
	// ID is the principal identifier, or "anonymous".
	ID string `json:"id"`

	// Email is the principal's email, when known.
	Email string `json:"email,omitempty"`

	// Admin marks a global administrator.
	Admin bool `json:"admin,omitempty"`

	// Teams lists the principal's team memberships.
	Teams []string `json:"teams,omitempty"`
}

// Resource is the guarded route an event is about.
type Resource struct {
	// Path is the request path.
	Path string `json:"path"`

	// Method is the HTTP method.
	Method string `json:"method,omitempty"`

	// Guard is the guard kind, "api" or "page".
	Guard string `json:"guard,omitempty"`

	// Team is the concrete team scope of the policy, when one applies.
	Team string `json:"team,omitempty"`
}

// Event is a single audit record.
type Event struct {
	// ID is a unique identifier for the event.
	ID string `json:"id"`

	// Timestamp is when the event occurred, in UTC.
	Timestamp time.Time `json:"timestamp"`

	// Type classifies the event.
	Type EventType `json:"type"`

	// Outcome is the result of the audited action.
	Outcome Outcome `json:"outcome"`

	// Reason classifies a denial. Empty for allows.
	Reason string `json:"reason,omitempty"`

	// Subject is the principal.
	Subject *Subject `json:"subject,omitempty"`

	// Resource is the guarded route.
	Resource *Resource `json:"resource,omitempty"`

	// TraceID links the event to its request trace.
	TraceID string `json:"trace_id,omitempty"`
}

// NewEvent creates an audit event with id and timestamp filled in.
func NewEvent(eventType EventType, outcome Outcome) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Type:      eventType,
		Outcome:   outcome,
	}
}
