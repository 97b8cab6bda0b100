package audit

import "time"

// Event is an immutable, append-only record of an operator action on the ops API.
//
// Invariants:
// - Events are never updated or deleted.
// - subject is required; ip capture is best-effort.
type Event struct {
	ID   string    `json:"id" db:"id"`
	Type EventType `json:"type" db:"type"`

	// Subject is the authenticated operator causing the event.
	Subject string `json:"subject" db:"subject"`
	Role    string `json:"role,omitempty" db:"role"`

	IPAddress string `json:"ip_address,omitempty" db:"ip_address"`

	// Task names the scheduler task for trigger events.
	Task string `json:"task,omitempty" db:"task"`

	Message  string `json:"message,omitempty" db:"message"`
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeTaskTrigger  EventType = "task_trigger"
	EventTypeTokenRefresh EventType = "token_refresh"
)
