package models

import "time"

type Event struct {
	ID                string    `json:"id" dynamodbav:"id"`
	Title             string    `json:"title" dynamodbav:"title"`
	Description       string    `json:"description" dynamodbav:"description"`
	Date              time.Time `json:"date" dynamodbav:"date"`
	Location          string    `json:"location" dynamodbav:"location"`
	MaxParticipants   int       `json:"max_participants" dynamodbav:"max_participants"`
	Category          string    `json:"category" dynamodbav:"category"`
	PaymentType       string    `json:"payment_type" dynamodbav:"payment_type"`
	OrganizerID       string    `json:"organizer_id" dynamodbav:"organizer_id"`
	Participants      []string  `json:"participants" dynamodbav:"participants"`
	EvaluationMarkers []string  `json:"evaluation_markers" dynamodbav:"evaluation_markers"`
	CreatedAt         time.Time `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" dynamodbav:"updated_at"`
}

func (e *Event) GetPK() string {
	return EventPK(e.ID)
}

func (e *Event) GetSK() string {
	return "METADATA"
}

func EventPK(id string) string {
	return "EVENT#" + id
}

func (e *Event) IsFull() bool {
	return len(e.Participants) >= e.MaxParticipants
}

// EventInput carries the organizer-editable fields of an event.
type EventInput struct {
	Title             string
	Description       string
	Date              time.Time
	Location          string
	MaxParticipants   int
	Category          string
	PaymentType       string
	EvaluationMarkers []string
}

// EventView is an event with its organizer and participants resolved.
type EventView struct {
	ID                string        `json:"id"`
	Title             string        `json:"title"`
	Description       string        `json:"description"`
	Date              time.Time     `json:"date"`
	Location          string        `json:"location"`
	MaxParticipants   int           `json:"max_participants"`
	Category          string        `json:"category"`
	PaymentType       string        `json:"payment_type"`
	Organizer         UserSummary   `json:"organizer"`
	Participants      []UserSummary `json:"participants"`
	EvaluationMarkers []string      `json:"evaluation_markers"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}
