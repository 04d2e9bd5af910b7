package models

import "time"

type Scholarship struct {
	ID            string    `json:"id" dynamodbav:"id"`
	Title         string    `json:"title" dynamodbav:"title"`
	Degrees       []string  `json:"degrees" dynamodbav:"degrees"`
	Courses       []string  `json:"courses" dynamodbav:"courses"`
	Nationalities []string  `json:"nationalities" dynamodbav:"nationalities"`
	Funding       string    `json:"funding" dynamodbav:"funding"`
	Deadline      time.Time `json:"deadline" dynamodbav:"deadline"`
	OrganizerID   string    `json:"organizer_id" dynamodbav:"organizer_id"`
	Participants  []string  `json:"participants" dynamodbav:"participants"`
	CreatedAt     time.Time `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" dynamodbav:"updated_at"`
}

func (s *Scholarship) GetPK() string {
	return ScholarshipPK(s.ID)
}

func (s *Scholarship) GetSK() string {
	return "METADATA"
}

func ScholarshipPK(id string) string {
	return "SCHOLARSHIP#" + id
}

func OrganizerKey(id string) string {
	return "ORGANIZER#" + id
}

type ScholarshipInput struct {
	Title         string
	Degrees       []string
	Courses       []string
	Nationalities []string
	Funding       string
	Deadline      time.Time
}

type ScholarshipView struct {
	ID            string        `json:"id"`
	Title         string        `json:"title"`
	Degrees       []string      `json:"degrees"`
	Courses       []string      `json:"courses"`
	Nationalities []string      `json:"nationalities"`
	Funding       string        `json:"funding"`
	Deadline      time.Time     `json:"deadline"`
	Organizer     UserSummary   `json:"organizer"`
	Participants  []UserSummary `json:"participants"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}
