package models

import (
	"strings"
	"time"
)

type Role string

const (
	RoleOrganizer   Role = "organizer"
	RoleParticipant Role = "participant"
	RoleAdmin       Role = "admin"
)

// Valid reports whether r is a role accepted at registration. Admin accounts
// are provisioned out of band.
func (r Role) Valid() bool {
	return r == RoleOrganizer || r == RoleParticipant
}

type User struct {
	ID           string    `json:"id" dynamodbav:"id"`
	Name         string    `json:"name" dynamodbav:"name"`
	Email        string    `json:"email" dynamodbav:"email"`
	PasswordHash string    `json:"-" dynamodbav:"password_hash"`
	Role         Role      `json:"role" dynamodbav:"role"`
	IsActivated  bool      `json:"is_activated" dynamodbav:"is_activated"`
	CreatedAt    time.Time `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" dynamodbav:"updated_at"`
}

func (u *User) GetPK() string {
	return UserPK(u.Email)
}

func (u *User) GetSK() string {
	return "PROFILE"
}

func UserPK(email string) string {
	return "USER#" + NormalizeEmail(email)
}

func UserIDKey(id string) string {
	return "USERID#" + id
}

func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Email: u.Email}
}

// UserSummary is the public projection of a user embedded in event and
// scholarship responses.
type UserSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
