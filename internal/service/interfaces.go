package service

import (
	"context"
	"time"

	"github.com/eventhon/eventhon/internal/models"
)

// UserStore is the credential store. Find* return nil, nil when absent.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Insert(ctx context.Context, user *models.User) error
	ReplacePending(ctx context.Context, user *models.User) error
	UpdateActivation(ctx context.Context, email string, activated bool) error
	DeleteByEmail(ctx context.Context, email string) (bool, error)
}

// OTPStore holds at most one pending code per email.
type OTPStore interface {
	Put(ctx context.Context, email, code string, ttl time.Duration) error
	Get(ctx context.Context, email string) (*models.OTPEntry, error)
	Delete(ctx context.Context, email string) error
	IsExpired(ctx context.Context, email string) (bool, error)
}

type EventStore interface {
	Create(ctx context.Context, event *models.Event) error
	Get(ctx context.Context, id string) (*models.Event, error)
	Update(ctx context.Context, event *models.Event) error
	UpdateParticipants(ctx context.Context, id string, participants []string) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]models.Event, error)
	ListByOrganizer(ctx context.Context, organizerID string) ([]models.Event, error)
	ListByParticipant(ctx context.Context, userID string) ([]models.Event, error)
}

type ScholarshipStore interface {
	Create(ctx context.Context, scholarship *models.Scholarship) error
	Get(ctx context.Context, id string) (*models.Scholarship, error)
	Update(ctx context.Context, scholarship *models.Scholarship) error
	UpdateParticipants(ctx context.Context, id string, participants []string) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]models.Scholarship, error)
	ListByOrganizer(ctx context.Context, organizerID string) ([]models.Scholarship, error)
	ListByParticipant(ctx context.Context, userID string) ([]models.Scholarship, error)
}

// TokenDenylist tracks session tokens revoked before their expiry.
type TokenDenylist interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}
