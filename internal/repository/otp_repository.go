package repository

import (
	"context"
	"sync"
	"time"

	"github.com/eventhon/eventhon/internal/models"
)

// MemoryOTPRepository keeps pending OTP entries in process memory. It is safe
// for concurrent use. Entries are lost on restart.
type MemoryOTPRepository struct {
	mu      sync.RWMutex
	entries map[string]models.OTPEntry
	now     func() time.Time
}

func NewMemoryOTPRepository() *MemoryOTPRepository {
	return NewMemoryOTPRepositoryWithClock(time.Now)
}

func NewMemoryOTPRepositoryWithClock(now func() time.Time) *MemoryOTPRepository {
	return &MemoryOTPRepository{
		entries: make(map[string]models.OTPEntry),
		now:     now,
	}
}

// Put overwrites any entry for email with code, expiring ttl from now.
func (r *MemoryOTPRepository) Put(_ context.Context, email, code string, ttl time.Duration) error {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[email] = models.OTPEntry{
		Email:     email,
		Code:      code,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	return nil
}

// Get returns a copy of the entry, or nil when there is none.
func (r *MemoryOTPRepository) Get(_ context.Context, email string) (*models.OTPEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[email]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (r *MemoryOTPRepository) Delete(_ context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.entries, email)
	return nil
}

// IsExpired is false when there is no entry.
func (r *MemoryOTPRepository) IsExpired(_ context.Context, email string) (bool, error) {
	r.mu.RLock()
	entry, ok := r.entries[email]
	r.mu.RUnlock()

	if !ok {
		return false, nil
	}
	return entry.ExpiredAt(r.now()), nil
}

// Len reports the number of entries currently held.
func (r *MemoryOTPRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
