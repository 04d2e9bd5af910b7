package models

import "time"

type OTPEntry struct {
	Email     string    `json:"email"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ExpiredAt reports whether the entry is past its expiry at now. An entry is
// still valid at the exact expiry instant.
func (e *OTPEntry) ExpiredAt(now time.Time) bool {
	return now.After(e.ExpiresAt)
}
