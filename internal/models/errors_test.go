package models

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_MatchesSentinelOfItsKind(t *testing.T) {
	err := Conflict("event is full")

	assert.ErrorIs(t, err, ErrConflict)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "[CONFLICT] event is full", err.Error())
}

func TestAppError_WrappedChain(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := fmt.Errorf("send otp: %w", Internal("failed to send email", cause))

	require.ErrorIs(t, err, ErrInternal)
	require.ErrorIs(t, err, cause)
	assert.Equal(t, KindInternal, KindOf(err))
}

func TestKindOf_PlainErrorIsInternal(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, KindExpired, KindOf(NewError(KindExpired, "OTP expired")))
}

func TestOTPEntry_ExpiredAt(t *testing.T) {
	expires := time.Date(2026, 1, 1, 12, 3, 0, 0, time.UTC)
	entry := &OTPEntry{Code: "123456", ExpiresAt: expires}

	assert.False(t, entry.ExpiredAt(expires.Add(-time.Second)))
	assert.False(t, entry.ExpiredAt(expires))
	assert.True(t, entry.ExpiredAt(expires.Add(time.Millisecond)))
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "ada@example.com", NormalizeEmail("  Ada@Example.COM "))
	assert.Equal(t, "USER#ada@example.com", UserPK("Ada@example.com"))
}

func TestRole_Valid(t *testing.T) {
	assert.True(t, RoleOrganizer.Valid())
	assert.True(t, RoleParticipant.Valid())
	assert.False(t, RoleAdmin.Valid())
	assert.False(t, Role("guest").Valid())
}
