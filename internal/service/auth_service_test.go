package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/eventhon/eventhon/internal/models"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const otpTTL = 3 * time.Minute

func TestRegister_CreatesPendingUserWithOneCode(t *testing.T) {
	f := newAuthFixture(t, otpTTL)
	ctx := context.Background()

	code := f.register(t, " Ada@Example.com ")

	user := f.user(t, "ada@example.com")
	require.NotNil(t, user)
	assert.False(t, user.IsActivated)
	assert.NotEmpty(t, user.ID)
	assert.NotEqual(t, "secret123", user.PasswordHash)

	entry, err := f.otps.Get(ctx, "ada@example.com")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, code, entry.Code)
	assert.Len(t, entry.Code, 6)
	assert.Equal(t, otpTTL, entry.ExpiresAt.Sub(entry.CreatedAt))
	assert.Equal(t, 1, f.otps.Len())
	assert.Equal(t, 1, f.svc.PendingSweeps())

	msg := f.sender.last(t)
	assert.Equal(t, "ada@example.com", msg.To)
	assert.Equal(t, "Verify your email for Eventhon Signup", msg.Subject)
	assert.Equal(t, "Your OTP is: "+code+". It is valid for 3 minutes.", msg.Body)
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name string
		in   RegisterInput
	}{
		{name: "missing name", in: RegisterInput{Email: "a@example.com", Password: "secret123", Role: models.RoleParticipant}},
		{name: "missing email", in: RegisterInput{Name: "A", Password: "secret123", Role: models.RoleParticipant}},
		{name: "bad email", in: RegisterInput{Name: "A", Email: "not-an-email", Password: "secret123", Role: models.RoleParticipant}},
		{name: "short password", in: RegisterInput{Name: "A", Email: "a@example.com", Password: "123", Role: models.RoleParticipant}},
		{name: "unknown role", in: RegisterInput{Name: "A", Email: "a@example.com", Password: "secret123", Role: "superuser"}},
		{name: "admin role", in: RegisterInput{Name: "A", Email: "a@example.com", Password: "secret123", Role: models.RoleAdmin}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAuthFixture(t, otpTTL)
			err := f.svc.Register(context.Background(), tt.in)
			require.ErrorIs(t, err, models.ErrInvalidInput)
			assert.Equal(t, 0, f.otps.Len())
			assert.Empty(t, f.sender.messages())
		})
	}
}

func TestRegister_ActivatedAccountConflicts(t *testing.T) {
	f := newAuthFixture(t, otpTTL)
	ctx := context.Background()

	code := f.register(t, "ada@example.com")
	require.NoError(t, f.svc.VerifyOTP(ctx, "ada@example.com", code))

	err := f.svc.Register(ctx, RegisterInput{Name: "Eve", Email: "ada@example.com", Password: "secret123", Role: models.RoleOrganizer})
	require.ErrorIs(t, err, models.ErrConflict)

	user := f.user(t, "ada@example.com")
	assert.Equal(t, "Ada", user.Name)
	assert.True(t, user.IsActivated)
}

func TestRegister_AgainReplacesPendingCode(t *testing.T) {
	f := newAuthFixture(t, otpTTL)
	ctx := context.Background()

	first := f.register(t, "ada@example.com")
	firstUser := f.user(t, "ada@example.com")

	second := first
	for i := 0; i < 5 && second == first; i++ {
		f.clock.Advance(time.Second)
		second = f.register(t, "ada@example.com")
	}
	require.NotEqual(t, first, second)

	assert.Equal(t, 1, f.otps.Len())
	assert.Equal(t, 1, f.svc.PendingSweeps())
	assert.Equal(t, firstUser.ID, f.user(t, "ada@example.com").ID, "re-registration keeps the account id")

	require.ErrorIs(t, f.svc.VerifyOTP(ctx, "ada@example.com", first), models.ErrInvalidCode)
	require.NoError(t, f.svc.VerifyOTP(ctx, "ada@example.com", second))
}

func TestRegister_MailFailureLeavesPendingStateForSweep(t *testing.T) {
	f := newAuthFixture(t, otpTTL)
	f.sender.setErr(errors.New("smtp unavailable"))

	err := f.svc.Register(context.Background(), RegisterInput{Name: "Ada", Email: "ada@example.com", Password: "secret123", Role: models.RoleParticipant})
	require.ErrorIs(t, err, models.ErrInternal)

	user := f.user(t, "ada@example.com")
	require.NotNil(t, user)
	assert.False(t, user.IsActivated)
	assert.Equal(t, 1, f.otps.Len())
	assert.Equal(t, 1, f.svc.PendingSweeps())
}

func TestVerifyOTP_CorrectCodeActivatesOnce(t *testing.T) {
	f := newAuthFixture(t, otpTTL)
	ctx := context.Background()

	code := f.register(t, "ada@example.com")
	require.NoError(t, f.svc.VerifyOTP(ctx, "ada@example.com", code))

	assert.True(t, f.user(t, "ada@example.com").IsActivated)
	assert.Equal(t, 0, f.otps.Len())
	assert.Equal(t, 0, f.svc.PendingSweeps())

	err := f.svc.VerifyOTP(ctx, "ada@example.com", code)
	require.ErrorIs(t, err, models.ErrExpired)
}

func TestVerifyOTP_WrongCodeCanBeRetried(t *testing.T) {
	f := newAuthFixture(t, otpTTL)
	ctx := context.Background()

	code := f.register(t, "ada@example.com")

	for i := 0; i < 3; i++ {
		err := f.svc.VerifyOTP(ctx, "ada@example.com", wrongCode(code))
		require.ErrorIs(t, err, models.ErrInvalidCode)
	}

	entry, err := f.otps.Get(ctx, "ada@example.com")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, code, entry.Code)
	assert.False(t, f.user(t, "ada@example.com").IsActivated)
	assert.Equal(t, 1, f.svc.PendingSweeps())

	require.NoError(t, f.svc.VerifyOTP(ctx, "ada@example.com", code))
}

func TestVerifyOTP_AfterExpiryRemovesEverythingBeforeSweepRuns(t *testing.T) {
	f := newAuthFixture(t, otpTTL)
	ctx := context.Background()

	code := f.register(t, "ada@example.com")
	f.clock.Advance(otpTTL + time.Second)

	err := f.svc.VerifyOTP(ctx, "ada@example.com", code)
	require.ErrorIs(t, err, models.ErrExpired)

	assert.Nil(t, f.user(t, "ada@example.com"))
	assert.Equal(t, 0, f.otps.Len())
	assert.Equal(t, 0, f.svc.PendingSweeps())

	err = f.svc.VerifyOTP(ctx, "ada@example.com", code)
	require.ErrorIs(t, err, models.ErrExpired)
}

func TestVerifyOTP_AtExactExpiryStillValid(t *testing.T) {
	f := newAuthFixture(t, otpTTL)

	code := f.register(t, "ada@example.com")
	f.clock.Advance(otpTTL)

	require.NoError(t, f.svc.VerifyOTP(context.Background(), "ada@example.com", code))
}

type failingDeleteOTPs struct {
	OTPStore
	err error
}

func (s failingDeleteOTPs) Delete(context.Context, string) error { return s.err }

func TestVerifyOTP_VanishedUserLogsRegistryFailure(t *testing.T) {
	f := newAuthFixture(t, otpTTL)
	ctx := context.Background()
	code := f.register(t, "ada@example.com")

	logger, hook := logtest.NewNullLogger()
	cfg := newTestConfig(otpTTL)
	tokens, err := NewJWTService(&cfg.JWT, logger)
	require.NoError(t, err)
	otps := failingDeleteOTPs{OTPStore: f.otps, err: errors.New("registry unavailable")}
	svc := NewAuthService(f.users, otps, f.sender, tokens, f.denylist, cfg, newTestRecorder(), logger)
	t.Cleanup(svc.Shutdown)
	svc.now = f.clock.Now

	deleted, err := f.users.DeleteByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	require.True(t, deleted)

	err = svc.VerifyOTP(ctx, "ada@example.com", code)
	require.ErrorIs(t, err, models.ErrNotFound)

	var found bool
	for _, entry := range hook.AllEntries() {
		if entry.Message == "Failed to delete OTP of vanished user" {
			found = true
			assert.Equal(t, logrus.WarnLevel, entry.Level)
			assert.EqualError(t, entry.Data[logrus.ErrorKey].(error), "registry unavailable")
		}
	}
	assert.True(t, found, "registry failure was not logged")
}

func TestVerifyOTP_UnknownEmail(t *testing.T) {
	f := newAuthFixture(t, otpTTL)

	err := f.svc.VerifyOTP(context.Background(), "nobody@example.com", "123456")
	require.ErrorIs(t, err, models.ErrExpired)

	err = f.svc.VerifyOTP(context.Background(), "nobody@example.com", "")
	require.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestVerifyOTP_ConcurrentAttemptsActivateExactlyOnce(t *testing.T) {
	f := newAuthFixture(t, otpTTL)
	code := f.register(t, "ada@example.com")

	const attempts = 10
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = f.svc.VerifyOTP(context.Background(), "ada@example.com", code)
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		assert.ErrorIs(t, err, models.ErrExpired)
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 0, f.svc.locks.size())
}

func TestSweep_ReclaimsExpiredRegistration(t *testing.T) {
	f := newRealTimeAuthFixture(t, 40*time.Millisecond)
	f.register(t, "ada@example.com")

	require.Eventually(t, func() bool {
		return f.user(t, "ada@example.com") == nil && f.otps.Len() == 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, f.svc.PendingSweeps())
}

func TestSweep_SparesVerifiedAccount(t *testing.T) {
	f := newRealTimeAuthFixture(t, 40*time.Millisecond)
	code := f.register(t, "ada@example.com")

	require.NoError(t, f.svc.VerifyOTP(context.Background(), "ada@example.com", code))
	assert.Equal(t, 0, f.svc.PendingSweeps())

	time.Sleep(120 * time.Millisecond)

	user := f.user(t, "ada@example.com")
	require.NotNil(t, user)
	assert.True(t, user.IsActivated)
}

func TestSweep_RechecksStateAtFireTime(t *testing.T) {
	f := newAuthFixture(t, otpTTL)
	ctx := context.Background()

	f.register(t, "ada@example.com")
	f.clock.Advance(2 * time.Minute)
	code := f.register(t, "ada@example.com")
	f.clock.Advance(2 * time.Minute)

	// The first registration's deadline has passed but the second code is live.
	f.svc.sweep("ada@example.com")
	require.NotNil(t, f.user(t, "ada@example.com"))
	assert.Equal(t, 1, f.otps.Len())
	assert.Equal(t, 1, f.svc.PendingSweeps(), "sweep re-armed for the live code")

	f.clock.Advance(2 * time.Minute)
	f.svc.sweep("ada@example.com")
	assert.Nil(t, f.user(t, "ada@example.com"))
	assert.Equal(t, 0, f.otps.Len())

	require.ErrorIs(t, f.svc.VerifyOTP(ctx, "ada@example.com", code), models.ErrExpired)
}

func TestSweep_NoopWithoutEntry(t *testing.T) {
	f := newAuthFixture(t, otpTTL)
	code := f.register(t, "ada@example.com")
	require.NoError(t, f.svc.VerifyOTP(context.Background(), "ada@example.com", code))

	f.clock.Advance(time.Hour)
	f.svc.sweep("ada@example.com")

	user := f.user(t, "ada@example.com")
	require.NotNil(t, user)
	assert.True(t, user.IsActivated)
}

func TestResendOTP(t *testing.T) {
	f := newAuthFixture(t, otpTTL)
	ctx := context.Background()

	require.ErrorIs(t, f.svc.ResendOTP(ctx, "nobody@example.com"), models.ErrNotFound)

	first := f.register(t, "ada@example.com")
	f.clock.Advance(otpTTL + time.Minute)

	second := first
	for i := 0; i < 5 && second == first; i++ {
		require.NoError(t, f.svc.ResendOTP(ctx, "ADA@example.com"))
		second = f.sender.lastCode(t)
	}
	require.NotEqual(t, first, second)
	assert.Equal(t, 1, f.otps.Len())

	require.ErrorIs(t, f.svc.VerifyOTP(ctx, "ada@example.com", first), models.ErrInvalidCode)
	require.NoError(t, f.svc.VerifyOTP(ctx, "ada@example.com", second))

	require.ErrorIs(t, f.svc.ResendOTP(ctx, "ada@example.com"), models.ErrConflict)
}

func TestLogin(t *testing.T) {
	f := newAuthFixture(t, otpTTL)
	ctx := context.Background()

	_, err := f.svc.Login(ctx, "ada@example.com", "secret123")
	require.ErrorIs(t, err, models.ErrNotFound)

	code := f.register(t, "ada@example.com")

	_, err = f.svc.Login(ctx, "ada@example.com", "wrong-password")
	require.ErrorIs(t, err, models.ErrUnauthorized)

	_, err = f.svc.Login(ctx, "ada@example.com", "secret123")
	require.ErrorIs(t, err, models.ErrForbidden)

	require.NoError(t, f.svc.VerifyOTP(ctx, "ada@example.com", code))

	session, err := f.svc.Login(ctx, "Ada@example.com", "secret123")
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, "ada@example.com", session.User.Email)
	assert.Equal(t, models.RoleParticipant, session.User.Role)

	claims, err := f.svc.Authenticate(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, claims.UserID)
	assert.Equal(t, "Ada", claims.Name)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestLogout_RevokesSession(t *testing.T) {
	f := newAuthFixture(t, otpTTL)
	ctx := context.Background()

	code := f.register(t, "ada@example.com")
	require.NoError(t, f.svc.VerifyOTP(ctx, "ada@example.com", code))
	session, err := f.svc.Login(ctx, "ada@example.com", "secret123")
	require.NoError(t, err)

	claims, err := f.svc.Authenticate(ctx, session.Token)
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, claims))

	_, err = f.svc.Authenticate(ctx, session.Token)
	require.ErrorIs(t, err, models.ErrUnauthorized)

	_, err = f.svc.Authenticate(ctx, "garbage")
	require.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestCurrentUser(t *testing.T) {
	f := newAuthFixture(t, otpTTL)
	ctx := context.Background()

	f.register(t, "ada@example.com")
	id := f.user(t, "ada@example.com").ID

	user, err := f.svc.CurrentUser(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)

	_, err = f.svc.CurrentUser(ctx, "missing")
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestGenerateOTP(t *testing.T) {
	for i := 0; i < 100; i++ {
		code, err := generateOTP(6)
		require.NoError(t, err)
		require.Len(t, code, 6)
		for _, c := range code {
			require.True(t, c >= '0' && c <= '9', "non-digit in %q", code)
		}
	}
}

func TestHumanDuration(t *testing.T) {
	assert.Equal(t, "3 minutes", humanDuration(3*time.Minute))
	assert.Equal(t, "1 minute", humanDuration(time.Minute))
	assert.Equal(t, "40ms", humanDuration(40*time.Millisecond))
}
