package service

import (
	"context"
	"io"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/eventhon/eventhon/internal/config"
	"github.com/eventhon/eventhon/internal/metrics"
	"github.com/eventhon/eventhon/internal/models"
	"github.com/eventhon/eventhon/internal/notify"
	"github.com/eventhon/eventhon/internal/repository"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2030, 6, 15, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingSender struct {
	mu   sync.Mutex
	sent []notify.Message
	err  error
}

func (r *recordingSender) Send(_ context.Context, to, subject, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, notify.Message{To: to, Subject: subject, Body: body})
	return nil
}

func (r *recordingSender) setErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *recordingSender) messages() []notify.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Message(nil), r.sent...)
}

func (r *recordingSender) last(t *testing.T) notify.Message {
	t.Helper()
	msgs := r.messages()
	require.NotEmpty(t, msgs, "no message sent")
	return msgs[len(msgs)-1]
}

var otpPattern = regexp.MustCompile(`Your OTP is: (\d+)\.`)

// lastCode extracts the code from the most recent OTP mail.
func (r *recordingSender) lastCode(t *testing.T) string {
	t.Helper()
	m := otpPattern.FindStringSubmatch(r.last(t).Body)
	require.Len(t, m, 2, "OTP mail body did not contain a code")
	return m[1]
}

func newTestRecorder() *metrics.Collector {
	return metrics.NewCollector(prometheus.NewRegistry())
}

func newTestConfig(ttl time.Duration) *config.Config {
	return &config.Config{
		JWT:      config.JWTConfig{SecretKey: testSecret, TokenExpiry: 7 * 24 * time.Hour},
		OTP:      config.OTPConfig{Length: 6, Expiry: ttl, Store: config.OTPStoreMemory},
		Password: config.PasswordConfig{HashCost: bcrypt.MinCost},
	}
}

type authFixture struct {
	svc      *AuthService
	users    *repository.MemoryUserRepository
	otps     *repository.MemoryOTPRepository
	sender   *recordingSender
	denylist *repository.MemoryTokenDenylist
	clock    *fakeClock
}

// newAuthFixture uses a fake clock for expiry checks. Sweep timers still run
// on real time, so a long ttl keeps them from firing during the test.
func newAuthFixture(t *testing.T, ttl time.Duration) *authFixture {
	t.Helper()
	clock := newFakeClock()
	f := &authFixture{
		users:    repository.NewMemoryUserRepository(),
		otps:     repository.NewMemoryOTPRepositoryWithClock(clock.Now),
		sender:   &recordingSender{},
		denylist: repository.NewMemoryTokenDenylist(),
		clock:    clock,
	}
	f.svc = newAuthService(t, f, ttl)
	f.svc.now = clock.Now
	return f
}

// newRealTimeAuthFixture lets sweeps fire against the wall clock.
func newRealTimeAuthFixture(t *testing.T, ttl time.Duration) *authFixture {
	t.Helper()
	f := &authFixture{
		users:    repository.NewMemoryUserRepository(),
		otps:     repository.NewMemoryOTPRepository(),
		sender:   &recordingSender{},
		denylist: repository.NewMemoryTokenDenylist(),
	}
	f.svc = newAuthService(t, f, ttl)
	return f
}

func newAuthService(t *testing.T, f *authFixture, ttl time.Duration) *AuthService {
	t.Helper()
	cfg := newTestConfig(ttl)
	tokens, err := NewJWTService(&cfg.JWT, newTestLogger())
	require.NoError(t, err)

	svc := NewAuthService(f.users, f.otps, f.sender, tokens, f.denylist, cfg, newTestRecorder(), newTestLogger())
	t.Cleanup(svc.Shutdown)
	return svc
}

func (f *authFixture) register(t *testing.T, email string) string {
	t.Helper()
	require.NoError(t, f.svc.Register(context.Background(), RegisterInput{
		Name:     "Ada",
		Email:    email,
		Password: "secret123",
		Role:     models.RoleParticipant,
	}))
	return f.sender.lastCode(t)
}

func (f *authFixture) user(t *testing.T, email string) *models.User {
	t.Helper()
	u, err := f.users.FindByEmail(context.Background(), email)
	require.NoError(t, err)
	return u
}

func wrongCode(code string) string {
	b := []byte(code)
	b[0] = '0' + (b[0]-'0'+1)%10
	return string(b)
}
