package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"net/mail"
	"strings"
	"time"

	"github.com/eventhon/eventhon/internal/config"
	"github.com/eventhon/eventhon/internal/metrics"
	"github.com/eventhon/eventhon/internal/models"
	"github.com/eventhon/eventhon/internal/notify"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"
)

const (
	otpSubject       = "Verify your email for Eventhon Signup"
	minPasswordLen   = 6
	sweepTimeout     = 10 * time.Second
	notificationKind = "otp"
)

var tracer = otel.Tracer("github.com/eventhon/eventhon/internal/service")

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     models.Role
}

// AuthService runs signup with email confirmation, login and logout.
//
// A registration leaves an unactivated user plus a pending code in the OTP
// store. Either VerifyOTP activates the user, or the deferred sweep deletes
// both once the code has expired. All steps touching one email are serialised.
type AuthService struct {
	users    UserStore
	otps     OTPStore
	sender   notify.Sender
	tokens   *JWTService
	denylist TokenDenylist
	metrics  metrics.Recorder
	logger   *logrus.Logger

	sweeper  *Sweeper
	locks    *keyedMutex
	otpLen   int
	otpTTL   time.Duration
	hashCost int
	now      func() time.Time
}

// NewAuthService wires the workflow. denylist may be nil, in which case
// logout only clears the client cookie.
func NewAuthService(users UserStore, otps OTPStore, sender notify.Sender, tokens *JWTService, denylist TokenDenylist, cfg *config.Config, recorder metrics.Recorder, logger *logrus.Logger) *AuthService {
	return &AuthService{
		users:    users,
		otps:     otps,
		sender:   sender,
		tokens:   tokens,
		denylist: denylist,
		metrics:  recorder,
		logger:   logger,
		sweeper:  NewSweeper(),
		locks:    newKeyedMutex(),
		otpLen:   cfg.OTP.Length,
		otpTTL:   cfg.OTP.Expiry,
		hashCost: cfg.Password.HashCost,
		now:      time.Now,
	}
}

// Register creates an unactivated account and mails it a code. Registering
// again while the account is still unactivated replaces the pending record
// and invalidates the previous code.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) error {
	ctx, span := tracer.Start(ctx, "AuthService.Register")
	defer span.End()

	email := models.NormalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	if err := validateRegistration(in, email); err != nil {
		return err
	}
	span.SetAttributes(attribute.String("user.role", string(in.Role)))

	unlock := s.locks.Lock(email)
	defer unlock()

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return s.fail(span, models.Internal("Error registering user", err))
	}
	if existing != nil && existing.IsActivated {
		return s.fail(span, models.Conflict("User already exists"))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return s.fail(span, models.Internal("Error registering user", fmt.Errorf("failed to hash password: %w", err)))
	}

	user := &models.User{
		Name:         in.Name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         in.Role,
	}
	if existing == nil {
		user.ID = uuid.New().String()
		err = s.users.Insert(ctx, user)
	} else {
		user.ID = existing.ID
		user.CreatedAt = existing.CreatedAt
		err = s.users.ReplacePending(ctx, user)
	}
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return s.fail(span, err)
		}
		return s.fail(span, models.Internal("Error registering user", err))
	}

	if err := s.issueOTP(ctx, email); err != nil {
		return s.fail(span, err)
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":  user.ID,
		"email":    email,
		"replaced": existing != nil,
	}).Info("User registered, OTP sent")
	return nil
}

// ResendOTP issues a fresh code for an account that is still unactivated.
func (s *AuthService) ResendOTP(ctx context.Context, email string) error {
	ctx, span := tracer.Start(ctx, "AuthService.ResendOTP")
	defer span.End()

	email = models.NormalizeEmail(email)
	if email == "" {
		return s.fail(span, models.InvalidInput("Email is required"))
	}

	unlock := s.locks.Lock(email)
	defer unlock()

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return s.fail(span, models.Internal("Error resending OTP", err))
	}
	if user == nil {
		return s.fail(span, models.NotFound("User not found"))
	}
	if user.IsActivated {
		return s.fail(span, models.Conflict("Account is already verified"))
	}

	return s.fail(span, s.issueOTP(ctx, email))
}

// issueOTP stores a new code, arms the sweep and mails the code. The caller
// holds the email lock. A mail failure leaves the pending state for the
// sweep to reclaim.
func (s *AuthService) issueOTP(ctx context.Context, email string) error {
	code, err := generateOTP(s.otpLen)
	if err != nil {
		return models.Internal("Failed to generate OTP", err)
	}

	if err := s.otps.Put(ctx, email, code, s.otpTTL); err != nil {
		return models.Internal("Failed to store OTP", err)
	}
	s.scheduleSweep(email, s.otpTTL)
	s.metrics.RecordOTPIssued()

	body := fmt.Sprintf("Your OTP is: %s. It is valid for %s.", code, humanDuration(s.otpTTL))
	err = s.sender.Send(ctx, email, otpSubject, body)
	s.metrics.RecordNotification(notificationKind, err)
	if err != nil {
		s.logger.WithError(err).WithField("email", email).Error("Failed to send OTP email")
		return models.Internal("Failed to send OTP email", err)
	}

	return nil
}

func (s *AuthService) scheduleSweep(email string, delay time.Duration) {
	s.sweeper.Schedule(email, delay, func() { s.sweep(email) })
}

// sweep reclaims an expired pending registration. It re-reads the OTP store
// rather than trusting the state seen when it was scheduled.
func (s *AuthService) sweep(email string) {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "AuthService.sweep")
	defer span.End()

	unlock := s.locks.Lock(email)
	defer unlock()

	log := s.logger.WithField("email", email)

	entry, err := s.otps.Get(ctx, email)
	if err != nil {
		log.WithError(err).Error("Expiry sweep failed to read OTP")
		s.metrics.RecordSweep(metrics.SweepError)
		return
	}
	if entry == nil {
		s.metrics.RecordSweep(metrics.SweepNoop)
		return
	}

	now := s.now()
	if !entry.ExpiredAt(now) {
		s.scheduleSweep(email, entry.ExpiresAt.Sub(now)+time.Millisecond)
		s.metrics.RecordSweep(metrics.SweepRearmed)
		return
	}

	deleted, err := s.users.DeleteByEmail(ctx, email)
	if err != nil {
		log.WithError(err).Error("Expiry sweep failed to delete user")
		s.metrics.RecordSweep(metrics.SweepError)
		return
	}
	if err := s.otps.Delete(ctx, email); err != nil {
		log.WithError(err).Error("Expiry sweep failed to delete OTP")
		s.metrics.RecordSweep(metrics.SweepError)
		return
	}

	log.WithField("user_deleted", deleted).Info("Deleted unverified user")
	s.metrics.RecordSweep(metrics.SweepReclaimed)
}

// VerifyOTP activates the account when code matches the pending one. A wrong
// code leaves the pending state untouched so the user can retry.
func (s *AuthService) VerifyOTP(ctx context.Context, email, code string) error {
	ctx, span := tracer.Start(ctx, "AuthService.VerifyOTP")
	defer span.End()

	email = models.NormalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return s.fail(span, models.InvalidInput("Email and OTP are required"))
	}

	unlock := s.locks.Lock(email)
	defer unlock()

	entry, err := s.otps.Get(ctx, email)
	if err != nil {
		return s.fail(span, models.Internal("Error verifying OTP", err))
	}
	if entry == nil {
		s.metrics.RecordOTPVerification(metrics.VerifyMissing)
		return s.fail(span, models.NewError(models.KindExpired, "OTP expired or not requested"))
	}

	if entry.ExpiredAt(s.now()) {
		s.sweeper.Cancel(email)
		if err := s.otps.Delete(ctx, email); err != nil {
			return s.fail(span, models.Internal("Error verifying OTP", err))
		}
		if _, err := s.users.DeleteByEmail(ctx, email); err != nil {
			return s.fail(span, models.Internal("Error verifying OTP", err))
		}
		s.metrics.RecordOTPVerification(metrics.VerifyExpired)
		return s.fail(span, models.NewError(models.KindExpired, "OTP expired"))
	}

	if subtle.ConstantTimeCompare([]byte(entry.Code), []byte(code)) != 1 {
		s.metrics.RecordOTPVerification(metrics.VerifyInvalidCode)
		return s.fail(span, models.NewError(models.KindInvalidCode, "Invalid OTP"))
	}

	if err := s.users.UpdateActivation(ctx, email, true); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.sweeper.Cancel(email)
			if err := s.otps.Delete(ctx, email); err != nil {
				s.logger.WithError(err).WithField("email", email).Warn("Failed to delete OTP of vanished user")
			}
			return s.fail(span, err)
		}
		return s.fail(span, models.Internal("Error verifying OTP", err))
	}

	s.sweeper.Cancel(email)
	if err := s.otps.Delete(ctx, email); err != nil {
		return s.fail(span, models.Internal("Error verifying OTP", err))
	}

	s.metrics.RecordOTPVerification(metrics.VerifySuccess)
	s.logger.WithField("email", email).Info("Account verified")
	return nil
}

// Login checks credentials and activation and mints a session token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.Session, error) {
	ctx, span := tracer.Start(ctx, "AuthService.Login")
	defer span.End()

	email = models.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, s.fail(span, models.InvalidInput("Email and password are required"))
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, s.fail(span, models.Internal("Error logging in", err))
	}
	if user == nil {
		return nil, s.fail(span, models.NotFound("User not found"))
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, s.fail(span, models.NewError(models.KindUnauthorized, "Invalid credentials"))
	}

	if !user.IsActivated {
		return nil, s.fail(span, models.Forbidden("Please verify your email to activate your account"))
	}

	token, expiresAt, err := s.tokens.GenerateToken(user)
	if err != nil {
		return nil, s.fail(span, models.Internal("Error logging in", err))
	}

	return &models.Session{
		Token:     token,
		ExpiresAt: expiresAt,
		User: models.SessionUser{
			ID:    user.ID,
			Name:  user.Name,
			Email: user.Email,
			Role:  user.Role,
		},
	}, nil
}

// Authenticate resolves a session token into its claims, rejecting revoked
// tokens.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*Claims, error) {
	claims, err := s.tokens.VerifyToken(token)
	if err != nil {
		return nil, models.WrapError(models.KindUnauthorized, "Invalid or expired token", err)
	}

	if s.denylist != nil && claims.ID != "" {
		revoked, err := s.denylist.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, models.Internal("Failed to check session", err)
		}
		if revoked {
			return nil, models.NewError(models.KindUnauthorized, "Session has been logged out")
		}
	}

	return claims, nil
}

// Logout revokes the session token until it would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, claims *Claims) error {
	if s.denylist == nil || claims == nil || claims.ID == "" || claims.ExpiresAt == nil {
		return nil
	}

	if err := s.denylist.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return models.Internal("Error logging out", err)
	}
	return nil
}

// CurrentUser returns the stored account behind a session.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, models.Internal("Error fetching user", err)
	}
	if user == nil {
		return nil, models.NotFound("User not found")
	}
	return user, nil
}

// PendingSweeps reports how many expiry sweeps are armed.
func (s *AuthService) PendingSweeps() int {
	return s.sweeper.Pending()
}

// Shutdown cancels pending sweeps.
func (s *AuthService) Shutdown() {
	s.sweeper.Stop()
}

func (s *AuthService) fail(span trace.Span, err error) error {
	if err == nil {
		return nil
	}
	if models.KindOf(err) == models.KindInternal {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func validateRegistration(in RegisterInput, email string) error {
	if in.Name == "" {
		return models.InvalidInput("Name is required")
	}
	if email == "" {
		return models.InvalidInput("Email is required")
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return models.InvalidInput("Invalid email address")
	}
	if len(in.Password) < minPasswordLen {
		return models.InvalidInput("Password must be at least %d characters", minPasswordLen)
	}
	if !in.Role.Valid() {
		return models.InvalidInput("Role must be %q or %q", models.RoleOrganizer, models.RoleParticipant)
	}
	return nil
}

// generateOTP returns length decimal digits drawn uniformly, leading zeros
// included.
func generateOTP(length int) (string, error) {
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b.WriteString(num.String())
	}
	return b.String(), nil
}

func humanDuration(d time.Duration) string {
	if d >= time.Minute && d%time.Minute == 0 {
		if m := int(d / time.Minute); m != 1 {
			return fmt.Sprintf("%d minutes", m)
		}
		return "1 minute"
	}
	return d.String()
}
