package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/eventhon/eventhon/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// redisRetention keeps an entry in Redis past its logical expiry so that
// verification and the expiry sweep can still tell "expired" from "absent".
const redisRetention = time.Minute

// RedisOTPRepository stores OTP entries in Redis so that several server
// processes can share pending verifications.
type RedisOTPRepository struct {
	client redis.UniversalClient
	prefix string
	logger *logrus.Logger
	now    func() time.Time
}

func NewRedisOTPRepository(client redis.UniversalClient, logger *logrus.Logger) *RedisOTPRepository {
	return &RedisOTPRepository{
		client: client,
		prefix: "otp",
		logger: logger,
		now:    time.Now,
	}
}

func (r *RedisOTPRepository) key(email string) string {
	return fmt.Sprintf("%s:%s", r.prefix, email)
}

func (r *RedisOTPRepository) Put(ctx context.Context, email, code string, ttl time.Duration) error {
	now := r.now()
	entry := models.OTPEntry{
		Email:     email,
		Code:      code,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal OTP entry: %w", err)
	}

	if err := r.client.Set(ctx, r.key(email), data, ttl+redisRetention).Err(); err != nil {
		r.logger.WithError(err).Error("Failed to store OTP in Redis")
		return fmt.Errorf("failed to store OTP: %w", err)
	}

	return nil
}

func (r *RedisOTPRepository) Get(ctx context.Context, email string) (*models.OTPEntry, error) {
	data, err := r.client.Get(ctx, r.key(email)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		r.logger.WithError(err).Error("Failed to get OTP from Redis")
		return nil, fmt.Errorf("failed to get OTP: %w", err)
	}

	var entry models.OTPEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal OTP entry: %w", err)
	}

	return &entry, nil
}

func (r *RedisOTPRepository) Delete(ctx context.Context, email string) error {
	if err := r.client.Del(ctx, r.key(email)).Err(); err != nil {
		return fmt.Errorf("failed to delete OTP: %w", err)
	}
	return nil
}

func (r *RedisOTPRepository) IsExpired(ctx context.Context, email string) (bool, error) {
	entry, err := r.Get(ctx, email)
	if err != nil || entry == nil {
		return false, err
	}
	return entry.ExpiredAt(r.now()), nil
}
