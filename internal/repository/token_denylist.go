package repository

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DynamoTokenDenylist records revoked session tokens by JTI. Items carry a
// TTL attribute so DynamoDB reclaims them once the token would have expired
// anyway; IsRevoked also compares against the stored expiry because TTL
// deletion is lazy.
type DynamoTokenDenylist struct {
	client    DynamoAPI
	tableName string
	logger    *logrus.Logger
	now       func() time.Time
}

func NewDynamoTokenDenylist(client DynamoAPI, tableName string, logger *logrus.Logger) *DynamoTokenDenylist {
	return &DynamoTokenDenylist{
		client:    client,
		tableName: tableName,
		logger:    logger,
		now:       time.Now,
	}
}

func (d *DynamoTokenDenylist) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	item := map[string]types.AttributeValue{
		attrPK:      stringValue("REVOKED_TOKEN#" + jti),
		attrSK:      stringValue("METADATA"),
		"RevokedAt": timeValue(d.now()),
		"ExpiresAt": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", expiresAt.Unix())},
		"TTL":       &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", expiresAt.Unix())},
	}

	_, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item:      item,
	})
	if err != nil {
		d.logger.WithError(err).Error("Failed to mark token as revoked")
		return fmt.Errorf("failed to mark token as revoked: %w", err)
	}

	return nil
}

func (d *DynamoTokenDenylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	result, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key:       itemKey("REVOKED_TOKEN#"+jti, "METADATA"),
	})
	if err != nil {
		return false, fmt.Errorf("failed to check revoked token: %w", err)
	}

	if result.Item == nil {
		return false, nil
	}

	if n, ok := result.Item["ExpiresAt"].(*types.AttributeValueMemberN); ok {
		if sec, err := strconv.ParseInt(n.Value, 10, 64); err == nil && d.now().Unix() > sec {
			return false, nil
		}
	}

	return true, nil
}

// RedisTokenDenylist keeps revoked JTIs as keys that expire with the token.
type RedisTokenDenylist struct {
	client redis.UniversalClient
	now    func() time.Time
}

func NewRedisTokenDenylist(client redis.UniversalClient) *RedisTokenDenylist {
	return &RedisTokenDenylist{client: client, now: time.Now}
}

func (d *RedisTokenDenylist) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(d.now())
	if ttl <= 0 {
		return nil
	}

	if err := d.client.Set(ctx, "revoked_token:"+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

func (d *RedisTokenDenylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	exists, err := d.client.Exists(ctx, "revoked_token:"+jti).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check revoked token: %w", err)
	}
	return exists > 0, nil
}

// MemoryTokenDenylist is the single-process denylist used with the memory
// store backend.
type MemoryTokenDenylist struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

func NewMemoryTokenDenylist() *MemoryTokenDenylist {
	return &MemoryTokenDenylist{revoked: make(map[string]time.Time), now: time.Now}
}

func (d *MemoryTokenDenylist) Revoke(_ context.Context, jti string, expiresAt time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for id, exp := range d.revoked {
		if now.After(exp) {
			delete(d.revoked, id)
		}
	}
	if expiresAt.After(now) {
		d.revoked[jti] = expiresAt
	}
	return nil
}

func (d *MemoryTokenDenylist) IsRevoked(_ context.Context, jti string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	exp, ok := d.revoked[jti]
	return ok && !d.now().After(exp), nil
}
