package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/eventhon/eventhon/internal/models"
	"github.com/sirupsen/logrus"
)

type UserRepository struct {
	client    DynamoAPI
	tableName string
	logger    *logrus.Logger
	now       func() time.Time
}

func NewUserRepository(client DynamoAPI, tableName string, logger *logrus.Logger) *UserRepository {
	return &UserRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
		now:       time.Now,
	}
}

// FindByEmail returns nil, nil when no user is registered under email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       itemKey(models.UserPK(email), (&models.User{}).GetSK()),
	})
	if err != nil {
		r.logger.WithError(err).Error("Failed to get user from DynamoDB")
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if result.Item == nil {
		return nil, nil
	}

	var user models.User
	if err := attributevalue.UnmarshalMap(result.Item, &user); err != nil {
		r.logger.WithError(err).Error("Failed to unmarshal user from DynamoDB")
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}

	return &user, nil
}

// FindByID looks the user up through the id index. Returns nil, nil when absent.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	result, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(indexGSI1),
		KeyConditionExpression: aws.String("GSI1PK = :gsi1pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":gsi1pk": stringValue(models.UserIDKey(id)),
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		r.logger.WithError(err).Error("Failed to query user by id")
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}

	if len(result.Items) == 0 {
		return nil, nil
	}

	var user models.User
	if err := attributevalue.UnmarshalMap(result.Items[0], &user); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}

	return &user, nil
}

// Insert creates the user. Fails with a conflict when the email is taken.
func (r *UserRepository) Insert(ctx context.Context, user *models.User) error {
	now := r.now()
	user.CreatedAt = now
	user.UpdatedAt = now

	return r.put(ctx, user, "attribute_not_exists(PK)", nil)
}

// ReplacePending overwrites a user record that has not been activated yet.
// Fails with a conflict when the stored user is already activated.
func (r *UserRepository) ReplacePending(ctx context.Context, user *models.User) error {
	user.UpdatedAt = r.now()

	return r.put(ctx, user, "attribute_not_exists(PK) OR is_activated = :false", map[string]types.AttributeValue{
		":false": &types.AttributeValueMemberBOOL{Value: false},
	})
}

func (r *UserRepository) put(ctx context.Context, user *models.User, condition string, values map[string]types.AttributeValue) error {
	item, err := attributevalue.MarshalMap(user)
	if err != nil {
		r.logger.WithError(err).Error("Failed to marshal user for DynamoDB")
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	item[attrPK] = stringValue(user.GetPK())
	item[attrSK] = stringValue(user.GetSK())
	item[attrGSI1PK] = stringValue(models.UserIDKey(user.ID))
	item[attrGSI1SK] = stringValue(user.GetSK())

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(r.tableName),
		Item:                      item,
		ConditionExpression:       aws.String(condition),
		ExpressionAttributeValues: values,
	})
	if err != nil {
		if isConditionFailed(err) {
			return models.Conflict("User already exists")
		}
		r.logger.WithError(err).Error("Failed to write user to DynamoDB")
		return fmt.Errorf("failed to write user: %w", err)
	}

	return nil
}

func (r *UserRepository) UpdateActivation(ctx context.Context, email string, activated bool) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 itemKey(models.UserPK(email), (&models.User{}).GetSK()),
		UpdateExpression:    aws.String("SET is_activated = :activated, updated_at = :updated_at"),
		ConditionExpression: aws.String("attribute_exists(PK)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":activated":  &types.AttributeValueMemberBOOL{Value: activated},
			":updated_at": timeValue(r.now()),
		},
	})
	if err != nil {
		if isConditionFailed(err) {
			return models.NotFound("User not found")
		}
		r.logger.WithError(err).Error("Failed to update user activation in DynamoDB")
		return fmt.Errorf("failed to update user activation: %w", err)
	}

	return nil
}

// DeleteByEmail removes the user only while it is still unactivated. It
// reports whether a record was deleted.
func (r *UserRepository) DeleteByEmail(ctx context.Context, email string) (bool, error) {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 itemKey(models.UserPK(email), (&models.User{}).GetSK()),
		ConditionExpression: aws.String("attribute_exists(PK) AND is_activated = :false"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":false": &types.AttributeValueMemberBOOL{Value: false},
		},
	})
	if err != nil {
		if isConditionFailed(err) {
			return false, nil
		}
		r.logger.WithError(err).Error("Failed to delete user from DynamoDB")
		return false, fmt.Errorf("failed to delete user: %w", err)
	}

	return true, nil
}
