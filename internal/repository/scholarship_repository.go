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

const scholarshipPrefix = "SCHOLARSHIP#"

type ScholarshipRepository struct {
	client    DynamoAPI
	tableName string
	logger    *logrus.Logger
	now       func() time.Time
}

func NewScholarshipRepository(client DynamoAPI, tableName string, logger *logrus.Logger) *ScholarshipRepository {
	return &ScholarshipRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
		now:       time.Now,
	}
}

func (r *ScholarshipRepository) Create(ctx context.Context, scholarship *models.Scholarship) error {
	now := r.now()
	scholarship.CreatedAt = now
	scholarship.UpdatedAt = now

	item, err := attributevalue.MarshalMap(scholarship)
	if err != nil {
		return fmt.Errorf("failed to marshal scholarship: %w", err)
	}

	item[attrPK] = stringValue(scholarship.GetPK())
	item[attrSK] = stringValue(scholarship.GetSK())
	item[attrGSI1PK] = stringValue(models.OrganizerKey(scholarship.OrganizerID))
	item[attrGSI1SK] = stringValue(scholarshipPrefix + scholarship.Deadline.UTC().Format(time.RFC3339) + "#" + scholarship.ID)

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		if isConditionFailed(err) {
			return models.Conflict("Scholarship already exists")
		}
		r.logger.WithError(err).Error("Failed to create scholarship in DynamoDB")
		return fmt.Errorf("failed to create scholarship: %w", err)
	}

	return nil
}

// Get returns nil, nil when the scholarship does not exist.
func (r *ScholarshipRepository) Get(ctx context.Context, id string) (*models.Scholarship, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       itemKey(models.ScholarshipPK(id), "METADATA"),
	})
	if err != nil {
		r.logger.WithError(err).Error("Failed to get scholarship from DynamoDB")
		return nil, fmt.Errorf("failed to get scholarship: %w", err)
	}

	if result.Item == nil {
		return nil, nil
	}

	var scholarship models.Scholarship
	if err := attributevalue.UnmarshalMap(result.Item, &scholarship); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scholarship: %w", err)
	}

	return &scholarship, nil
}

func (r *ScholarshipRepository) Update(ctx context.Context, scholarship *models.Scholarship) error {
	scholarship.UpdatedAt = r.now()

	input, err := updateFields(r.tableName, itemKey(scholarship.GetPK(), scholarship.GetSK()), map[string]any{
		"title":         scholarship.Title,
		"degrees":       scholarship.Degrees,
		"courses":       scholarship.Courses,
		"nationalities": scholarship.Nationalities,
		"funding":       scholarship.Funding,
		"deadline":      scholarship.Deadline,
		attrGSI1SK:      scholarshipPrefix + scholarship.Deadline.UTC().Format(time.RFC3339) + "#" + scholarship.ID,
	}, scholarship.UpdatedAt)
	if err != nil {
		return err
	}

	if _, err := r.client.UpdateItem(ctx, input); err != nil {
		if isConditionFailed(err) {
			return models.NotFound("Scholarship not found")
		}
		r.logger.WithError(err).Error("Failed to update scholarship in DynamoDB")
		return fmt.Errorf("failed to update scholarship: %w", err)
	}

	return nil
}

func (r *ScholarshipRepository) UpdateParticipants(ctx context.Context, id string, participants []string) error {
	input, err := updateFields(r.tableName, itemKey(models.ScholarshipPK(id), "METADATA"), map[string]any{
		"participants": participants,
	}, r.now())
	if err != nil {
		return err
	}

	if _, err := r.client.UpdateItem(ctx, input); err != nil {
		if isConditionFailed(err) {
			return models.NotFound("Scholarship not found")
		}
		r.logger.WithError(err).Error("Failed to update scholarship participants in DynamoDB")
		return fmt.Errorf("failed to update scholarship participants: %w", err)
	}

	return nil
}

func (r *ScholarshipRepository) Delete(ctx context.Context, id string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       itemKey(models.ScholarshipPK(id), "METADATA"),
	})
	if err != nil {
		return fmt.Errorf("failed to delete scholarship: %w", err)
	}

	return nil
}

func (r *ScholarshipRepository) List(ctx context.Context) ([]models.Scholarship, error) {
	items, err := scanByPrefix(ctx, r.client, r.tableName, scholarshipPrefix, "", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to scan scholarships: %w", err)
	}
	return unmarshalScholarships(items)
}

func (r *ScholarshipRepository) ListByOrganizer(ctx context.Context, organizerID string) ([]models.Scholarship, error) {
	items, err := queryOrganizer(ctx, r.client, r.tableName, models.OrganizerKey(organizerID), scholarshipPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to query scholarships by organizer: %w", err)
	}
	return unmarshalScholarships(items)
}

func (r *ScholarshipRepository) ListByParticipant(ctx context.Context, userID string) ([]models.Scholarship, error) {
	items, err := scanByPrefix(ctx, r.client, r.tableName, scholarshipPrefix, "contains(participants, :user_id)", map[string]types.AttributeValue{
		":user_id": stringValue(userID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan registered scholarships: %w", err)
	}
	return unmarshalScholarships(items)
}

func unmarshalScholarships(items []map[string]types.AttributeValue) ([]models.Scholarship, error) {
	scholarships := make([]models.Scholarship, 0, len(items))
	if err := attributevalue.UnmarshalListOfMaps(items, &scholarships); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scholarships: %w", err)
	}
	return scholarships, nil
}
