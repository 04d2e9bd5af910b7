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

const eventPrefix = "EVENT#"

type EventRepository struct {
	client    DynamoAPI
	tableName string
	logger    *logrus.Logger
	now       func() time.Time
}

func NewEventRepository(client DynamoAPI, tableName string, logger *logrus.Logger) *EventRepository {
	return &EventRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
		now:       time.Now,
	}
}

func (r *EventRepository) Create(ctx context.Context, event *models.Event) error {
	now := r.now()
	event.CreatedAt = now
	event.UpdatedAt = now

	item, err := attributevalue.MarshalMap(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	item[attrPK] = stringValue(event.GetPK())
	item[attrSK] = stringValue(event.GetSK())
	item[attrGSI1PK] = stringValue(models.OrganizerKey(event.OrganizerID))
	item[attrGSI1SK] = stringValue(eventPrefix + event.Date.UTC().Format(time.RFC3339) + "#" + event.ID)

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		if isConditionFailed(err) {
			return models.Conflict("Event already exists")
		}
		r.logger.WithError(err).Error("Failed to create event in DynamoDB")
		return fmt.Errorf("failed to create event: %w", err)
	}

	return nil
}

// Get returns nil, nil when the event does not exist.
func (r *EventRepository) Get(ctx context.Context, id string) (*models.Event, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       itemKey(models.EventPK(id), "METADATA"),
	})
	if err != nil {
		r.logger.WithError(err).Error("Failed to get event from DynamoDB")
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	if result.Item == nil {
		return nil, nil
	}

	var event models.Event
	if err := attributevalue.UnmarshalMap(result.Item, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	return &event, nil
}

// Update writes the organizer-editable fields. Participants are left alone.
func (r *EventRepository) Update(ctx context.Context, event *models.Event) error {
	event.UpdatedAt = r.now()

	input, err := updateFields(r.tableName, itemKey(event.GetPK(), event.GetSK()), map[string]any{
		"title":              event.Title,
		"description":        event.Description,
		"date":               event.Date,
		"location":           event.Location,
		"max_participants":   event.MaxParticipants,
		"category":           event.Category,
		"payment_type":       event.PaymentType,
		"evaluation_markers": event.EvaluationMarkers,
		attrGSI1SK:           eventPrefix + event.Date.UTC().Format(time.RFC3339) + "#" + event.ID,
	}, event.UpdatedAt)
	if err != nil {
		return err
	}

	if _, err := r.client.UpdateItem(ctx, input); err != nil {
		if isConditionFailed(err) {
			return models.NotFound("Event not found")
		}
		r.logger.WithError(err).Error("Failed to update event in DynamoDB")
		return fmt.Errorf("failed to update event: %w", err)
	}

	return nil
}

func (r *EventRepository) UpdateParticipants(ctx context.Context, id string, participants []string) error {
	input, err := updateFields(r.tableName, itemKey(models.EventPK(id), "METADATA"), map[string]any{
		"participants": participants,
	}, r.now())
	if err != nil {
		return err
	}

	if _, err := r.client.UpdateItem(ctx, input); err != nil {
		if isConditionFailed(err) {
			return models.NotFound("Event not found")
		}
		r.logger.WithError(err).Error("Failed to update event participants in DynamoDB")
		return fmt.Errorf("failed to update event participants: %w", err)
	}

	return nil
}

func (r *EventRepository) Delete(ctx context.Context, id string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       itemKey(models.EventPK(id), "METADATA"),
	})
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}

	return nil
}

func (r *EventRepository) List(ctx context.Context) ([]models.Event, error) {
	items, err := scanByPrefix(ctx, r.client, r.tableName, eventPrefix, "", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to scan events: %w", err)
	}
	return unmarshalEvents(items)
}

func (r *EventRepository) ListByOrganizer(ctx context.Context, organizerID string) ([]models.Event, error) {
	items, err := queryOrganizer(ctx, r.client, r.tableName, models.OrganizerKey(organizerID), eventPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to query events by organizer: %w", err)
	}
	return unmarshalEvents(items)
}

func (r *EventRepository) ListByParticipant(ctx context.Context, userID string) ([]models.Event, error) {
	items, err := scanByPrefix(ctx, r.client, r.tableName, eventPrefix, "contains(participants, :user_id)", map[string]types.AttributeValue{
		":user_id": stringValue(userID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan registered events: %w", err)
	}
	return unmarshalEvents(items)
}

func unmarshalEvents(items []map[string]types.AttributeValue) ([]models.Event, error) {
	events := make([]models.Event, 0, len(items))
	if err := attributevalue.UnmarshalListOfMaps(items, &events); err != nil {
		return nil, fmt.Errorf("failed to unmarshal events: %w", err)
	}
	return events, nil
}
