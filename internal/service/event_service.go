package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eventhon/eventhon/internal/metrics"
	"github.com/eventhon/eventhon/internal/models"
	"github.com/eventhon/eventhon/internal/notify"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const eventDateLayout = "Mon Jan 2 2006"

// EventService manages events and their capped participant rosters.
//
// Roster changes are read-modify-write against the store without a version
// check, so two registrations racing for the last seat can both succeed.
type EventService struct {
	events  EventStore
	users   UserStore
	sender  notify.Sender
	metrics metrics.Recorder
	logger  *logrus.Logger
	cleaner textCleaner
	loc     *time.Location
	now     func() time.Time
}

func NewEventService(events EventStore, users UserStore, sender notify.Sender, recorder metrics.Recorder, loc *time.Location, logger *logrus.Logger) *EventService {
	if loc == nil {
		loc = time.Local
	}
	return &EventService{
		events:  events,
		users:   users,
		sender:  sender,
		metrics: recorder,
		logger:  logger,
		cleaner: newTextCleaner(),
		loc:     loc,
		now:     time.Now,
	}
}

func (s *EventService) Create(ctx context.Context, organizerID string, in models.EventInput) (*models.Event, error) {
	ctx, span := tracer.Start(ctx, "EventService.Create")
	defer span.End()

	in = s.cleanInput(in)
	if err := s.validate(in); err != nil {
		return nil, err
	}

	event := &models.Event{
		ID:                uuid.New().String(),
		Title:             in.Title,
		Description:       in.Description,
		Date:              in.Date,
		Location:          in.Location,
		MaxParticipants:   in.MaxParticipants,
		Category:          in.Category,
		PaymentType:       in.PaymentType,
		OrganizerID:       organizerID,
		Participants:      []string{},
		EvaluationMarkers: in.EvaluationMarkers,
	}

	if err := s.events.Create(ctx, event); err != nil {
		return nil, models.Internal("Error creating event", err)
	}

	s.logger.WithFields(logrus.Fields{
		"event_id":     event.ID,
		"organizer_id": organizerID,
	}).Info("Event created")
	return event, nil
}

func (s *EventService) Get(ctx context.Context, id string) (*models.EventView, error) {
	event, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, newUserResolver(s.users), event)
}

// List returns every event, leaving out those organised by excludeOrganizer
// when it is set.
func (s *EventService) List(ctx context.Context, excludeOrganizer string) ([]models.EventView, error) {
	events, err := s.events.List(ctx)
	if err != nil {
		return nil, models.Internal("Error fetching events", err)
	}
	if excludeOrganizer != "" {
		kept := events[:0]
		for _, e := range events {
			if e.OrganizerID != excludeOrganizer {
				kept = append(kept, e)
			}
		}
		events = kept
	}
	return s.views(ctx, events)
}

func (s *EventService) ListByOrganizer(ctx context.Context, organizerID string) ([]models.EventView, error) {
	events, err := s.events.ListByOrganizer(ctx, organizerID)
	if err != nil {
		return nil, models.Internal("Error fetching events by organizer", err)
	}
	return s.views(ctx, events)
}

func (s *EventService) ListRegistered(ctx context.Context, userID string) ([]models.EventView, error) {
	events, err := s.events.ListByParticipant(ctx, userID)
	if err != nil {
		return nil, models.Internal("Error fetching registered events", err)
	}
	return s.views(ctx, events)
}

func (s *EventService) Participants(ctx context.Context, id string) ([]models.UserSummary, error) {
	event, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	participants, err := newUserResolver(s.users).summaries(ctx, event.Participants)
	if err != nil {
		return nil, models.Internal("Error fetching participants", err)
	}
	return participants, nil
}

// Update replaces the editable fields. Only the organizer may update, and the
// capacity cannot drop below the number already registered.
func (s *EventService) Update(ctx context.Context, id, callerID string, in models.EventInput) (*models.EventView, error) {
	ctx, span := tracer.Start(ctx, "EventService.Update", trace.WithAttributes(attribute.String("event.id", id)))
	defer span.End()

	event, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if event.OrganizerID != callerID {
		return nil, models.Forbidden("Only the organizer can update this event")
	}

	in = s.cleanInput(in)
	if err := s.validate(in); err != nil {
		return nil, err
	}
	if in.MaxParticipants < len(event.Participants) {
		return nil, models.InvalidInput("Max participants cannot be lower than the %d already registered", len(event.Participants))
	}

	event.Title = in.Title
	event.Description = in.Description
	event.Date = in.Date
	event.Location = in.Location
	event.MaxParticipants = in.MaxParticipants
	event.Category = in.Category
	event.PaymentType = in.PaymentType
	event.EvaluationMarkers = in.EvaluationMarkers

	if err := s.events.Update(ctx, event); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		return nil, models.Internal("Failed to update event", err)
	}

	return s.view(ctx, newUserResolver(s.users), event)
}

// Delete removes an event regardless of owner. Reserved for administrators.
func (s *EventService) Delete(ctx context.Context, id string) error {
	if _, err := s.load(ctx, id); err != nil {
		return err
	}
	if err := s.events.Delete(ctx, id); err != nil {
		return models.Internal("Failed to delete event", err)
	}
	return nil
}

// DeleteOwned removes an event on behalf of its organizer.
func (s *EventService) DeleteOwned(ctx context.Context, id, organizerID string) error {
	event, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if event.OrganizerID != organizerID {
		return models.Forbidden("Only the organizer can delete this event")
	}
	if err := s.events.Delete(ctx, id); err != nil {
		return models.Internal("Failed to delete event", err)
	}
	return nil
}

// Register adds userID to the roster and mails a confirmation. A mail
// failure is reported after the registration has been stored.
func (s *EventService) Register(ctx context.Context, id, userID string) error {
	ctx, span := tracer.Start(ctx, "EventService.Register", trace.WithAttributes(attribute.String("event.id", id)))
	defer span.End()

	event, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if event.OrganizerID == userID {
		return models.Forbidden("Organizers cannot register for their own event")
	}
	if indexOf(event.Participants, userID) >= 0 {
		return models.Conflict("User already registered")
	}
	if event.IsFull() {
		return models.Conflict("Event is full")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return models.Internal("Registration failed", err)
	}
	if user == nil {
		return models.NotFound("User not found")
	}

	if err := s.saveParticipants(ctx, id, append(event.Participants, userID)); err != nil {
		return err
	}

	body := fmt.Sprintf("Hi %s,\n\nThank you for registering for %q.\nDate: %s\nLocation: %s\n\nBest regards,\nEvent Management Team",
		user.Name, event.Title, event.Date.In(s.loc).Format(eventDateLayout), event.Location)
	return s.notify(ctx, "event_registration", user.Email, "Registration Successful for Event: "+event.Title, body)
}

func (s *EventService) CancelRegistration(ctx context.Context, id, userID string) error {
	ctx, span := tracer.Start(ctx, "EventService.CancelRegistration", trace.WithAttributes(attribute.String("event.id", id)))
	defer span.End()

	event, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	idx := indexOf(event.Participants, userID)
	if idx < 0 {
		return models.NotFound("User is not registered for this event")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return models.Internal("Failed to cancel registration", err)
	}

	if err := s.saveParticipants(ctx, id, without(event.Participants, idx)); err != nil {
		return err
	}
	if user == nil {
		return nil
	}

	body := fmt.Sprintf("Hi %s,\n\nYour registration for %q has been cancelled.\n\nBest regards,\nEvent Management Team",
		user.Name, event.Title)
	return s.notify(ctx, "event_cancellation", user.Email, "Registration Cancelled: "+event.Title, body)
}

// RemoveParticipant lets the organizer drop userID, telling them why.
func (s *EventService) RemoveParticipant(ctx context.Context, id, organizerID, userID, reason string) error {
	ctx, span := tracer.Start(ctx, "EventService.RemoveParticipant", trace.WithAttributes(attribute.String("event.id", id)))
	defer span.End()

	event, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if event.OrganizerID != organizerID {
		return models.Forbidden("Only the organizer can remove participants")
	}
	idx := indexOf(event.Participants, userID)
	if idx < 0 {
		return models.InvalidInput("User is not a participant")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return models.Internal("Failed to remove participant", err)
	}

	if err := s.saveParticipants(ctx, id, without(event.Participants, idx)); err != nil {
		return err
	}
	if user == nil {
		return nil
	}

	reason = s.cleaner.clean(reason)
	if reason == "" {
		reason = "no reason given"
	}
	body := fmt.Sprintf("Hi %s,\n\nYou have been removed from %q due to: %s.\n\nBest regards,\nEvent Management Team",
		user.Name, event.Title, reason)
	return s.notify(ctx, "event_removal", user.Email, "Removed from Event: "+event.Title, body)
}

func (s *EventService) load(ctx context.Context, id string) (*models.Event, error) {
	event, err := s.events.Get(ctx, id)
	if err != nil {
		return nil, models.Internal("Error fetching event", err)
	}
	if event == nil {
		return nil, models.NotFound("Event not found")
	}
	return event, nil
}

func (s *EventService) saveParticipants(ctx context.Context, id string, participants []string) error {
	if err := s.events.UpdateParticipants(ctx, id, participants); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return err
		}
		return models.Internal("Failed to update participants", err)
	}
	return nil
}

func (s *EventService) notify(ctx context.Context, kind, to, subject, body string) error {
	err := s.sender.Send(ctx, to, subject, body)
	s.metrics.RecordNotification(kind, err)
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{"kind": kind, "to": to}).Error("Failed to send notification")
		return models.Internal("Failed to send notification email", err)
	}
	return nil
}

func (s *EventService) cleanInput(in models.EventInput) models.EventInput {
	in.Title = s.cleaner.clean(in.Title)
	in.Description = s.cleaner.clean(in.Description)
	in.Location = s.cleaner.clean(in.Location)
	in.Category = s.cleaner.clean(in.Category)
	in.PaymentType = s.cleaner.clean(in.PaymentType)
	in.EvaluationMarkers = s.cleaner.cleanList(in.EvaluationMarkers)
	return in
}

func (s *EventService) validate(in models.EventInput) error {
	if in.Title == "" {
		return models.InvalidInput("Title is required")
	}
	if in.MaxParticipants < 1 {
		return models.InvalidInput("Max participants must be at least 1")
	}
	return notBeforeToday(in.Date, s.now(), s.loc, "Event date")
}

func (s *EventService) views(ctx context.Context, events []models.Event) ([]models.EventView, error) {
	resolver := newUserResolver(s.users)
	out := make([]models.EventView, 0, len(events))
	for i := range events {
		v, err := s.view(ctx, resolver, &events[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, nil
}

func (s *EventService) view(ctx context.Context, resolver *userResolver, e *models.Event) (*models.EventView, error) {
	organizer, err := resolver.summary(ctx, e.OrganizerID)
	if err != nil {
		return nil, models.Internal("Error fetching event organizer", err)
	}
	participants, err := resolver.summaries(ctx, e.Participants)
	if err != nil {
		return nil, models.Internal("Error fetching participants", err)
	}

	return &models.EventView{
		ID:                e.ID,
		Title:             e.Title,
		Description:       e.Description,
		Date:              e.Date,
		Location:          e.Location,
		MaxParticipants:   e.MaxParticipants,
		Category:          e.Category,
		PaymentType:       e.PaymentType,
		Organizer:         organizer,
		Participants:      participants,
		EvaluationMarkers: nonNil(e.EvaluationMarkers),
		CreatedAt:         e.CreatedAt,
		UpdatedAt:         e.UpdatedAt,
	}, nil
}
