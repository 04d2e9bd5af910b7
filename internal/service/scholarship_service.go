package service

import (
	"context"
	"errors"
	"time"

	"github.com/eventhon/eventhon/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ScholarshipService manages scholarships. Rosters are unbounded and roster
// changes send no mail.
type ScholarshipService struct {
	scholarships ScholarshipStore
	users        UserStore
	logger       *logrus.Logger
	cleaner      textCleaner
	loc          *time.Location
	now          func() time.Time
}

func NewScholarshipService(scholarships ScholarshipStore, users UserStore, loc *time.Location, logger *logrus.Logger) *ScholarshipService {
	if loc == nil {
		loc = time.Local
	}
	return &ScholarshipService{
		scholarships: scholarships,
		users:        users,
		logger:       logger,
		cleaner:      newTextCleaner(),
		loc:          loc,
		now:          time.Now,
	}
}

func (s *ScholarshipService) Create(ctx context.Context, organizerID string, in models.ScholarshipInput) (*models.Scholarship, error) {
	ctx, span := tracer.Start(ctx, "ScholarshipService.Create")
	defer span.End()

	in = s.cleanInput(in)
	if err := s.validate(in); err != nil {
		return nil, err
	}

	scholarship := &models.Scholarship{
		ID:            uuid.New().String(),
		Title:         in.Title,
		Degrees:       in.Degrees,
		Courses:       in.Courses,
		Nationalities: in.Nationalities,
		Funding:       in.Funding,
		Deadline:      in.Deadline,
		OrganizerID:   organizerID,
		Participants:  []string{},
	}

	if err := s.scholarships.Create(ctx, scholarship); err != nil {
		return nil, models.Internal("Error creating scholarship", err)
	}

	s.logger.WithFields(logrus.Fields{
		"scholarship_id": scholarship.ID,
		"organizer_id":   organizerID,
	}).Info("Scholarship created")
	return scholarship, nil
}

func (s *ScholarshipService) Get(ctx context.Context, id string) (*models.ScholarshipView, error) {
	scholarship, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, newUserResolver(s.users), scholarship)
}

func (s *ScholarshipService) List(ctx context.Context) ([]models.ScholarshipView, error) {
	scholarships, err := s.scholarships.List(ctx)
	if err != nil {
		return nil, models.Internal("Error fetching scholarships", err)
	}
	return s.views(ctx, scholarships)
}

func (s *ScholarshipService) ListByOrganizer(ctx context.Context, organizerID string) ([]models.ScholarshipView, error) {
	scholarships, err := s.scholarships.ListByOrganizer(ctx, organizerID)
	if err != nil {
		return nil, models.Internal("Error fetching scholarships by organizer", err)
	}
	return s.views(ctx, scholarships)
}

func (s *ScholarshipService) ListRegistered(ctx context.Context, userID string) ([]models.ScholarshipView, error) {
	scholarships, err := s.scholarships.ListByParticipant(ctx, userID)
	if err != nil {
		return nil, models.Internal("Error fetching registered scholarships", err)
	}
	return s.views(ctx, scholarships)
}

func (s *ScholarshipService) Participants(ctx context.Context, id string) ([]models.UserSummary, error) {
	scholarship, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	participants, err := newUserResolver(s.users).summaries(ctx, scholarship.Participants)
	if err != nil {
		return nil, models.Internal("Error fetching participants", err)
	}
	return participants, nil
}

func (s *ScholarshipService) Update(ctx context.Context, id, callerID string, in models.ScholarshipInput) (*models.ScholarshipView, error) {
	ctx, span := tracer.Start(ctx, "ScholarshipService.Update", trace.WithAttributes(attribute.String("scholarship.id", id)))
	defer span.End()

	scholarship, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if scholarship.OrganizerID != callerID {
		return nil, models.Forbidden("Only the organizer can update this scholarship")
	}

	in = s.cleanInput(in)
	if err := s.validate(in); err != nil {
		return nil, err
	}

	scholarship.Title = in.Title
	scholarship.Degrees = in.Degrees
	scholarship.Courses = in.Courses
	scholarship.Nationalities = in.Nationalities
	scholarship.Funding = in.Funding
	scholarship.Deadline = in.Deadline

	if err := s.scholarships.Update(ctx, scholarship); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		return nil, models.Internal("Failed to update scholarship", err)
	}

	return s.view(ctx, newUserResolver(s.users), scholarship)
}

// Delete removes a scholarship regardless of owner. Reserved for
// administrators.
func (s *ScholarshipService) Delete(ctx context.Context, id string) error {
	if _, err := s.load(ctx, id); err != nil {
		return err
	}
	if err := s.scholarships.Delete(ctx, id); err != nil {
		return models.Internal("Failed to delete scholarship", err)
	}
	return nil
}

func (s *ScholarshipService) DeleteOwned(ctx context.Context, id, organizerID string) error {
	scholarship, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if scholarship.OrganizerID != organizerID {
		return models.Forbidden("Only the organizer can delete this scholarship")
	}
	if err := s.scholarships.Delete(ctx, id); err != nil {
		return models.Internal("Failed to delete scholarship", err)
	}
	return nil
}

func (s *ScholarshipService) Register(ctx context.Context, id, userID string) error {
	ctx, span := tracer.Start(ctx, "ScholarshipService.Register", trace.WithAttributes(attribute.String("scholarship.id", id)))
	defer span.End()

	scholarship, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if scholarship.OrganizerID == userID {
		return models.Forbidden("Organizers cannot register for their own scholarship")
	}
	if indexOf(scholarship.Participants, userID) >= 0 {
		return models.Conflict("User already registered")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return models.Internal("Registration failed", err)
	}
	if user == nil {
		return models.NotFound("User not found")
	}

	return s.saveParticipants(ctx, id, append(scholarship.Participants, userID))
}

func (s *ScholarshipService) CancelRegistration(ctx context.Context, id, userID string) error {
	ctx, span := tracer.Start(ctx, "ScholarshipService.CancelRegistration", trace.WithAttributes(attribute.String("scholarship.id", id)))
	defer span.End()

	scholarship, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	idx := indexOf(scholarship.Participants, userID)
	if idx < 0 {
		return models.NotFound("User is not registered for this scholarship")
	}
	return s.saveParticipants(ctx, id, without(scholarship.Participants, idx))
}

func (s *ScholarshipService) RemoveParticipant(ctx context.Context, id, organizerID, userID string) error {
	ctx, span := tracer.Start(ctx, "ScholarshipService.RemoveParticipant", trace.WithAttributes(attribute.String("scholarship.id", id)))
	defer span.End()

	scholarship, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if scholarship.OrganizerID != organizerID {
		return models.Forbidden("Only the organizer can remove participants")
	}
	idx := indexOf(scholarship.Participants, userID)
	if idx < 0 {
		return models.InvalidInput("User is not a participant")
	}
	return s.saveParticipants(ctx, id, without(scholarship.Participants, idx))
}

func (s *ScholarshipService) load(ctx context.Context, id string) (*models.Scholarship, error) {
	scholarship, err := s.scholarships.Get(ctx, id)
	if err != nil {
		return nil, models.Internal("Error fetching scholarship", err)
	}
	if scholarship == nil {
		return nil, models.NotFound("Scholarship not found")
	}
	return scholarship, nil
}

func (s *ScholarshipService) saveParticipants(ctx context.Context, id string, participants []string) error {
	if err := s.scholarships.UpdateParticipants(ctx, id, participants); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return err
		}
		return models.Internal("Failed to update participants", err)
	}
	return nil
}

func (s *ScholarshipService) cleanInput(in models.ScholarshipInput) models.ScholarshipInput {
	in.Title = s.cleaner.clean(in.Title)
	in.Degrees = s.cleaner.cleanList(in.Degrees)
	in.Courses = s.cleaner.cleanList(in.Courses)
	in.Nationalities = s.cleaner.cleanList(in.Nationalities)
	in.Funding = s.cleaner.clean(in.Funding)
	return in
}

func (s *ScholarshipService) validate(in models.ScholarshipInput) error {
	if in.Title == "" {
		return models.InvalidInput("Title is required")
	}
	return notBeforeToday(in.Deadline, s.now(), s.loc, "Scholarship deadline")
}

func (s *ScholarshipService) views(ctx context.Context, scholarships []models.Scholarship) ([]models.ScholarshipView, error) {
	resolver := newUserResolver(s.users)
	out := make([]models.ScholarshipView, 0, len(scholarships))
	for i := range scholarships {
		v, err := s.view(ctx, resolver, &scholarships[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, nil
}

func (s *ScholarshipService) view(ctx context.Context, resolver *userResolver, sc *models.Scholarship) (*models.ScholarshipView, error) {
	organizer, err := resolver.summary(ctx, sc.OrganizerID)
	if err != nil {
		return nil, models.Internal("Error fetching scholarship organizer", err)
	}
	participants, err := resolver.summaries(ctx, sc.Participants)
	if err != nil {
		return nil, models.Internal("Error fetching participants", err)
	}

	return &models.ScholarshipView{
		ID:            sc.ID,
		Title:         sc.Title,
		Degrees:       nonNil(sc.Degrees),
		Courses:       nonNil(sc.Courses),
		Nationalities: nonNil(sc.Nationalities),
		Funding:       sc.Funding,
		Deadline:      sc.Deadline,
		Organizer:     organizer,
		Participants:  participants,
		CreatedAt:     sc.CreatedAt,
		UpdatedAt:     sc.UpdatedAt,
	}, nil
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
