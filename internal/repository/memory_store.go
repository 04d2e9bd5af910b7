package repository

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/eventhon/eventhon/internal/models"
)

// In-memory counterparts of the DynamoDB repositories, for local development
// without a table. They honour the same conditional-write semantics.

type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]models.User // keyed by normalised email
	now   func() time.Time
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]models.User), now: time.Now}
}

func (r *MemoryUserRepository) FindByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[models.NormalizeEmail(email)]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

func (r *MemoryUserRepository) FindByID(_ context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, user := range r.users {
		if user.ID == id {
			u := user
			return &u, nil
		}
	}
	return nil, nil
}

func (r *MemoryUserRepository) Insert(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := models.NormalizeEmail(user.Email)
	if _, ok := r.users[key]; ok {
		return models.Conflict("User already exists")
	}

	now := r.now()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[key] = *user
	return nil
}

func (r *MemoryUserRepository) ReplacePending(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := models.NormalizeEmail(user.Email)
	if existing, ok := r.users[key]; ok && existing.IsActivated {
		return models.Conflict("User already exists")
	}

	user.UpdatedAt = r.now()
	r.users[key] = *user
	return nil
}

func (r *MemoryUserRepository) UpdateActivation(_ context.Context, email string, activated bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := models.NormalizeEmail(email)
	user, ok := r.users[key]
	if !ok {
		return models.NotFound("User not found")
	}

	user.IsActivated = activated
	user.UpdatedAt = r.now()
	r.users[key] = user
	return nil
}

func (r *MemoryUserRepository) DeleteByEmail(_ context.Context, email string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := models.NormalizeEmail(email)
	user, ok := r.users[key]
	if !ok || user.IsActivated {
		return false, nil
	}

	delete(r.users, key)
	return true, nil
}

type MemoryEventRepository struct {
	mu     sync.RWMutex
	events map[string]models.Event
	now    func() time.Time
}

func NewMemoryEventRepository() *MemoryEventRepository {
	return &MemoryEventRepository{events: make(map[string]models.Event), now: time.Now}
}

func cloneEvent(e models.Event) models.Event {
	e.Participants = slices.Clone(e.Participants)
	e.EvaluationMarkers = slices.Clone(e.EvaluationMarkers)
	return e
}

func (r *MemoryEventRepository) Create(_ context.Context, event *models.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.events[event.ID]; ok {
		return models.Conflict("Event already exists")
	}

	now := r.now()
	event.CreatedAt = now
	event.UpdatedAt = now
	r.events[event.ID] = cloneEvent(*event)
	return nil
}

func (r *MemoryEventRepository) Get(_ context.Context, id string) (*models.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	event, ok := r.events[id]
	if !ok {
		return nil, nil
	}
	e := cloneEvent(event)
	return &e, nil
}

func (r *MemoryEventRepository) Update(_ context.Context, event *models.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.events[event.ID]
	if !ok {
		return models.NotFound("Event not found")
	}

	event.UpdatedAt = r.now()
	stored.Title = event.Title
	stored.Description = event.Description
	stored.Date = event.Date
	stored.Location = event.Location
	stored.MaxParticipants = event.MaxParticipants
	stored.Category = event.Category
	stored.PaymentType = event.PaymentType
	stored.EvaluationMarkers = slices.Clone(event.EvaluationMarkers)
	stored.UpdatedAt = event.UpdatedAt
	r.events[event.ID] = stored
	return nil
}

func (r *MemoryEventRepository) UpdateParticipants(_ context.Context, id string, participants []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.events[id]
	if !ok {
		return models.NotFound("Event not found")
	}

	stored.Participants = slices.Clone(participants)
	stored.UpdatedAt = r.now()
	r.events[id] = stored
	return nil
}

func (r *MemoryEventRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.events, id)
	return nil
}

func (r *MemoryEventRepository) List(_ context.Context) ([]models.Event, error) {
	return r.filter(func(models.Event) bool { return true }), nil
}

func (r *MemoryEventRepository) ListByOrganizer(_ context.Context, organizerID string) ([]models.Event, error) {
	return r.filter(func(e models.Event) bool { return e.OrganizerID == organizerID }), nil
}

func (r *MemoryEventRepository) ListByParticipant(_ context.Context, userID string) ([]models.Event, error) {
	return r.filter(func(e models.Event) bool { return slices.Contains(e.Participants, userID) }), nil
}

func (r *MemoryEventRepository) filter(keep func(models.Event) bool) []models.Event {
	r.mu.RLock()
	defer r.mu.RUnlock()

	events := make([]models.Event, 0, len(r.events))
	for _, e := range r.events {
		if keep(e) {
			events = append(events, cloneEvent(e))
		}
	}
	sort.Slice(events, func(i, j int) bool {
		if !events[i].Date.Equal(events[j].Date) {
			return events[i].Date.Before(events[j].Date)
		}
		return events[i].ID < events[j].ID
	})
	return events
}

type MemoryScholarshipRepository struct {
	mu           sync.RWMutex
	scholarships map[string]models.Scholarship
	now          func() time.Time
}

func NewMemoryScholarshipRepository() *MemoryScholarshipRepository {
	return &MemoryScholarshipRepository{scholarships: make(map[string]models.Scholarship), now: time.Now}
}

func cloneScholarship(s models.Scholarship) models.Scholarship {
	s.Degrees = slices.Clone(s.Degrees)
	s.Courses = slices.Clone(s.Courses)
	s.Nationalities = slices.Clone(s.Nationalities)
	s.Participants = slices.Clone(s.Participants)
	return s
}

func (r *MemoryScholarshipRepository) Create(_ context.Context, scholarship *models.Scholarship) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.scholarships[scholarship.ID]; ok {
		return models.Conflict("Scholarship already exists")
	}

	now := r.now()
	scholarship.CreatedAt = now
	scholarship.UpdatedAt = now
	r.scholarships[scholarship.ID] = cloneScholarship(*scholarship)
	return nil
}

func (r *MemoryScholarshipRepository) Get(_ context.Context, id string) (*models.Scholarship, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	scholarship, ok := r.scholarships[id]
	if !ok {
		return nil, nil
	}
	s := cloneScholarship(scholarship)
	return &s, nil
}

func (r *MemoryScholarshipRepository) Update(_ context.Context, scholarship *models.Scholarship) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.scholarships[scholarship.ID]
	if !ok {
		return models.NotFound("Scholarship not found")
	}

	scholarship.UpdatedAt = r.now()
	stored.Title = scholarship.Title
	stored.Degrees = slices.Clone(scholarship.Degrees)
	stored.Courses = slices.Clone(scholarship.Courses)
	stored.Nationalities = slices.Clone(scholarship.Nationalities)
	stored.Funding = scholarship.Funding
	stored.Deadline = scholarship.Deadline
	stored.UpdatedAt = scholarship.UpdatedAt
	r.scholarships[scholarship.ID] = stored
	return nil
}

func (r *MemoryScholarshipRepository) UpdateParticipants(_ context.Context, id string, participants []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.scholarships[id]
	if !ok {
		return models.NotFound("Scholarship not found")
	}

	stored.Participants = slices.Clone(participants)
	stored.UpdatedAt = r.now()
	r.scholarships[id] = stored
	return nil
}

func (r *MemoryScholarshipRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.scholarships, id)
	return nil
}

func (r *MemoryScholarshipRepository) List(_ context.Context) ([]models.Scholarship, error) {
	return r.filter(func(models.Scholarship) bool { return true }), nil
}

func (r *MemoryScholarshipRepository) ListByOrganizer(_ context.Context, organizerID string) ([]models.Scholarship, error) {
	return r.filter(func(s models.Scholarship) bool { return s.OrganizerID == organizerID }), nil
}

func (r *MemoryScholarshipRepository) ListByParticipant(_ context.Context, userID string) ([]models.Scholarship, error) {
	return r.filter(func(s models.Scholarship) bool { return slices.Contains(s.Participants, userID) }), nil
}

func (r *MemoryScholarshipRepository) filter(keep func(models.Scholarship) bool) []models.Scholarship {
	r.mu.RLock()
	defer r.mu.RUnlock()

	scholarships := make([]models.Scholarship, 0, len(r.scholarships))
	for _, s := range r.scholarships {
		if keep(s) {
			scholarships = append(scholarships, cloneScholarship(s))
		}
	}
	sort.Slice(scholarships, func(i, j int) bool {
		if !scholarships[i].Deadline.Equal(scholarships[j].Deadline) {
			return scholarships[i].Deadline.Before(scholarships[j].Deadline)
		}
		return scholarships[i].ID < scholarships[j].ID
	})
	return scholarships
}
