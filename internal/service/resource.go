package service

import (
	"context"
	"strings"
	"time"

	"github.com/eventhon/eventhon/internal/models"
	"github.com/microcosm-cc/bluemonday"
)

// notBeforeToday rejects t when its calendar day in loc is earlier than
// today's. Time of day is ignored.
func notBeforeToday(t, now time.Time, loc *time.Location, what string) error {
	if t.IsZero() {
		return models.InvalidInput("%s is required", what)
	}
	if startOfDay(t, loc).Before(startOfDay(now, loc)) {
		return models.InvalidInput("%s cannot be in the past", what)
	}
	return nil
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// textCleaner strips markup from user-supplied text.
type textCleaner struct {
	policy *bluemonday.Policy
}

func newTextCleaner() textCleaner {
	return textCleaner{policy: bluemonday.StrictPolicy()}
}

func (c textCleaner) clean(s string) string {
	return strings.TrimSpace(c.policy.Sanitize(s))
}

// cleanList sanitises each element and drops the ones left empty.
func (c textCleaner) cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if v := c.clean(item); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

func without(ids []string, i int) []string {
	out := make([]string, 0, len(ids)-1)
	out = append(out, ids[:i]...)
	return append(out, ids[i+1:]...)
}

// userResolver looks users up by id once per request.
type userResolver struct {
	users UserStore
	cache map[string]*models.User
}

func newUserResolver(users UserStore) *userResolver {
	return &userResolver{users: users, cache: make(map[string]*models.User)}
}

func (r *userResolver) get(ctx context.Context, id string) (*models.User, error) {
	if u, ok := r.cache[id]; ok {
		return u, nil
	}
	u, err := r.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.cache[id] = u
	return u, nil
}

// summary falls back to a bare id for users that no longer exist.
func (r *userResolver) summary(ctx context.Context, id string) (models.UserSummary, error) {
	u, err := r.get(ctx, id)
	if err != nil {
		return models.UserSummary{}, err
	}
	if u == nil {
		return models.UserSummary{ID: id}, nil
	}
	return u.Summary(), nil
}

// summaries skips participants whose account is gone.
func (r *userResolver) summaries(ctx context.Context, ids []string) ([]models.UserSummary, error) {
	out := make([]models.UserSummary, 0, len(ids))
	for _, id := range ids {
		u, err := r.get(ctx, id)
		if err != nil {
			return nil, err
		}
		if u != nil {
			out = append(out, u.Summary())
		}
	}
	return out, nil
}
