package repository

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/eventhon/eventhon/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newPendingUser(id, email string) *models.User {
	return &models.User{
		ID:           id,
		Name:         "Ada",
		Email:        email,
		PasswordHash: "hash",
		Role:         models.RoleParticipant,
	}
}

func TestUserRepository_InsertAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newFakeDynamo(), "table", newTestLogger())

	require.NoError(t, repo.Insert(ctx, newPendingUser("u1", "ada@example.com")))

	byEmail, err := repo.FindByEmail(ctx, "ADA@example.com")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, "u1", byEmail.ID)
	assert.Equal(t, "hash", byEmail.PasswordHash)
	assert.False(t, byEmail.IsActivated)
	assert.False(t, byEmail.CreatedAt.IsZero())

	byID, err := repo.FindByID(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "ada@example.com", byID.Email)

	missing, err := repo.FindByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)

	missing, err = repo.FindByID(ctx, "u404")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUserRepository_InsertDuplicateIsConflict(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newFakeDynamo(), "table", newTestLogger())

	require.NoError(t, repo.Insert(ctx, newPendingUser("u1", "ada@example.com")))
	err := repo.Insert(ctx, newPendingUser("u2", "ada@example.com"))
	require.ErrorIs(t, err, models.ErrConflict)
}

func TestUserRepository_ReplacePendingOnlyWhileUnactivated(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newFakeDynamo(), "table", newTestLogger())

	require.NoError(t, repo.Insert(ctx, newPendingUser("u1", "ada@example.com")))

	replacement := newPendingUser("u1", "ada@example.com")
	replacement.Name = "Ada Lovelace"
	require.NoError(t, repo.ReplacePending(ctx, replacement))

	got, err := repo.FindByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", got.Name)

	require.NoError(t, repo.UpdateActivation(ctx, "ada@example.com", true))
	err = repo.ReplacePending(ctx, newPendingUser("u1", "ada@example.com"))
	require.ErrorIs(t, err, models.ErrConflict)
}

func TestUserRepository_UpdateActivation(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newFakeDynamo(), "table", newTestLogger())

	err := repo.UpdateActivation(ctx, "ghost@example.com", true)
	require.ErrorIs(t, err, models.ErrNotFound)

	require.NoError(t, repo.Insert(ctx, newPendingUser("u1", "ada@example.com")))
	require.NoError(t, repo.UpdateActivation(ctx, "ada@example.com", true))

	got, err := repo.FindByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.True(t, got.IsActivated)
}

func TestUserRepository_DeleteByEmailSparesActivatedUsers(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newFakeDynamo(), "table", newTestLogger())

	require.NoError(t, repo.Insert(ctx, newPendingUser("u1", "pending@example.com")))
	require.NoError(t, repo.Insert(ctx, newPendingUser("u2", "active@example.com")))
	require.NoError(t, repo.UpdateActivation(ctx, "active@example.com", true))

	deleted, err := repo.DeleteByEmail(ctx, "pending@example.com")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repo.DeleteByEmail(ctx, "active@example.com")
	require.NoError(t, err)
	assert.False(t, deleted)

	deleted, err = repo.DeleteByEmail(ctx, "pending@example.com")
	require.NoError(t, err)
	assert.False(t, deleted)

	still, err := repo.FindByEmail(ctx, "active@example.com")
	require.NoError(t, err)
	assert.NotNil(t, still)
}

func TestUserRepository_DriverErrorsAreWrapped(t *testing.T) {
	db := newFakeDynamo()
	db.err = errors.New("throttled")
	repo := NewUserRepository(db, "table", newTestLogger())

	_, err := repo.FindByEmail(context.Background(), "ada@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
	assert.NotErrorIs(t, err, models.ErrNotFound)
}
