package repo

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/models"
)

func TestCreateUserIfNotExists_DuplicateEmail(t *testing.T) {
	t.Parallel()

	r := New(initTestDB(t))
	ctx := context.Background()

	first := &models.User{ID: uuid.New(), Email: "ada@example.com", PasswordHash: "h1", Role: "user"}
	require.NoError(t, r.CreateUserIfNotExists(ctx, first))

	// A second registration arrives with its own freshly minted id; only
	// the email may decide whether the account exists.
	dup := &models.User{ID: uuid.New(), Email: "ada@example.com", PasswordHash: "h2", Role: "user"}
	err := r.CreateUserIfNotExists(ctx, dup)
	assert.ErrorIs(t, err, ErrAlreadyExists)

	var count int64
	require.NoError(t, r.DB.Model(&models.User{}).Where("email = ?", "ada@example.com").Count(&count).Error)
	assert.EqualValues(t, 1, count)

	got, err := r.GetUserByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, "h1", got.PasswordHash)
}
