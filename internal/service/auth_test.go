package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/models"
	"storefront/internal/notify"
	"storefront/internal/repo"
)

func (f *fakePublisher) last() notify.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.events) == 0 {
		return notify.Event{}
	}
	return f.events[len(f.events)-1]
}

func newTestAuthService(t *testing.T) (*AuthService, *fakePublisher) {
	t.Helper()

	pub := &fakePublisher{}
	svc := &AuthService{
		Repo:      repo.New(initTestDB(t)),
		Cache:     newFakeCache(),
		Publisher: pub,
		JWTSecret: []byte("jwt-test-secret"),
	}
	return svc, pub
}

// registerVerified walks the full signup flow so login tests start from
// a usable account.
func registerVerified(t *testing.T, svc *AuthService, pub *fakePublisher, email, password string) *models.User {
	t.Helper()

	ctx := context.Background()
	user, err := svc.Register(ctx, email, password)
	require.NoError(t, err)

	ev := pub.last()
	require.Equal(t, notify.EventUserRegistered, ev.Type)
	require.NotEmpty(t, ev.Token)
	require.NoError(t, svc.VerifyEmail(ctx, ev.Token))
	return user
}

func TestRegister(t *testing.T) {
	t.Parallel()

	svc, pub := newTestAuthService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "  Ada@Example.COM ", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, "user", user.Role)
	assert.False(t, user.EmailVerified)
	assert.NotEqual(t, "correct horse", user.PasswordHash)

	ev := pub.last()
	assert.Equal(t, notify.EventUserRegistered, ev.Type)
	assert.Equal(t, "ada@example.com", ev.Email)
	assert.NotEmpty(t, ev.Token)

	_, err = svc.Register(ctx, "ada@example.com", "another password")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestLogin(t *testing.T) {
	t.Parallel()

	svc, pub := newTestAuthService(t)
	ctx := context.Background()
	registerVerified(t, svc, pub, "ada@example.com", "correct horse")

	t.Run("success", func(t *testing.T) {
		res, err := svc.Login(ctx, "ada@example.com", "correct horse")
		require.NoError(t, err)
		assert.NotEmpty(t, res.AccessToken)
		assert.NotEmpty(t, res.SessionToken)
		assert.False(t, res.IsAdmin)

		claims, err := AccessClaimsFromToken(res.AccessToken, svc.JWTSecret)
		require.NoError(t, err)
		assert.Equal(t, "user", claims.Role)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Login(ctx, "ada@example.com", "wrong")
		assert.ErrorIs(t, err, ErrAuth)
	})

	t.Run("unknown account", func(t *testing.T) {
		_, err := svc.Login(ctx, "nobody@example.com", "whatever")
		assert.ErrorIs(t, err, ErrAuth)
	})
}

func TestLogin_UnverifiedEmailRejected(t *testing.T) {
	t.Parallel()

	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "ada@example.com", "correct horse")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "ada@example.com", "correct horse")
	assert.ErrorIs(t, err, ErrAuth)
}

func TestVerifyEmail_TokenIsOneShot(t *testing.T) {
	t.Parallel()

	svc, pub := newTestAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "ada@example.com", "correct horse")
	require.NoError(t, err)
	token := pub.last().Token

	require.NoError(t, svc.VerifyEmail(ctx, token))
	assert.ErrorIs(t, svc.VerifyEmail(ctx, token), ErrNotFound)
	assert.ErrorIs(t, svc.VerifyEmail(ctx, "not-a-token"), ErrNotFound)
}

func TestGetUser(t *testing.T) {
	t.Parallel()

	svc, pub := newTestAuthService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "ada@example.com", "correct horse")
	require.NoError(t, err)

	// First read populates the identity-keyed cache entry.
	got, err := svc.GetUser(ctx, user.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", got.Email)
	assert.False(t, got.EmailVerified)

	// Verification invalidates the entry; the next read must see the
	// new state instead of the cached copy.
	require.NoError(t, svc.VerifyEmail(ctx, pub.last().Token))
	got, err = svc.GetUser(ctx, user.ID.String())
	require.NoError(t, err)
	assert.True(t, got.EmailVerified)

	_, err = svc.GetUser(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.GetUser(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRefresh(t *testing.T) {
	t.Parallel()

	svc, pub := newTestAuthService(t)
	ctx := context.Background()
	registerVerified(t, svc, pub, "ada@example.com", "correct horse")

	res, err := svc.Login(ctx, "ada@example.com", "correct horse")
	require.NoError(t, err)

	refreshed, err := svc.Refresh(ctx, res.SessionToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)
	assert.Equal(t, res.SessionToken, refreshed.SessionToken)

	require.NoError(t, svc.Logout(ctx, res.SessionToken))
	_, err = svc.Refresh(ctx, res.SessionToken)
	assert.ErrorIs(t, err, ErrAuth)

	_, err = svc.Refresh(ctx, "never-issued")
	assert.ErrorIs(t, err, ErrAuth)
}

func TestPasswordResetFlow(t *testing.T) {
	t.Parallel()

	svc, pub := newTestAuthService(t)
	ctx := context.Background()
	registerVerified(t, svc, pub, "ada@example.com", "old password")

	// A live session that the reset must kill.
	login, err := svc.Login(ctx, "ada@example.com", "old password")
	require.NoError(t, err)

	require.NoError(t, svc.RequestPasswordReset(ctx, "ada@example.com"))
	ev := pub.last()
	require.Equal(t, notify.EventPasswordReset, ev.Type)
	require.NotEmpty(t, ev.Token)

	require.NoError(t, svc.ResetPassword(ctx, ev.Token, "new password"))

	_, err = svc.Login(ctx, "ada@example.com", "old password")
	assert.ErrorIs(t, err, ErrAuth)
	_, err = svc.Login(ctx, "ada@example.com", "new password")
	assert.NoError(t, err)

	_, err = svc.Refresh(ctx, login.SessionToken)
	assert.ErrorIs(t, err, ErrAuth)

	// The reset token is one-shot too.
	assert.ErrorIs(t, svc.ResetPassword(ctx, ev.Token, "yet another"), ErrNotFound)
}

func TestRequestPasswordReset_UnknownEmailNotDisclosed(t *testing.T) {
	t.Parallel()

	svc, pub := newTestAuthService(t)
	ctx := context.Background()

	require.NoError(t, svc.RequestPasswordReset(ctx, "nobody@example.com"))
	assert.Empty(t, pub.types())
}

func TestAccessToken_RoundTrip(t *testing.T) {
	t.Parallel()

	secret := []byte("jwt-test-secret")
	exp := time.Now().Add(15 * time.Minute)

	token, err := CreateAccessToken(secret, "user-1", "admin", exp)
	require.NoError(t, err)

	claims, err := AccessClaimsFromToken(token, secret)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "admin", claims.Role)

	_, err = AccessClaimsFromToken(token, []byte("different-secret"))
	assert.Error(t, err)

	expired, err := CreateAccessToken(secret, "user-1", "user", time.Now().Add(-time.Minute))
	require.NoError(t, err)
	_, err = AccessClaimsFromToken(expired, secret)
	assert.Error(t, err)
}
