package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"storefront/internal/cache"
	"storefront/internal/hash"
	"storefront/internal/logging"
	"storefront/internal/models"
	"storefront/internal/notify"
	"storefront/internal/repo"
)

const (
	accessTokenTTL = 15 * time.Minute
	sessionTTL     = 7 * 24 * time.Hour
	actionTokenTTL = 24 * time.Hour
	resetTokenTTL  = time.Hour
	usersCacheTTL  = time.Minute
)

type AuthService struct {
	Repo      *repo.GormRepo
	Cache     cache.Cache
	Publisher notify.Publisher
	JWTSecret []byte
}

type LoginResult struct {
	AccessToken  string
	SessionToken string
	AccessExp    time.Time
	SessionExp   time.Time
	IsAdmin      bool
}

func (s *AuthService) Register(ctx context.Context, email, password string) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "auth.register")

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password required", ErrValidation)
	}

	pwHash, err := hash.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: pwHash,
		Role:         "user",
	}
	if err := s.Repo.CreateUserIfNotExists(ctx, user); err != nil {
		if errors.Is(err, repo.ErrAlreadyExists) {
			l.Warn("register_conflict", "status", 409)
			return nil, fmt.Errorf("%w: account exists", ErrConflict)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	token, err := s.issueActionToken(ctx, user.ID, models.TokenPurposeVerifyEmail, actionTokenTTL)
	if err != nil {
		// Account exists; verification can be re-requested later.
		l.Error("verification_token_failed", "error", err)
	} else {
		s.publish(ctx, notify.Event{
			Type:   notify.EventUserRegistered,
			UserID: user.ID.String(),
			Email:  user.Email,
			Token:  token,
			At:     time.Now().UTC(),
		})
	}

	s.invalidate(ctx, cache.KeyAllUsers)
	l.Info("registered", "user_id", user.ID)
	return user, nil
}

// Login verifies credentials and opens a session. The password check is
// constant time regardless of whether the account exists.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login")

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password required", ErrValidation)
	}

	user, err := s.Repo.GetUserByEmail(ctx, email)
	if errors.Is(err, repo.ErrNotFound) {
		// Burn comparable time so absent accounts are not observable.
		hash.CheckPassword(deadHash, password)
		return nil, fmt.Errorf("%w: invalid credentials", ErrAuth)
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	if !hash.CheckPassword(user.PasswordHash, password) {
		l.Warn("login_failed", "status", 401, "reason", "bad password")
		return nil, fmt.Errorf("%w: invalid credentials", ErrAuth)
	}
	if !user.EmailVerified {
		l.Warn("login_failed", "status", 403, "reason", "email not verified")
		return nil, fmt.Errorf("%w: email not verified", ErrAuth)
	}

	accessExp := time.Now().Add(accessTokenTTL)
	accessToken, err := CreateAccessToken(s.JWTSecret, user.ID.String(), user.Role, accessExp)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	sessionToken, err := NewOpaqueToken()
	if err != nil {
		return nil, fmt.Errorf("mint session token: %w", err)
	}
	sessionExp := time.Now().Add(sessionTTL)
	if err := s.Repo.AddRefreshToken(ctx, &models.RefreshToken{
		TokenHash: Sha256Hex(sessionToken),
		UserID:    user.ID,
		ExpiresAt: sessionExp.Unix(),
	}); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}

	l.Info("login_successful", "user_id", user.ID)
	return &LoginResult{
		AccessToken:  accessToken,
		SessionToken: sessionToken,
		AccessExp:    accessExp,
		SessionExp:   sessionExp,
		IsAdmin:      user.Role == "admin",
	}, nil
}

func (s *AuthService) Logout(ctx context.Context, sessionToken string) error {
	if sessionToken == "" {
		return nil
	}
	return s.Repo.RevokeRefreshToken(ctx, Sha256Hex(sessionToken))
}

// Refresh exchanges a live session token for a fresh access token.
func (s *AuthService) Refresh(ctx context.Context, sessionToken string) (*LoginResult, error) {
	if sessionToken == "" {
		return nil, fmt.Errorf("%w: no session", ErrAuth)
	}

	session, err := s.Repo.FindRefreshToken(ctx, Sha256Hex(sessionToken))
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("%w: unknown session", ErrAuth)
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session.Revoked || session.ExpiresAt < time.Now().Unix() {
		return nil, fmt.Errorf("%w: session expired or revoked", ErrAuth)
	}

	user, err := s.Repo.GetUserByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown session user", ErrAuth)
	}

	accessExp := time.Now().Add(accessTokenTTL)
	accessToken, err := CreateAccessToken(s.JWTSecret, user.ID.String(), user.Role, accessExp)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	return &LoginResult{
		AccessToken:  accessToken,
		SessionToken: sessionToken,
		AccessExp:    accessExp,
		SessionExp:   time.Unix(session.ExpiresAt, 0),
		IsAdmin:      user.Role == "admin",
	}, nil
}

func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("%w: token required", ErrValidation)
	}

	actionToken, err := s.Repo.ConsumeActionToken(ctx, Sha256Hex(token), models.TokenPurposeVerifyEmail)
	if errors.Is(err, repo.ErrNotFound) {
		return fmt.Errorf("%w: token invalid or expired", ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("consume token: %w", err)
	}

	if err := s.Repo.MarkEmailVerified(ctx, actionToken.UserID); err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	s.invalidate(ctx, cache.KeyUser(actionToken.UserID.String()), cache.KeyAllUsers)
	return nil
}

// RequestPasswordReset always reports success to the caller; whether the
// account exists is not disclosed.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	l := logging.FromContext(ctx).With("svc", "auth.reset_request")

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return fmt.Errorf("%w: email required", ErrValidation)
	}

	user, err := s.Repo.GetUserByEmail(ctx, email)
	if errors.Is(err, repo.ErrNotFound) {
		l.Info("reset_requested_for_unknown_email")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}

	token, err := s.issueActionToken(ctx, user.ID, models.TokenPurposeResetPassword, resetTokenTTL)
	if err != nil {
		return fmt.Errorf("issue reset token: %w", err)
	}

	s.publish(ctx, notify.Event{
		Type:   notify.EventPasswordReset,
		UserID: user.ID.String(),
		Email:  user.Email,
		Token:  token,
		At:     time.Now().UTC(),
	})
	return nil
}

// ResetPassword consumes the one-shot token, replaces the hash, and
// revokes every open session for the user.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" || newPassword == "" {
		return fmt.Errorf("%w: token and new password required", ErrValidation)
	}

	actionToken, err := s.Repo.ConsumeActionToken(ctx, Sha256Hex(token), models.TokenPurposeResetPassword)
	if errors.Is(err, repo.ErrNotFound) {
		return fmt.Errorf("%w: token invalid or expired", ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("consume token: %w", err)
	}

	pwHash, err := hash.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.Repo.SetPasswordHash(ctx, actionToken.UserID, pwHash); err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	if err := s.Repo.RevokeUserSessions(ctx, actionToken.UserID); err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}

	s.invalidate(ctx, cache.KeyUser(actionToken.UserID.String()))
	return nil
}

// GetUser returns the account behind an authenticated subject, cached
// under its identity key. Verification and password reset invalidate
// that key, so a stale copy never outlives the TTL or a write.
func (s *AuthService) GetUser(ctx context.Context, id string) (*models.User, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed user id", ErrValidation)
	}

	key := cache.KeyUser(id)
	if raw, err := s.Cache.Get(ctx, key); err == nil {
		var user models.User
		if err := json.Unmarshal([]byte(raw), &user); err == nil {
			return &user, nil
		}
	}

	user, err := s.Repo.GetUserByID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("%w: user", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(user); err == nil {
		if err := s.Cache.Set(ctx, key, string(data), usersCacheTTL); err != nil {
			logging.FromContext(ctx).Warn("cache_set_failed", "key", key, "error", err)
		}
	}
	return user, nil
}

// ListUsers backs the admin user overview.
func (s *AuthService) ListUsers(ctx context.Context) ([]models.User, error) {
	if raw, err := s.Cache.Get(ctx, cache.KeyAllUsers); err == nil {
		var users []models.User
		if err := json.Unmarshal([]byte(raw), &users); err == nil {
			return users, nil
		}
	}

	users, err := s.Repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(users); err == nil {
		if err := s.Cache.Set(ctx, cache.KeyAllUsers, string(data), usersCacheTTL); err != nil {
			logging.FromContext(ctx).Warn("cache_set_failed", "key", cache.KeyAllUsers, "error", err)
		}
	}
	return users, nil
}

func (s *AuthService) issueActionToken(ctx context.Context, userID uuid.UUID, purpose models.TokenPurpose, ttl time.Duration) (string, error) {
	token, err := NewOpaqueToken()
	if err != nil {
		return "", err
	}
	err = s.Repo.AddActionToken(ctx, &models.ActionToken{
		TokenHash: Sha256Hex(token),
		Purpose:   purpose,
		UserID:    userID,
		ExpiresAt: time.Now().Add(ttl).Unix(),
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

func (s *AuthService) invalidate(ctx context.Context, keys ...string) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Del(ctx, keys...); err != nil {
		logging.FromContext(ctx).Warn("cache_invalidate_failed", "keys", keys, "error", err)
	}
}

func (s *AuthService) publish(ctx context.Context, event notify.Event) {
	if s.Publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.Publisher.Publish(pubCtx, event); err != nil {
		logging.FromContext(ctx).Error("notification_publish_failed", "type", event.Type, "error", err)
	}
}

// deadHash is a valid argon2id encoding of a throwaway password, used to
// equalize timing when the account does not exist.
var deadHash = func() string {
	h, err := hash.HashPassword("not-a-real-password")
	if err != nil {
		panic(err)
	}
	return h
}()
