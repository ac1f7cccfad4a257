package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"storefront/internal/models"
)

func (r *GormRepo) AddRefreshToken(ctx context.Context, t *models.RefreshToken) error {
	return r.DB.WithContext(ctx).Create(t).Error
}

func (r *GormRepo) FindRefreshToken(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	var token models.RefreshToken
	err := r.DB.WithContext(ctx).Where("token_hash = ?", tokenHash).First(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *GormRepo) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	return r.DB.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("token_hash = ?", tokenHash).
		Update("revoked", true).Error
}

// RevokeUserSessions kills every session the user holds. Used on
// password reset.
func (r *GormRepo) RevokeUserSessions(ctx context.Context, userID uuid.UUID) error {
	return r.DB.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("user_id = ?", userID).
		Update("revoked", true).Error
}

func (r *GormRepo) AddActionToken(ctx context.Context, t *models.ActionToken) error {
	return r.DB.WithContext(ctx).Create(t).Error
}

// ConsumeActionToken marks a one-shot token used, atomically. A token
// already used, expired, or of the wrong purpose does not match.
func (r *GormRepo) ConsumeActionToken(ctx context.Context, tokenHash string, purpose models.TokenPurpose) (*models.ActionToken, error) {
	var token models.ActionToken
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.ActionToken{}).
			Where("token_hash = ? AND purpose = ? AND used = ? AND expires_at > ?",
				tokenHash, purpose, false, time.Now().Unix()).
			Update("used", true)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Where("token_hash = ?", tokenHash).First(&token).Error
	})
	if err != nil {
		return nil, err
	}
	return &token, nil
}
