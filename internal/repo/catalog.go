package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"storefront/internal/models"
)

func (r *GormRepo) GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := r.DB.WithContext(ctx).Where("code = ?", strings.ToUpper(code)).First(&coupon).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

// ActiveCoupon returns the coupon only if it is usable right now.
func (r *GormRepo) ActiveCoupon(ctx context.Context, code string) (*models.Coupon, error) {
	coupon, err := r.GetCouponByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !coupon.Active || coupon.ExpiresAt <= time.Now().Unix() {
		return nil, ErrNotFound
	}
	return coupon, nil
}

func (r *GormRepo) CreateCoupon(ctx context.Context, coupon *models.Coupon) error {
	coupon.Code = strings.ToUpper(coupon.Code)
	tx := r.DB.WithContext(ctx).Where("code = ?", coupon.Code).FirstOrCreate(coupon)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrAlreadyExists
	}
	return nil
}

func (r *GormRepo) DeactivateCoupon(ctx context.Context, code string) error {
	result := r.DB.WithContext(ctx).Model(&models.Coupon{}).
		Where("code = ?", strings.ToUpper(code)).
		Update("active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormRepo) ListPromotions(ctx context.Context, activeOnly bool) ([]models.Promotion, error) {
	q := r.DB.WithContext(ctx).Model(&models.Promotion{})
	if activeOnly {
		now := time.Now().Unix()
		q = q.Where("active = ? AND starts_at <= ? AND ends_at >= ?", true, now, now)
	}
	var promos []models.Promotion
	if err := q.Order("starts_at DESC").Find(&promos).Error; err != nil {
		return nil, err
	}
	return promos, nil
}

func (r *GormRepo) GetPromotion(ctx context.Context, id uint) (*models.Promotion, error) {
	var promo models.Promotion
	err := r.DB.WithContext(ctx).First(&promo, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &promo, nil
}

func (r *GormRepo) SavePromotion(ctx context.Context, promo *models.Promotion) error {
	return r.DB.WithContext(ctx).Save(promo).Error
}

func (r *GormRepo) DeletePromotion(ctx context.Context, id uint) error {
	result := r.DB.WithContext(ctx).Delete(&models.Promotion{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
