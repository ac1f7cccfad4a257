package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"storefront/internal/cache"
	"storefront/internal/logging"
	"storefront/internal/models"
	"storefront/internal/repo"
	"storefront/internal/transport"
)

const promotionsTTL = 5 * time.Minute

// CatalogService owns the admin-managed content around the storefront:
// coupons and promotions. Reads go through the cache, writes invalidate.
type CatalogService struct {
	Repo  *repo.GormRepo
	Cache cache.Cache
}

func (s *CatalogService) CreateCoupon(ctx context.Context, req transport.CouponRequest) (*models.Coupon, error) {
	if req.PercentOff == 0 && req.FixedOffCents == 0 {
		return nil, fmt.Errorf("%w: coupon must discount something", ErrValidation)
	}
	if req.PercentOff > 0 && req.FixedOffCents > 0 {
		return nil, fmt.Errorf("%w: percent and fixed discount are exclusive", ErrValidation)
	}
	if req.ExpiresAt <= time.Now().Unix() {
		return nil, fmt.Errorf("%w: expiry must be in the future", ErrValidation)
	}

	coupon := &models.Coupon{
		Code:             req.Code,
		PercentOff:       req.PercentOff,
		FixedOffCents:    req.FixedOffCents,
		MinSubtotalCents: req.MinSubtotalCents,
		ExpiresAt:        req.ExpiresAt,
		Active:           true,
	}
	if err := s.Repo.CreateCoupon(ctx, coupon); err != nil {
		if errors.Is(err, repo.ErrAlreadyExists) {
			return nil, fmt.Errorf("%w: coupon code taken", ErrConflict)
		}
		return nil, fmt.Errorf("create coupon: %w", err)
	}
	return coupon, nil
}

func (s *CatalogService) DeactivateCoupon(ctx context.Context, code string) error {
	if err := s.Repo.DeactivateCoupon(ctx, code); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: coupon", ErrNotFound)
		}
		return err
	}
	return nil
}

func (s *CatalogService) ListPromotions(ctx context.Context) ([]models.Promotion, error) {
	if raw, err := s.Cache.Get(ctx, cache.KeyPromotions); err == nil {
		var promos []models.Promotion
		if err := json.Unmarshal([]byte(raw), &promos); err == nil {
			return promos, nil
		}
	}

	promos, err := s.Repo.ListPromotions(ctx, true)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(promos); err == nil {
		if err := s.Cache.Set(ctx, cache.KeyPromotions, string(data), promotionsTTL); err != nil {
			logging.FromContext(ctx).Warn("cache_set_failed", "key", cache.KeyPromotions, "error", err)
		}
	}
	return promos, nil
}

func (s *CatalogService) GetPromotion(ctx context.Context, id uint) (*models.Promotion, error) {
	key := cache.KeyPromotion(strconv.FormatUint(uint64(id), 10))
	if raw, err := s.Cache.Get(ctx, key); err == nil {
		var promo models.Promotion
		if err := json.Unmarshal([]byte(raw), &promo); err == nil {
			return &promo, nil
		}
	}

	promo, err := s.Repo.GetPromotion(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("%w: promotion", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(promo); err == nil {
		if err := s.Cache.Set(ctx, key, string(data), promotionsTTL); err != nil {
			logging.FromContext(ctx).Warn("cache_set_failed", "key", key, "error", err)
		}
	}
	return promo, nil
}

func (s *CatalogService) SavePromotion(ctx context.Context, id uint, req transport.PromotionRequest) (*models.Promotion, error) {
	if req.EndsAt != 0 && req.EndsAt < req.StartsAt {
		return nil, fmt.Errorf("%w: promotion ends before it starts", ErrValidation)
	}

	promo := &models.Promotion{
		ID:       id,
		Title:    req.Title,
		Body:     req.Body,
		StartsAt: req.StartsAt,
		EndsAt:   req.EndsAt,
		Active:   req.Active,
	}
	if err := s.Repo.SavePromotion(ctx, promo); err != nil {
		return nil, fmt.Errorf("save promotion: %w", err)
	}

	s.invalidatePromotion(ctx, promo.ID)
	return promo, nil
}

func (s *CatalogService) DeletePromotion(ctx context.Context, id uint) error {
	if err := s.Repo.DeletePromotion(ctx, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: promotion", ErrNotFound)
		}
		return err
	}
	s.invalidatePromotion(ctx, id)
	return nil
}

func (s *CatalogService) invalidatePromotion(ctx context.Context, id uint) {
	keys := []string{
		cache.KeyPromotions,
		cache.KeyPromotion(strconv.FormatUint(uint64(id), 10)),
		cache.KeyHomePage,
		cache.KeyHeroSlides,
	}
	if err := s.Cache.Del(ctx, keys...); err != nil {
		logging.FromContext(ctx).Warn("cache_invalidate_failed", "keys", keys, "error", err)
	}
}
