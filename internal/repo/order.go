package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"storefront/internal/models"
)

// CreateOrder persists the order and all its items in one transaction.
// A reader never observes an order without its items.
func (r *GormRepo) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(order).Error
	})
}

func (r *GormRepo) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.DB.WithContext(ctx).Preload("Items").First(&order, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *GormRepo) ListOrders(ctx context.Context, limit, offset int) ([]models.Order, error) {
	var orders []models.Order
	err := r.DB.WithContext(ctx).Preload("Items").
		Order("created_at DESC").Limit(limit).Offset(offset).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *GormRepo) SetCheckoutSession(ctx context.Context, id uuid.UUID, sessionID string) error {
	result := r.DB.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", id).
		Update("checkout_session_id", sessionID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// PaymentOutcome is what a verified webhook event resolves to.
type PaymentOutcome struct {
	PaymentStatus models.PaymentStatus
	OrderStatus   models.OrderStatus
	PaymentRef    string
	CardLast4     string
}

// ApplyPaymentOutcome records the event id and transitions the order,
// both inside one transaction. The UPDATE is conditional on the order
// still being pending, which serializes concurrent deliveries at the
// data layer: the first verified terminal event wins, every later one
// affects zero rows and reports applied=false.
func (r *GormRepo) ApplyPaymentOutcome(ctx context.Context, eventID, eventType string, orderID uuid.UUID, outcome PaymentOutcome) (applied bool, err error) {
	err = r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		evt := models.WebhookEvent{
			EventID:     eventID,
			EventType:   eventType,
			ProcessedAt: time.Now().UTC(),
		}
		dup := tx.Where("event_id = ?", eventID).FirstOrCreate(&evt)
		if dup.Error != nil {
			return dup.Error
		}
		if dup.RowsAffected == 0 {
			// Redelivery of an event we already applied.
			return nil
		}

		var order models.Order
		if err := tx.First(&order, "id = ?", orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		result := tx.Model(&models.Order{}).
			Where("id = ? AND payment_status = ?", orderID, models.PaymentStatusPending).
			Updates(map[string]any{
				"payment_status": outcome.PaymentStatus,
				"status":         outcome.OrderStatus,
				"payment_ref":    outcome.PaymentRef,
				"card_last4":     outcome.CardLast4,
			})
		if result.Error != nil {
			return result.Error
		}
		applied = result.RowsAffected > 0
		return nil
	})
	return applied, err
}

func (r *GormRepo) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status models.OrderStatus) error {
	result := r.DB.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteOrder removes the order and cascades to its items.
func (r *GormRepo) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", id).Delete(&models.OrderItem{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.Order{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
