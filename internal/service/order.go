package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"storefront/internal/cache"
	"storefront/internal/logging"
	"storefront/internal/metrics"
	"storefront/internal/models"
	"storefront/internal/notify"
	"storefront/internal/payment"
	"storefront/internal/repo"
	"storefront/internal/transport"
)

const (
	defaultCurrency = "usd"
	recentOrdersTTL = 30 * time.Second
	orderCacheTTL   = time.Minute
)

// OrderService coordinates the order lifecycle: creation, checkout
// session, webhook reconciliation, admin updates. The database is the
// single source of truth; the cache holds expendable copies only.
type OrderService struct {
	Repo          *repo.GormRepo
	Cache         cache.Cache
	Gateway       *payment.Client
	Publisher     notify.Publisher
	WebhookSecret []byte
	BaseURL       string
}

// CreateOrder persists the order and its items atomically. The totals
// are the caller's, but they must be internally consistent: subtotal is
// the sum of line totals, and total = subtotal - discount + delivery +
// tax. A mismatch is rejected, never silently recomputed.
func (s *OrderService) CreateOrder(ctx context.Context, req transport.CreateOrderRequest) (*models.Order, error) {
	l := logging.FromContext(ctx).With("svc", "order.create")

	if len(req.Items) == 0 {
		metrics.OrdersFailedTotal.WithLabelValues("empty_items").Inc()
		return nil, fmt.Errorf("%w: items required", ErrValidation)
	}

	var subtotal int64
	items := make([]models.OrderItem, 0, len(req.Items))
	for i := range req.Items {
		it := req.Items[i]
		if it.ProductID == "" {
			return nil, fmt.Errorf("%w: product_id required", ErrValidation)
		}
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity must be > 0", ErrValidation)
		}
		if it.UnitPriceCents < 0 {
			return nil, fmt.Errorf("%w: price must be >= 0", ErrValidation)
		}
		subtotal += int64(it.Quantity) * it.UnitPriceCents
		items = append(items, models.OrderItem{
			ProductID:      it.ProductID,
			Quantity:       it.Quantity,
			UnitPriceCents: it.UnitPriceCents,
		})
	}

	if req.SubtotalCents != subtotal {
		metrics.OrdersFailedTotal.WithLabelValues("total_mismatch").Inc()
		return nil, fmt.Errorf("%w: subtotal does not match items", ErrValidation)
	}
	if req.TotalCents != subtotal-req.DiscountCents+req.DeliveryCents+req.TaxCents {
		metrics.OrdersFailedTotal.WithLabelValues("total_mismatch").Inc()
		return nil, fmt.Errorf("%w: total does not match components", ErrValidation)
	}

	if req.CouponCode != "" {
		coupon, err := s.Repo.ActiveCoupon(ctx, req.CouponCode)
		if errors.Is(err, repo.ErrNotFound) {
			metrics.OrdersFailedTotal.WithLabelValues("bad_coupon").Inc()
			return nil, fmt.Errorf("%w: coupon not valid", ErrValidation)
		}
		if err != nil {
			return nil, fmt.Errorf("check coupon: %w", err)
		}
		if subtotal < coupon.MinSubtotalCents {
			metrics.OrdersFailedTotal.WithLabelValues("bad_coupon").Inc()
			return nil, fmt.Errorf("%w: order below coupon minimum", ErrValidation)
		}
	} else if req.DiscountCents > 0 {
		return nil, fmt.Errorf("%w: discount without coupon", ErrValidation)
	}

	order := &models.Order{
		ID:            uuid.New(),
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Email:         req.Email,
		Phone:         req.Phone,
		Address:       req.Address,
		City:          req.City,
		PostalCode:    req.PostalCode,
		DeliveryType:  req.DeliveryType,
		DeliveryDate:  req.DeliveryDate,
		DeliverySlot:  req.DeliverySlot,
		PaymentMethod: models.PaymentMethod(req.PaymentMethod),
		PaymentStatus: models.PaymentStatusPending,
		Status:        models.OrderStatusPending,
		SubtotalCents: req.SubtotalCents,
		DiscountCents: req.DiscountCents,
		DeliveryCents: req.DeliveryCents,
		TaxCents:      req.TaxCents,
		TotalCents:    req.TotalCents,
		CouponCode:    req.CouponCode,
		Items:         items,
	}

	if err := s.Repo.CreateOrder(ctx, order); err != nil {
		metrics.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("persist order: %w", err)
	}

	metrics.OrdersCreatedTotal.Inc()
	s.invalidate(ctx, cache.KeyRecentOrders)

	s.publish(ctx, notify.Event{
		Type:       notify.EventOrderCreated,
		OrderID:    order.ID.String(),
		Email:      order.Email,
		Name:       order.FirstName,
		TotalCents: order.TotalCents,
		At:         time.Now().UTC(),
	})

	l.Info("order_created", "order_id", order.ID, "items", len(order.Items), "total_cents", order.TotalCents)
	return order, nil
}

// CreatePaymentSession requests a hosted checkout session for a pending
// order. Repeated calls mint new sessions at the gateway, so the pending
// guard is the only thing preventing duplicates; the order itself is not
// mutated when the gateway rejects the request.
func (s *OrderService) CreatePaymentSession(ctx context.Context, req transport.CreateSessionRequest) (string, error) {
	l := logging.FromContext(ctx).With("svc", "order.payment_session")

	if !s.Gateway.Enabled() {
		return "", fmt.Errorf("%w: card checkout not configured", ErrDisabled)
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		return "", fmt.Errorf("%w: malformed order id", ErrValidation)
	}

	order, err := s.Repo.GetOrder(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return "", fmt.Errorf("%w: order", ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("load order: %w", err)
	}

	if order.PaymentStatus != models.PaymentStatusPending {
		return "", fmt.Errorf("%w: order payment already %s", ErrConflict, order.PaymentStatus)
	}
	if order.TotalCents <= 0 {
		return "", fmt.Errorf("%w: order total must be positive", ErrValidation)
	}
	if order.Email == "" {
		return "", fmt.Errorf("%w: order has no contact email", ErrValidation)
	}
	if req.AmountCents != 0 && req.AmountCents != order.TotalCents {
		return "", fmt.Errorf("%w: amount does not match order total", ErrValidation)
	}

	currency := req.Currency
	if currency == "" {
		currency = defaultCurrency
	}

	sessionItems := make([]payment.SessionItem, 0, len(order.Items))
	for _, it := range order.Items {
		sessionItems = append(sessionItems, payment.SessionItem{
			Name:           it.ProductID,
			Quantity:       it.Quantity,
			UnitPriceCents: it.UnitPriceCents,
		})
	}

	session, err := s.Gateway.CreateCheckoutSession(ctx, payment.SessionRequest{
		AmountCents: order.TotalCents,
		Currency:    currency,
		Email:       order.Email,
		SuccessURL:  s.BaseURL + "/checkout/success",
		CancelURL:   s.BaseURL + "/checkout/cancel",
		Items:       sessionItems,
		Metadata: map[string]string{
			"orderId": order.ID.String(),
			"email":   order.Email,
		},
	})
	if err != nil {
		var ge *payment.GatewayError
		if errors.As(err, &ge) {
			metrics.PaymentSessionFailures.WithLabelValues("gateway_rejected").Inc()
			l.Warn("session_rejected", "order_id", order.ID, "gateway_status", ge.StatusCode, "error", ge.Message)
			return "", fmt.Errorf("%w: %s", ErrGateway, ge.Message)
		}
		metrics.PaymentSessionFailures.WithLabelValues("unreachable").Inc()
		return "", fmt.Errorf("%w: %v", ErrGateway, err)
	}

	if err := s.Repo.SetCheckoutSession(ctx, order.ID, session.ID); err != nil {
		return "", fmt.Errorf("store session id: %w", err)
	}

	metrics.PaymentSessionsTotal.Inc()
	l.Info("session_created", "order_id", order.ID, "session_id", session.ID)
	return session.URL, nil
}

// HandlePaymentEvent reconciles a webhook delivery. The signature is
// verified over the raw bytes before anything is parsed. Terminal
// transitions happen exactly once no matter how often the gateway
// redelivers; the first verified terminal event wins and every later
// event for the same order is a no-op acknowledged with success.
func (s *OrderService) HandlePaymentEvent(ctx context.Context, rawBody []byte, sigHeader string) error {
	l := logging.FromContext(ctx).With("svc", "order.webhook")

	if err := payment.VerifySignature(s.WebhookSecret, sigHeader, rawBody, payment.DefaultTolerance, time.Now()); err != nil {
		metrics.WebhookEventsTotal.WithLabelValues(metrics.WebhookRejected).Inc()
		l.Warn("signature_rejected", "error", err)
		return fmt.Errorf("%w: %v", ErrSignature, err)
	}

	var event payment.Event
	if err := json.Unmarshal(rawBody, &event); err != nil {
		metrics.WebhookEventsTotal.WithLabelValues(metrics.WebhookRejected).Inc()
		return fmt.Errorf("%w: malformed event body", ErrValidation)
	}
	if event.ID == "" {
		metrics.WebhookEventsTotal.WithLabelValues(metrics.WebhookRejected).Inc()
		return fmt.Errorf("%w: event id missing", ErrValidation)
	}

	var outcome repo.PaymentOutcome
	var notifyType notify.EventType
	switch event.Type {
	case payment.EventCheckoutCompleted:
		outcome = repo.PaymentOutcome{
			PaymentStatus: models.PaymentStatusPaid,
			OrderStatus:   models.OrderStatusProcessing,
			PaymentRef:    event.Data.PaymentRef,
			CardLast4:     event.Data.CardLast4,
		}
		notifyType = notify.EventOrderPaid
	case payment.EventCheckoutFailed:
		outcome = repo.PaymentOutcome{
			PaymentStatus: models.PaymentStatusFailed,
			OrderStatus:   models.OrderStatusCancelled,
		}
		notifyType = notify.EventOrderFailed
	default:
		// Acknowledge so the gateway stops redelivering types we
		// do not understand.
		metrics.WebhookEventsTotal.WithLabelValues(metrics.WebhookIgnored).Inc()
		l.Info("event_ignored", "event_type", event.Type, "event_id", event.ID)
		return nil
	}

	orderID, err := uuid.Parse(event.Data.Metadata.OrderID)
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues(metrics.WebhookRejected).Inc()
		return fmt.Errorf("%w: malformed orderId in metadata", ErrValidation)
	}

	applied, err := s.Repo.ApplyPaymentOutcome(ctx, event.ID, event.Type, orderID, outcome)
	if errors.Is(err, repo.ErrNotFound) {
		// Nothing to reconcile; redelivery would be pointless.
		metrics.WebhookEventsTotal.WithLabelValues(metrics.WebhookIgnored).Inc()
		l.Warn("event_for_unknown_order", "event_id", event.ID, "order_id", orderID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: apply payment outcome: %v", ErrRetryable, err)
	}

	if !applied {
		metrics.WebhookEventsTotal.WithLabelValues(metrics.WebhookDuplicate).Inc()
		l.Info("event_already_applied", "event_id", event.ID, "order_id", orderID)
		return nil
	}

	metrics.WebhookEventsTotal.WithLabelValues(metrics.WebhookApplied).Inc()
	if outcome.PaymentStatus == models.PaymentStatusPaid {
		metrics.OrdersPaidTotal.Inc()
	}

	s.invalidate(ctx, cache.KeyOrder(orderID.String()), cache.KeyRecentOrders)

	s.publish(ctx, notify.Event{
		Type:    notifyType,
		OrderID: orderID.String(),
		Email:   event.Data.Metadata.Email,
		At:      time.Now().UTC(),
	})

	l.Info("payment_reconciled", "event_id", event.ID, "order_id", orderID,
		"payment_status", outcome.PaymentStatus, "status", outcome.OrderStatus)
	return nil
}

func (s *OrderService) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	orderID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed order id", ErrValidation)
	}

	if raw, err := s.Cache.Get(ctx, cache.KeyOrder(id)); err == nil {
		var order models.Order
		if err := json.Unmarshal([]byte(raw), &order); err == nil {
			return &order, nil
		}
	}

	order, err := s.Repo.GetOrder(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("%w: order", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(order); err == nil {
		if err := s.Cache.Set(ctx, cache.KeyOrder(id), string(data), orderCacheTTL); err != nil {
			logging.FromContext(ctx).Warn("cache_set_failed", "key", cache.KeyOrder(id), "error", err)
		}
	}
	return order, nil
}

func (s *OrderService) ListOrders(ctx context.Context, limit, offset int) ([]models.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	// Only the first page is worth caching.
	cacheable := offset == 0 && limit == 20
	if cacheable {
		if raw, err := s.Cache.Get(ctx, cache.KeyRecentOrders); err == nil {
			var orders []models.Order
			if err := json.Unmarshal([]byte(raw), &orders); err == nil {
				return orders, nil
			}
		}
	}

	orders, err := s.Repo.ListOrders(ctx, limit, offset)
	if err != nil {
		return nil, err
	}

	if cacheable {
		if data, err := json.Marshal(orders); err == nil {
			if err := s.Cache.Set(ctx, cache.KeyRecentOrders, string(data), recentOrdersTTL); err != nil {
				logging.FromContext(ctx).Warn("cache_set_failed", "key", cache.KeyRecentOrders, "error", err)
			}
		}
	}
	return orders, nil
}

func (s *OrderService) AdminUpdateStatus(ctx context.Context, id string, status models.OrderStatus) error {
	orderID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("%w: malformed order id", ErrValidation)
	}

	if err := s.Repo.UpdateOrderStatus(ctx, orderID, status); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: order", ErrNotFound)
		}
		return err
	}

	s.invalidate(ctx, cache.KeyOrder(id), cache.KeyRecentOrders)
	return nil
}

func (s *OrderService) AdminDeleteOrder(ctx context.Context, id string) error {
	orderID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("%w: malformed order id", ErrValidation)
	}

	if err := s.Repo.DeleteOrder(ctx, orderID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: order", ErrNotFound)
		}
		return err
	}

	s.invalidate(ctx, cache.KeyOrder(id), cache.KeyRecentOrders)
	return nil
}

// invalidate drops derived cache entries. Failures are logged, not
// returned: the store already holds the truth and the TTL bounds how
// long a stale copy can live.
func (s *OrderService) invalidate(ctx context.Context, keys ...string) {
	if err := s.Cache.Del(ctx, keys...); err != nil {
		logging.FromContext(ctx).Warn("cache_invalidate_failed", "keys", keys, "error", err)
	}
}

func (s *OrderService) publish(ctx context.Context, event notify.Event) {
	if s.Publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.Publisher.Publish(pubCtx, event); err != nil {
		logging.FromContext(ctx).Error("notification_publish_failed", "type", event.Type, "error", err)
	}
}
