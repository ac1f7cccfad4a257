package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"storefront/internal/cache"
	"storefront/internal/models"
	"storefront/internal/notify"
	"storefront/internal/payment"
	"storefront/internal/repo"
	"storefront/internal/transport"
)

var testWebhookSecret = []byte("whsec_test")

type fakeCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: map[string]string{}}
}

func (f *fakeCache) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return "", cache.ErrMiss
	}
	return v, nil
}

func (f *fakeCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
	return nil
}

func (f *fakeCache) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (f *fakePublisher) Publish(_ context.Context, event notify.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakePublisher) types() []notify.EventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]notify.EventType, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Type)
	}
	return out
}

func initTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(
		&models.User{},
		&models.RefreshToken{},
		&models.ActionToken{},
		&models.Order{},
		&models.OrderItem{},
		&models.Coupon{},
		&models.Promotion{},
		&models.WebhookEvent{},
	))
	return gdb
}

func newTestOrderService(t *testing.T) (*OrderService, *fakePublisher) {
	t.Helper()

	pub := &fakePublisher{}
	svc := &OrderService{
		Repo:          repo.New(initTestDB(t)),
		Cache:         newFakeCache(),
		Gateway:       payment.NewClient("http://gateway.invalid", "sk_test"),
		Publisher:     pub,
		WebhookSecret: testWebhookSecret,
		BaseURL:       "http://localhost:8080",
	}
	return svc, pub
}

func validCreateRequest() transport.CreateOrderRequest {
	return transport.CreateOrderRequest{
		FirstName:     "Ada",
		LastName:      "L",
		Email:         "ada@example.com",
		Phone:         "123",
		Address:       "1 Main St",
		City:          "Springfield",
		DeliveryType:  "standard",
		PaymentMethod: "card",
		SubtotalCents: 2000,
		TotalCents:    2000,
		Items: []transport.CreateOrderItem{
			{ProductID: "p1", Quantity: 2, UnitPriceCents: 1000},
		},
	}
}

func signedEvent(t *testing.T, eventID, eventType, orderID string) (body []byte, header string) {
	t.Helper()

	body, err := json.Marshal(payment.Event{
		ID:   eventID,
		Type: eventType,
		Data: payment.EventData{
			PaymentRef: "pi_123",
			CardLast4:  "4242",
			Metadata:   payment.EventMetadata{OrderID: orderID, Email: "ada@example.com"},
		},
	})
	require.NoError(t, err)
	return body, payment.Sign(testWebhookSecret, body, time.Now())
}

func TestCreateOrder_Success(t *testing.T) {
	t.Parallel()

	svc, pub := newTestOrderService(t)
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, validCreateRequest())
	require.NoError(t, err)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 2, order.Items[0].Quantity)
	assert.Equal(t, int64(1000), order.Items[0].UnitPriceCents)
	assert.Equal(t, int64(2000), order.TotalCents)
	assert.Equal(t, models.PaymentStatusPending, order.PaymentStatus)
	assert.Equal(t, models.OrderStatusPending, order.Status)

	got, err := svc.Repo.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, got.Items, 1)

	assert.Equal(t, []notify.EventType{notify.EventOrderCreated}, pub.types())
}

func TestCreateOrder_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*transport.CreateOrderRequest)
	}{
		{name: "empty items", mutate: func(r *transport.CreateOrderRequest) { r.Items = nil }},
		{name: "zero quantity", mutate: func(r *transport.CreateOrderRequest) { r.Items[0].Quantity = 0 }},
		{name: "negative price", mutate: func(r *transport.CreateOrderRequest) { r.Items[0].UnitPriceCents = -1 }},
		{name: "missing product id", mutate: func(r *transport.CreateOrderRequest) { r.Items[0].ProductID = "" }},
		{name: "subtotal mismatch", mutate: func(r *transport.CreateOrderRequest) { r.SubtotalCents = 1 }},
		{name: "total mismatch", mutate: func(r *transport.CreateOrderRequest) { r.TotalCents = 1 }},
		{name: "discount without coupon", mutate: func(r *transport.CreateOrderRequest) {
			r.DiscountCents = 100
			r.TotalCents = 1900
		}},
		{name: "unknown coupon", mutate: func(r *transport.CreateOrderRequest) { r.CouponCode = "NOPE" }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc, _ := newTestOrderService(t)
			req := validCreateRequest()
			tt.mutate(&req)

			_, err := svc.CreateOrder(context.Background(), req)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)

			// Nothing may be persisted on rejection.
			orders, err := svc.Repo.ListOrders(context.Background(), 10, 0)
			require.NoError(t, err)
			assert.Empty(t, orders)
		})
	}
}

func TestCreateOrder_WithCoupon(t *testing.T) {
	t.Parallel()

	svc, _ := newTestOrderService(t)
	ctx := context.Background()

	require.NoError(t, svc.Repo.CreateCoupon(ctx, &models.Coupon{
		Code:       "SAVE10",
		PercentOff: 10,
		ExpiresAt:  time.Now().Add(time.Hour).Unix(),
		Active:     true,
	}))

	req := validCreateRequest()
	req.CouponCode = "SAVE10"
	req.DiscountCents = 200
	req.TotalCents = 1800

	order, err := svc.CreateOrder(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, int64(1800), order.TotalCents)
	assert.Equal(t, "SAVE10", order.CouponCode)
}

func TestCreatePaymentSession_Success(t *testing.T) {
	t.Parallel()

	var gotReq payment.SessionRequest
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_ = json.NewEncoder(w).Encode(payment.Session{ID: "cs_1", URL: "https://pay.example.com/cs_1"})
	}))
	defer gw.Close()

	svc, _ := newTestOrderService(t)
	svc.Gateway = payment.NewClient(gw.URL, "sk_test")
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, validCreateRequest())
	require.NoError(t, err)

	url, err := svc.CreatePaymentSession(ctx, transport.CreateSessionRequest{OrderID: order.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example.com/cs_1", url)
	assert.Equal(t, order.ID.String(), gotReq.Metadata["orderId"])
	assert.Equal(t, order.Email, gotReq.Metadata["email"])
	assert.Equal(t, order.TotalCents, gotReq.AmountCents)

	got, err := svc.Repo.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "cs_1", got.CheckoutSessionID)
}

func TestCreatePaymentSession_GatewayRejectionLeavesOrderAlone(t *testing.T) {
	t.Parallel()

	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid currency"})
	}))
	defer gw.Close()

	svc, _ := newTestOrderService(t)
	svc.Gateway = payment.NewClient(gw.URL, "sk_test")
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, validCreateRequest())
	require.NoError(t, err)

	_, err = svc.CreatePaymentSession(ctx, transport.CreateSessionRequest{OrderID: order.ID.String()})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGateway)

	got, err := svc.Repo.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Empty(t, got.CheckoutSessionID)
	assert.Equal(t, models.PaymentStatusPending, got.PaymentStatus)
}

func TestCreatePaymentSession_Guards(t *testing.T) {
	t.Parallel()

	svc, _ := newTestOrderService(t)
	ctx := context.Background()

	t.Run("unknown order", func(t *testing.T) {
		_, err := svc.CreatePaymentSession(ctx, transport.CreateSessionRequest{OrderID: uuid.NewString()})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("amount mismatch", func(t *testing.T) {
		order, err := svc.CreateOrder(ctx, validCreateRequest())
		require.NoError(t, err)

		_, err = svc.CreatePaymentSession(ctx, transport.CreateSessionRequest{
			OrderID:     order.ID.String(),
			AmountCents: 1,
		})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("already paid", func(t *testing.T) {
		order, err := svc.CreateOrder(ctx, validCreateRequest())
		require.NoError(t, err)

		body, sig := signedEvent(t, "evt_guard", payment.EventCheckoutCompleted, order.ID.String())
		require.NoError(t, svc.HandlePaymentEvent(ctx, body, sig))

		_, err = svc.CreatePaymentSession(ctx, transport.CreateSessionRequest{OrderID: order.ID.String()})
		assert.ErrorIs(t, err, ErrConflict)
	})
}

func TestHandlePaymentEvent_SucceededTransition(t *testing.T) {
	t.Parallel()

	svc, pub := newTestOrderService(t)
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, validCreateRequest())
	require.NoError(t, err)

	body, sig := signedEvent(t, "evt_1", payment.EventCheckoutCompleted, order.ID.String())
	require.NoError(t, svc.HandlePaymentEvent(ctx, body, sig))

	got, err := svc.Repo.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, got.PaymentStatus)
	assert.Equal(t, models.OrderStatusProcessing, got.Status)
	assert.Equal(t, "pi_123", got.PaymentRef)
	assert.Equal(t, "4242", got.CardLast4)

	assert.Equal(t, []notify.EventType{notify.EventOrderCreated, notify.EventOrderPaid}, pub.types())
}

func TestHandlePaymentEvent_IdempotentRedelivery(t *testing.T) {
	t.Parallel()

	svc, pub := newTestOrderService(t)
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, validCreateRequest())
	require.NoError(t, err)

	body, sig := signedEvent(t, "evt_1", payment.EventCheckoutCompleted, order.ID.String())
	for i := 0; i < 4; i++ {
		require.NoError(t, svc.HandlePaymentEvent(ctx, body, sig))
	}

	got, err := svc.Repo.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, got.PaymentStatus)

	// Exactly one transition means exactly one paid notification.
	assert.Equal(t, []notify.EventType{notify.EventOrderCreated, notify.EventOrderPaid}, pub.types())
}

func TestHandlePaymentEvent_FirstTerminalEventWins(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		first       string
		second      string
		wantPayment models.PaymentStatus
		wantStatus  models.OrderStatus
	}{
		{
			name:        "succeeded then failed",
			first:       payment.EventCheckoutCompleted,
			second:      payment.EventCheckoutFailed,
			wantPayment: models.PaymentStatusPaid,
			wantStatus:  models.OrderStatusProcessing,
		},
		{
			name:        "failed then succeeded",
			first:       payment.EventCheckoutFailed,
			second:      payment.EventCheckoutCompleted,
			wantPayment: models.PaymentStatusFailed,
			wantStatus:  models.OrderStatusCancelled,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc, _ := newTestOrderService(t)
			ctx := context.Background()

			order, err := svc.CreateOrder(ctx, validCreateRequest())
			require.NoError(t, err)

			body, sig := signedEvent(t, "evt_a", tt.first, order.ID.String())
			require.NoError(t, svc.HandlePaymentEvent(ctx, body, sig))

			body, sig = signedEvent(t, "evt_b", tt.second, order.ID.String())
			require.NoError(t, svc.HandlePaymentEvent(ctx, body, sig))

			got, err := svc.Repo.GetOrder(ctx, order.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPayment, got.PaymentStatus)
			assert.Equal(t, tt.wantStatus, got.Status)
		})
	}
}

func TestHandlePaymentEvent_BadSignatureNeverMutates(t *testing.T) {
	t.Parallel()

	svc, pub := newTestOrderService(t)
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, validCreateRequest())
	require.NoError(t, err)

	body, _ := signedEvent(t, "evt_1", payment.EventCheckoutCompleted, order.ID.String())
	badSig := payment.Sign([]byte("wrong-secret"), body, time.Now())

	err = svc.HandlePaymentEvent(ctx, body, badSig)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSignature)

	got, err := svc.Repo.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, got.PaymentStatus)
	assert.Equal(t, models.OrderStatusPending, got.Status)

	assert.Equal(t, []notify.EventType{notify.EventOrderCreated}, pub.types())
}

func TestHandlePaymentEvent_NoSecretRejectsEverything(t *testing.T) {
	t.Parallel()

	svc, _ := newTestOrderService(t)
	svc.WebhookSecret = nil
	ctx := context.Background()

	body, sig := signedEvent(t, "evt_1", payment.EventCheckoutCompleted, uuid.NewString())
	err := svc.HandlePaymentEvent(ctx, body, sig)
	assert.ErrorIs(t, err, ErrSignature)
}

func TestHandlePaymentEvent_UnknownTypeAcknowledged(t *testing.T) {
	t.Parallel()

	svc, _ := newTestOrderService(t)
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, validCreateRequest())
	require.NoError(t, err)

	body, sig := signedEvent(t, "evt_1", "customer.updated", order.ID.String())
	require.NoError(t, svc.HandlePaymentEvent(ctx, body, sig))

	got, err := svc.Repo.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, got.PaymentStatus)
}

func TestHandlePaymentEvent_UnknownOrderAcknowledged(t *testing.T) {
	t.Parallel()

	svc, _ := newTestOrderService(t)
	body, sig := signedEvent(t, "evt_1", payment.EventCheckoutCompleted, uuid.NewString())
	require.NoError(t, svc.HandlePaymentEvent(context.Background(), body, sig))
}

func TestExampleScenario(t *testing.T) {
	t.Parallel()

	svc, _ := newTestOrderService(t)
	ctx := context.Background()

	req := validCreateRequest()
	req.Items = []transport.CreateOrderItem{{ProductID: "p1", Quantity: 2, UnitPriceCents: 1000}}
	req.SubtotalCents = 2000
	req.TotalCents = 2000

	order, err := svc.CreateOrder(ctx, req)
	require.NoError(t, err)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 2, order.Items[0].Quantity)
	assert.Equal(t, int64(1000), order.Items[0].UnitPriceCents)
	assert.Equal(t, models.PaymentStatusPending, order.PaymentStatus)

	body, sig := signedEvent(t, "evt_scenario", payment.EventCheckoutCompleted, order.ID.String())
	require.NoError(t, svc.HandlePaymentEvent(ctx, body, sig))

	got, err := svc.Repo.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, got.PaymentStatus)
	assert.Equal(t, models.OrderStatusProcessing, got.Status)
}

func TestGetOrder_CacheInvalidatedOnReconciliation(t *testing.T) {
	t.Parallel()

	svc, _ := newTestOrderService(t)
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, validCreateRequest())
	require.NoError(t, err)

	// Warm the identity-keyed cache entry.
	_, err = svc.GetOrder(ctx, order.ID.String())
	require.NoError(t, err)

	body, sig := signedEvent(t, "evt_1", payment.EventCheckoutCompleted, order.ID.String())
	require.NoError(t, svc.HandlePaymentEvent(ctx, body, sig))

	got, err := svc.GetOrder(ctx, order.ID.String())
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, got.PaymentStatus)
}
