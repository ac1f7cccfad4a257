package models

import (
	"time"

	"github.com/google/uuid"
)

type PaymentMethod string

const (
	PaymentMethodCOD  PaymentMethod = "cod"
	PaymentMethodCard PaymentMethod = "card"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// Terminal reports whether no further payment transition is allowed.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusPaid || s == PaymentStatusFailed || s == PaymentStatusRefunded
}

type Order struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"       json:"id"`
	FirstName  string    `gorm:"not null"                   json:"first_name"`
	LastName   string    `gorm:"not null"                   json:"last_name"`
	Email      string    `gorm:"index;not null"             json:"email"`
	Phone      string    `gorm:"not null"                   json:"phone"`
	Address    string    `gorm:"not null"                   json:"address"`
	City       string    `gorm:"not null"                   json:"city"`
	PostalCode string    `json:"postal_code"`

	DeliveryType string `gorm:"not null"                    json:"delivery_type"`
	DeliveryDate string `json:"delivery_date"`
	DeliverySlot string `json:"delivery_slot"`

	PaymentMethod PaymentMethod `gorm:"not null"            json:"payment_method"`
	PaymentStatus PaymentStatus `gorm:"index;not null"      json:"payment_status"`
	Status        OrderStatus   `gorm:"index;not null"      json:"status"`

	// Money is kept in integer cents, fixed at creation time.
	SubtotalCents int64 `gorm:"not null"                    json:"subtotal_cents"`
	DiscountCents int64 `gorm:"not null;default:0"          json:"discount_cents"`
	DeliveryCents int64 `gorm:"not null;default:0"          json:"delivery_cents"`
	TaxCents      int64 `gorm:"not null;default:0"          json:"tax_cents"`
	TotalCents    int64 `gorm:"not null"                    json:"total_cents"`

	CouponCode string `json:"coupon_code,omitempty"`

	CheckoutSessionID string `gorm:"index"                  json:"checkout_session_id,omitempty"`
	PaymentRef        string `json:"payment_ref,omitempty"`
	CardLast4         string `json:"card_last4,omitempty"`

	Items []OrderItem `gorm:"constraint:OnDelete:CASCADE"   json:"items"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type OrderItem struct {
	ID        uint      `gorm:"primaryKey"                  json:"id"`
	OrderID   uuid.UUID `gorm:"type:uuid;index;not null"    json:"order_id"`
	ProductID string    `gorm:"not null"                    json:"product_id"`
	Quantity  int       `gorm:"not null;check:quantity>0"   json:"quantity"`
	// UnitPriceCents is the price at order time, never the live price.
	UnitPriceCents int64 `gorm:"not null"                   json:"unit_price_cents"`
}

type User struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"    json:"id"`
	Email         string    `gorm:"uniqueIndex;not null"    json:"email"`
	PasswordHash  string    `gorm:"not null"                json:"-"`
	Role          string    `gorm:"not null"                json:"role"`
	EmailVerified bool      `gorm:"not null;default:false"  json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
}

type RefreshToken struct {
	ID        uint      `gorm:"primaryKey"               json:"id"`
	TokenHash string    `gorm:"uniqueIndex;not null"     json:"-"`
	UserID    uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	ExpiresAt int64     `gorm:"not null"                 json:"expires_at"`
	Revoked   bool      `gorm:"default:false"            json:"revoked"`
}

type TokenPurpose string

const (
	TokenPurposeVerifyEmail   TokenPurpose = "verify_email"
	TokenPurposeResetPassword TokenPurpose = "reset_password"
)

// ActionToken is a one-shot token for email verification and password reset.
type ActionToken struct {
	ID        uint         `gorm:"primaryKey"`
	TokenHash string       `gorm:"uniqueIndex;not null"`
	Purpose   TokenPurpose `gorm:"index;not null"`
	UserID    uuid.UUID    `gorm:"type:uuid;index;not null"`
	ExpiresAt int64        `gorm:"not null"`
	Used      bool         `gorm:"default:false"`
}

type Coupon struct {
	ID               uint      `gorm:"primaryKey"           json:"id"`
	Code             string    `gorm:"uniqueIndex;not null" json:"code"`
	PercentOff       int       `json:"percent_off"`
	FixedOffCents    int64     `json:"fixed_off_cents"`
	MinSubtotalCents int64     `json:"min_subtotal_cents"`
	ExpiresAt        int64     `gorm:"not null"             json:"expires_at"`
	Active           bool      `gorm:"default:true"         json:"active"`
	CreatedAt        time.Time `json:"created_at"`
}

type Promotion struct {
	ID        uint      `gorm:"primaryKey"          json:"id"`
	Title     string    `gorm:"not null"            json:"title"`
	Body      string    `json:"body"`
	StartsAt  int64     `json:"starts_at"`
	EndsAt    int64     `json:"ends_at"`
	Active    bool      `gorm:"default:true"        json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// WebhookEvent records gateway event ids that have already been applied.
// Delivery is at-least-once, so the same id may arrive any number of times.
type WebhookEvent struct {
	EventID     string    `gorm:"primaryKey"`
	EventType   string    `gorm:"index"`
	ProcessedAt time.Time `gorm:"not null"`
}
