package transport

type CreateOrderItem struct {
	ProductID      string `json:"product_id"       validate:"required"`
	Quantity       int    `json:"quantity"         validate:"required,gt=0"`
	UnitPriceCents int64  `json:"unit_price_cents" validate:"gte=0"`
}

type CreateOrderRequest struct {
	FirstName  string `json:"first_name"  validate:"required"`
	LastName   string `json:"last_name"   validate:"required"`
	Email      string `json:"email"       validate:"required,email"`
	Phone      string `json:"phone"       validate:"required"`
	Address    string `json:"address"     validate:"required"`
	City       string `json:"city"        validate:"required"`
	PostalCode string `json:"postal_code"`

	DeliveryType string `json:"delivery_type" validate:"required"`
	DeliveryDate string `json:"delivery_date"`
	DeliverySlot string `json:"delivery_slot"`

	PaymentMethod string `json:"payment_method" validate:"required,oneof=cod card"`
	CouponCode    string `json:"coupon_code"`

	SubtotalCents int64 `json:"subtotal_cents" validate:"gte=0"`
	DiscountCents int64 `json:"discount_cents" validate:"gte=0"`
	DeliveryCents int64 `json:"delivery_cents" validate:"gte=0"`
	TaxCents      int64 `json:"tax_cents"      validate:"gte=0"`
	TotalCents    int64 `json:"total_cents"    validate:"gte=0"`

	Items []CreateOrderItem `json:"items" validate:"required,min=1,dive"`
}

type CreateSessionRequest struct {
	OrderID  string `json:"order_id" validate:"required,uuid"`
	Currency string `json:"currency" validate:"omitempty,iso4217"`
	// AmountCents is optional; when present it must match the stored
	// order total. The store stays authoritative either way.
	AmountCents int64 `json:"amount_cents" validate:"gte=0"`
}

type CreateSessionResponse struct {
	CheckoutURL string `json:"checkoutUrl"`
}

type RegisterRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type VerifyEmailRequest struct {
	Token string `json:"token" validate:"required"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token"`
	Email       string `json:"email"        validate:"omitempty,email"`
	NewPassword string `json:"new_password" validate:"omitempty,min=8"`
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending processing shipped delivered cancelled"`
}

type CouponRequest struct {
	Code             string `json:"code" validate:"required,alphanum"`
	PercentOff       int    `json:"percent_off" validate:"gte=0,lte=100"`
	FixedOffCents    int64  `json:"fixed_off_cents" validate:"gte=0"`
	MinSubtotalCents int64  `json:"min_subtotal_cents" validate:"gte=0"`
	ExpiresAt        int64  `json:"expires_at" validate:"required"`
}

type PromotionRequest struct {
	Title    string `json:"title" validate:"required"`
	Body     string `json:"body"`
	StartsAt int64  `json:"starts_at"`
	EndsAt   int64  `json:"ends_at"`
	Active   bool   `json:"active"`
}
