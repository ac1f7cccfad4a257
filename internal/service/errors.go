package service

import "errors"

// Sentinel errors the handlers map onto HTTP status codes. Services wrap
// them with fmt.Errorf("%w: ...") so the boundary can errors.Is its way
// to a stable error code without leaking internals.
var (
	ErrValidation  = errors.New("validation")   // 400
	ErrAuth        = errors.New("auth")         // 401/403
	ErrNotFound    = errors.New("not found")    // 404
	ErrConflict    = errors.New("conflict")     // 409
	ErrRateLimited = errors.New("rate limited") // 429
	ErrSignature   = errors.New("signature")    // 400, final
	ErrGateway     = errors.New("gateway")      // 502
	// ErrRetryable marks transient persistence failures. The webhook
	// handler answers 5xx on these so the gateway redelivers.
	ErrRetryable = errors.New("retryable")
	ErrDisabled  = errors.New("capability disabled") // 503
)
