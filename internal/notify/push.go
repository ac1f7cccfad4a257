package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	"storefront/internal/cache"
)

// PushSender delivers browser push notifications. Subscriptions are kept
// in the cache keyed by email ("push:<email>"); losing one just means the
// next page visit re-subscribes.
type PushSender struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subscriber      string
	Cache           cache.Cache
}

func (p *PushSender) Enabled() bool {
	return p.VAPIDPublicKey != "" && p.VAPIDPrivateKey != ""
}

func SubscriptionKey(email string) string { return "push:" + email }

func (p *PushSender) SaveSubscription(ctx context.Context, email, subscriptionJSON string) error {
	var sub webpush.Subscription
	if err := json.Unmarshal([]byte(subscriptionJSON), &sub); err != nil {
		return fmt.Errorf("malformed push subscription: %w", err)
	}
	return p.Cache.Set(ctx, SubscriptionKey(email), subscriptionJSON, 30*24*time.Hour)
}

func (p *PushSender) Send(ctx context.Context, email, title, body string) error {
	if !p.Enabled() {
		return fmt.Errorf("push capability disabled: no VAPID keys")
	}

	raw, err := p.Cache.Get(ctx, SubscriptionKey(email))
	if errors.Is(err, cache.ErrMiss) {
		return nil // recipient never subscribed
	}
	if err != nil {
		return err
	}

	var sub webpush.Subscription
	if err := json.Unmarshal([]byte(raw), &sub); err != nil {
		return fmt.Errorf("stored push subscription unreadable: %w", err)
	}

	payload, err := json.Marshal(map[string]string{"title": title, "body": body})
	if err != nil {
		return err
	}

	resp, err := webpush.SendNotification(payload, &sub, &webpush.Options{
		Subscriber:      p.Subscriber,
		VAPIDPublicKey:  p.VAPIDPublicKey,
		VAPIDPrivateKey: p.VAPIDPrivateKey,
		TTL:             60,
	})
	if err != nil {
		return fmt.Errorf("web push send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("push endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
