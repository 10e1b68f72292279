package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"github.com/lherwood/expense-tracker/internal/records"
)

// VAPID holds the key pair identifying this server to push services.
type VAPID struct {
	PublicKey  string
	PrivateKey string
	Subscriber string
}

// WebPushSender delivers payloads over the Web Push protocol.
type WebPushSender struct {
	vapid   VAPID
	timeout time.Duration
}

var _ Sender = (*WebPushSender)(nil)

func NewWebPushSender(vapid VAPID) *WebPushSender {
	return &WebPushSender{vapid: vapid, timeout: 10 * time.Second}
}

func (s *WebPushSender) Send(ctx context.Context, sub records.Subscription, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := webpush.SendNotificationWithContext(ctx, body, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}, &webpush.Options{
		Subscriber:      s.vapid.Subscriber,
		VAPIDPublicKey:  s.vapid.PublicKey,
		VAPIDPrivateKey: s.vapid.PrivateKey,
		TTL:             86400,
	})
	if err != nil {
		return fmt.Errorf("push to %s: %w", sub.User, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("push to %s: status %d", sub.User, resp.StatusCode)
	}
	return nil
}
