// Package worker implements the notification delivery worker: it
// drains the notification queue, resolves the current subscriber set,
// and pushes the rendered payload to everyone but the actor.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/lherwood/expense-tracker/internal/amqp"
	"github.com/lherwood/expense-tracker/internal/notify"
	"github.com/lherwood/expense-tracker/internal/records"
)

const (
	fallbackTitle = "Notification"
	defaultTitle  = "Expense Tracker"
	defaultIcon   = "/icon-192.png"
)

// Notification is the rendered form shown to a recipient.
type Notification struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Icon  string            `json:"icon"`
	Badge string            `json:"badge"`
	Data  map[string]string `json:"data,omitempty"`
}

// ParsePayload decodes a push payload. Anything that is not JSON is
// shown as plain text under a generic title.
func ParsePayload(raw []byte) Notification {
	var n Notification
	if err := json.Unmarshal(raw, &n); err != nil {
		n = Notification{Title: fallbackTitle, Body: string(raw)}
	}
	if n.Title == "" {
		n.Title = defaultTitle
	}
	if n.Icon == "" {
		n.Icon = defaultIcon
	}
	if n.Badge == "" {
		n.Badge = defaultIcon
	}
	return n
}

// SubscriptionSource resolves the current subscriber set.
type SubscriptionSource interface {
	FetchSubscriptions(ctx context.Context) ([]records.Subscription, error)
}

type DeliveryWorker struct {
	subs   SubscriptionSource
	sender notify.Sender
}

func NewDeliveryWorker(subs SubscriptionSource, sender notify.Sender) *DeliveryWorker {
	return &DeliveryWorker{subs: subs, sender: sender}
}

// HandleNotification processes one queued notification. Per-recipient
// delivery failures are logged, not returned: a dead endpoint must not
// requeue the message for everyone else.
func (w *DeliveryWorker) HandleNotification(ctx context.Context, msg *amqp.NotificationMessage) error {
	n := ParsePayload(msg.Payload)

	subs, err := w.subs.FetchSubscriptions(ctx)
	if err != nil {
		return fmt.Errorf("fetch subscriptions: %w", err)
	}
	if len(subs) == 0 {
		slog.InfoContext(ctx, "No subscribers, dropping notification", "actor", msg.Actor, "title", n.Title)
		return nil
	}

	payload := notify.Payload{Title: n.Title, Body: n.Body, Data: n.Data}
	deliveries := notify.Fanout(ctx, w.sender, subs, msg.Actor, payload)

	var delivered, failed, skipped int
	for _, d := range deliveries {
		switch d.Outcome {
		case notify.Delivered:
			delivered++
		case notify.Failed:
			failed++
		case notify.SkippedSelf:
			skipped++
		}
	}
	slog.InfoContext(ctx, "Notification fanout complete",
		"actor", msg.Actor,
		"title", n.Title,
		"delivered", delivered,
		"failed", failed,
		"skipped", skipped)

	return nil
}

// Run consumes the notification queue until ctx is canceled.
func (w *DeliveryWorker) Run(ctx context.Context, queue *amqp.Client) error {
	return queue.ConsumeNotifications(ctx, func(msg *amqp.NotificationMessage) error {
		return w.HandleNotification(ctx, msg)
	})
}
