// Package notify builds notification payloads and fans them out to
// every subscribed user except the actor.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/lherwood/expense-tracker/internal/records"
)

// Payload is one notification as rendered to a recipient.
type Payload struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

func ExpenseAdded(user string, amount float64, category string) Payload {
	amt := records.FormatAmount(amount)
	return Payload{
		Title: "💰 New Expense Added",
		Body:  fmt.Sprintf("%s added R%s for %s", user, amt, category),
		Data:  map[string]string{"type": "expense", "user": user, "amount": amt, "category": category},
	}
}

func SavingsUpdated(user string, amount float64) Payload {
	amt := records.FormatAmount(amount)
	return Payload{
		Title: "💳 Savings Updated",
		Body:  fmt.Sprintf("%s updated shared savings to R%s", user, amt),
		Data:  map[string]string{"type": "savings", "user": user, "amount": amt},
	}
}

func ShoppingItemAdded(user, item string) Payload {
	return Payload{
		Title: "🛒 Shopping List Updated",
		Body:  fmt.Sprintf("%s added %q to shopping list", user, item),
		Data:  map[string]string{"type": "shopping", "user": user, "item": item},
	}
}

func ShoppingItemRemoved(user, item string) Payload {
	return Payload{
		Title: "✅ Shopping Item Removed",
		Body:  fmt.Sprintf("%s removed %q from shopping list", user, item),
		Data:  map[string]string{"type": "shopping", "user": user, "item": item},
	}
}

// Outcome classifies one recipient's delivery.
type Outcome string

const (
	Delivered   Outcome = "delivered"
	Failed      Outcome = "failed"
	SkippedSelf Outcome = "skipped-self"
)

// Delivery is the per-recipient result of a fanout.
type Delivery struct {
	User    string
	Outcome Outcome
	Err     error
}

// Sender delivers one payload to one subscription.
type Sender interface {
	Send(ctx context.Context, sub records.Subscription, payload Payload) error
}

// Fanout delivers payload to every subscription except the actor's own,
// by exact name match. Deliveries run independently: one recipient's
// failure never blocks another's, and the outcome set always has one
// entry per subscription.
func Fanout(ctx context.Context, sender Sender, subs []records.Subscription, actor string, payload Payload) []Delivery {
	deliveries := make([]Delivery, len(subs))

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	for i, sub := range subs {
		if sub.User == actor {
			deliveries[i] = Delivery{User: sub.User, Outcome: SkippedSelf}
			continue
		}
		g.Go(func() error {
			d := Delivery{User: sub.User, Outcome: Delivered}
			if err := sender.Send(ctx, sub, payload); err != nil {
				d.Outcome = Failed
				d.Err = err
				slog.WarnContext(ctx, "Notification delivery failed",
					"user", sub.User, "title", payload.Title, "error", err)
			}
			mu.Lock()
			deliveries[i] = d
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return deliveries
}
