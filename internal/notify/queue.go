package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lherwood/expense-tracker/internal/amqp"
)

// QueuePublisher hands notifications to the delivery worker's queue.
type QueuePublisher struct {
	queue *amqp.Client
}

func NewQueuePublisher(queue *amqp.Client) *QueuePublisher {
	return &QueuePublisher{queue: queue}
}

func (p *QueuePublisher) Publish(ctx context.Context, actor string, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return p.queue.PublishNotification(ctx, amqp.NewNotificationMessage(actor, body))
}
