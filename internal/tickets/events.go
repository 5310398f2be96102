package tickets

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/imrishuroy/go-helpdesk-tickets/internal/aws"
)

// EventType names a committed lifecycle change.
type EventType string

const (
	EventTicketCreated EventType = "TICKET_CREATED"
	EventStatusChanged EventType = "TICKET_STATUS_CHANGED"
)

// Event is published after a mutation has committed.
type Event struct {
	EventID    string    `json:"eventId"`
	Type       EventType `json:"type"`
	TicketID   string    `json:"ticketId"`
	OwnerID    string    `json:"ownerId"`
	FromStatus Status    `json:"fromStatus,omitempty"`
	ToStatus   Status    `json:"toStatus"`
	CreatedAt  string    `json:"createdAt"`
	OccurredAt string    `json:"occurredAt"`
	RequestID  string    `json:"requestId,omitempty"`
}

// EventPublisher delivers lifecycle events downstream.
type EventPublisher interface {
	Publish(ctx context.Context, ev Event) error
}

// QueuePublisher sends events to an SQS queue.
type QueuePublisher struct {
	publisher *aws.Publisher
}

// NewQueuePublisher wraps an SQS publisher.
func NewQueuePublisher(p *aws.Publisher) *QueuePublisher {
	return &QueuePublisher{publisher: p}
}

// Publish implements EventPublisher.
func (q *QueuePublisher) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return q.publisher.SendMessage(ctx, string(body), map[string]string{
		"eventId":       ev.EventID,
		"eventType":     string(ev.Type),
		"ticketId":      ev.TicketID,
		"correlationId": ev.RequestID,
	})
}
