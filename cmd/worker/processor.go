package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-helpdesk-tickets/internal/idempotency"
	"github.com/imrishuroy/go-helpdesk-tickets/internal/logger"
	"github.com/imrishuroy/go-helpdesk-tickets/internal/metrics"
	"github.com/imrishuroy/go-helpdesk-tickets/internal/tickets"
)

// MetricsRecorder is satisfied by *metrics.Recorder.
type MetricsRecorder interface {
	Record(ctx context.Context, datums ...metrics.Datum) error
}

// Deduplicator is satisfied by *idempotency.Store.
type Deduplicator interface {
	Claim(ctx context.Context, eventID, ticketID string) (bool, error)
	Get(ctx context.Context, eventID string) (*idempotency.Record, error)
	MarkDone(ctx context.Context, eventID string) error
	MarkFailed(ctx context.Context, eventID, note string) error
}

// Processor turns ticket lifecycle events into CloudWatch metrics.
type Processor struct {
	recorder MetricsRecorder
	dedup    Deduplicator
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithDeduplicator skips events whose id was already consumed.
func WithDeduplicator(d Deduplicator) ProcessorOption {
	return func(p *Processor) { p.dedup = d }
}

// NewProcessor creates a processor writing through recorder.
func NewProcessor(recorder MetricsRecorder, opts ...ProcessorOption) *Processor {
	p := &Processor{recorder: recorder}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Handle processes an SQS batch. Failed records are returned as batch item
// failures so only they are redelivered.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			log := logger.FromContext(ctx).With(zap.String("messageId", rec.MessageId), zap.Error(err))
			if errors.Is(err, errMalformed) {
				log.Error("malformed message")
			} else {
				log.Warn("message processing failed")
			}
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{
				ItemIdentifier: rec.MessageId,
			})
		}
	}
	return resp, nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	ev, err := decodeEvent(rec.Body)
	if err != nil {
		return err
	}

	ctx = logger.WithRequestID(ctx, ev.RequestID)
	datums, err := datumsFor(ev)
	if err != nil {
		return err
	}

	dedup := p.dedup != nil && ev.EventID != ""
	if dedup {
		claimed, err := p.dedup.Claim(ctx, ev.EventID, ev.TicketID)
		if err != nil {
			return fmt.Errorf("claim event %s: %w", ev.EventID, err)
		}
		if !claimed {
			fields := []zap.Field{
				zap.String("eventId", ev.EventID),
				zap.String("ticketId", ev.TicketID),
			}
			if marker, err := p.dedup.Get(ctx, ev.EventID); err == nil && marker != nil {
				fields = append(fields, zap.String("markerStatus", marker.Status))
			}
			logger.FromContext(ctx).Info("skipping duplicate event", fields...)
			return nil
		}
	}

	if err := p.recorder.Record(ctx, datums...); err != nil {
		if dedup {
			if mErr := p.dedup.MarkFailed(ctx, ev.EventID, err.Error()); mErr != nil {
				logger.FromContext(ctx).Warn("release event claim failed", zap.String("eventId", ev.EventID), zap.Error(mErr))
			}
		}
		return fmt.Errorf("record metrics for ticket %s: %w", ev.TicketID, err)
	}

	if dedup {
		// Metrics are already out. Failing the message makes SQS redeliver it
		// while the claim is still leased, so the redelivery is skipped. The
		// lease must outlast the queue's visibility timeout.
		if err := p.dedup.MarkDone(ctx, ev.EventID); err != nil {
			return fmt.Errorf("mark event %s done: %w", ev.EventID, err)
		}
	}

	logger.FromContext(ctx).Debug("recorded ticket event",
		zap.String("eventType", string(ev.Type)),
		zap.String("ticketId", ev.TicketID),
		zap.String("toStatus", string(ev.ToStatus)),
	)
	return nil
}

func datumsFor(ev tickets.Event) ([]metrics.Datum, error) {
	at, err := parseTime(ev.OccurredAt)
	if err != nil {
		return nil, fmt.Errorf("%w: occurredAt: %w", errMalformed, err)
	}

	if ev.Type == tickets.EventTicketCreated {
		return []metrics.Datum{metrics.Count(metrics.TicketsCreated, at, nil)}, nil
	}

	datums := []metrics.Datum{
		metrics.Count(metrics.StatusTransitions, at, map[string]string{
			metrics.DimensionToStatus: string(ev.ToStatus),
		}),
	}
	if ev.ToStatus.IsTerminal() {
		created, err := parseTime(ev.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("%w: createdAt: %w", errMalformed, err)
		}
		datums = append(datums, metrics.Seconds(metrics.TimeToResolutionSeconds, at.Sub(created), at))
	}
	return datums, nil
}
