package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-helpdesk-tickets/internal/aws"
	"github.com/imrishuroy/go-helpdesk-tickets/internal/config"
	"github.com/imrishuroy/go-helpdesk-tickets/internal/idempotency"
	"github.com/imrishuroy/go-helpdesk-tickets/internal/logger"
	"github.com/imrishuroy/go-helpdesk-tickets/internal/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.ValidateWorker(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	if err := logger.Init(cfg.LogLevel, cfg.LogFormat); err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	clients, err := aws.SharedClients(context.Background(), aws.Options{
		Region:           cfg.AWSRegion,
		EndpointOverride: cfg.AWSEndpointOverride,
	})
	if err != nil {
		logger.L().Fatal("failed to init aws clients", zap.Error(err))
	}

	var opts []ProcessorOption
	if cfg.TableName != "" {
		opts = append(opts, WithDeduplicator(
			idempotency.NewStore(clients.DynamoDB, cfg.TableName, cfg.EventDedupTTL, cfg.EventClaimLease),
		))
	}
	p := NewProcessor(metrics.NewRecorder(clients.CloudWatch, cfg.MetricsNamespace), opts...)

	// If RUN_LOCAL=true, process a single simulated SQS message and exit.
	if cfg.RunLocal {
		body := cfg.LocalSQSBody
		if body == "" {
			body = `{"type":"TICKET_CREATED","ticketId":"local-ticket-1","ownerId":"local-user","toStatus":"OPEN","createdAt":"2026-01-01T00:00:00.000Z","occurredAt":"2026-01-01T00:00:00.000Z"}`
		}
		resp, err := p.Handle(context.Background(), events.SQSEvent{
			Records: []events.SQSMessage{{MessageId: "local-1", Body: body}},
		})
		if err != nil || len(resp.BatchItemFailures) > 0 {
			logger.L().Fatal("local handler failed", zap.Error(err), zap.Int("failures", len(resp.BatchItemFailures)))
		}
		return
	}

	lambda.Start(p.Handle)
}
