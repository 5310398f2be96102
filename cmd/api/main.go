package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-helpdesk-tickets/internal/aws"
	"github.com/imrishuroy/go-helpdesk-tickets/internal/config"
	"github.com/imrishuroy/go-helpdesk-tickets/internal/handlers"
	"github.com/imrishuroy/go-helpdesk-tickets/internal/identity"
	"github.com/imrishuroy/go-helpdesk-tickets/internal/logger"
	"github.com/imrishuroy/go-helpdesk-tickets/internal/tickets"
)

func buildHandlerConfig(cfg *config.Config, clients *aws.AWSClients) handlers.HandlerConfig {
	opts := []tickets.Option{tickets.WithStatusIndex(cfg.StatusIndexName)}
	if cfg.EventsQueueURL != "" {
		publisher := aws.NewPublisher(clients.SQS, cfg.EventsQueueURL)
		opts = append(opts, tickets.WithPublisher(tickets.NewQueuePublisher(publisher)))
	}
	svc := tickets.NewService(tickets.NewStore(clients.DynamoDB, cfg.TableName), opts...)

	var resolver identity.Resolver = identity.NewGatewayResolver(cfg.AgentGroup)
	if cfg.TrustIdentityHeaders {
		resolver = identity.NewHeaderResolver(cfg.AgentGroup)
	}

	return handlers.HandlerConfig{Service: svc, Resolver: resolver}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.ValidateAPI(); err != nil {
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

	r := handlers.NewRouter(buildHandlerConfig(cfg, clients))

	// RUN_LOCAL serves plain HTTP for development.
	if cfg.RunLocal {
		logger.L().Info("running local server",
			zap.String("addr", cfg.LocalAddr),
			zap.Bool("trustIdentityHeaders", cfg.TrustIdentityHeaders),
		)
		if err := r.Run(cfg.LocalAddr); err != nil {
			logger.L().Fatal("local server stopped", zap.Error(err))
		}
		return
	}

	// HTTP API (payload v2) adapter
	adapter := ginadapter.NewV2(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
