// Package config loads the service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is shared by the api and worker binaries. Each binary only reads the
// fields it needs.
type Config struct {
	TableName       string `envconfig:"TABLE_NAME"`
	StatusIndexName string `envconfig:"GSI1_NAME" default:"GSI1"`
	EventsQueueURL  string `envconfig:"TICKET_EVENTS_QUEUE_URL"`

	AgentGroup       string `envconfig:"AGENT_GROUP" default:"Agents"`
	MetricsNamespace string `envconfig:"METRICS_NAMESPACE" default:"Helpdesk"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	AWSRegion           string `envconfig:"AWS_REGION" default:"us-east-1"`
	AWSEndpointOverride string `envconfig:"AWS_ENDPOINT_OVERRIDE"`

	RunLocal             bool   `envconfig:"RUN_LOCAL"`
	LocalAddr            string `envconfig:"LOCAL_ADDR" default:":8080"`
	TrustIdentityHeaders bool   `envconfig:"TRUST_IDENTITY_HEADERS"`
	LocalSQSBody         string `envconfig:"LOCAL_SQS_BODY"` // worker only, with RUN_LOCAL

	// Worker event deduplication; disabled when TABLE_NAME is unset.
	EventDedupTTL   time.Duration `envconfig:"EVENT_DEDUP_TTL" default:"48h"`
	EventClaimLease time.Duration `envconfig:"EVENT_CLAIM_LEASE" default:"5m"`
}

// Load reads the environment and validates the result.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	cfg.normalize()
	return &cfg, nil
}

func (c *Config) normalize() {
	c.TableName = strings.TrimSpace(c.TableName)
	c.StatusIndexName = strings.TrimSpace(c.StatusIndexName)
	c.EventsQueueURL = strings.TrimSpace(c.EventsQueueURL)
	c.AgentGroup = strings.TrimSpace(c.AgentGroup)
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
}

// ValidateAPI checks the settings the HTTP API cannot start without.
func (c *Config) ValidateAPI() error {
	if c.TableName == "" {
		return errors.New("TABLE_NAME is required")
	}
	if c.StatusIndexName == "" {
		return errors.New("GSI1_NAME must not be empty")
	}
	if c.AgentGroup == "" {
		return errors.New("AGENT_GROUP must not be empty")
	}
	// header identity is unauthenticated and only acceptable on a developer machine
	if c.TrustIdentityHeaders && !c.RunLocal {
		return errors.New("TRUST_IDENTITY_HEADERS requires RUN_LOCAL=true")
	}
	return c.validateLogging()
}

// ValidateWorker checks the settings the event worker needs.
func (c *Config) ValidateWorker() error {
	if c.MetricsNamespace == "" {
		return errors.New("METRICS_NAMESPACE must not be empty")
	}
	if c.TableName != "" && (c.EventDedupTTL <= 0 || c.EventClaimLease <= 0) {
		return errors.New("EVENT_DEDUP_TTL and EVENT_CLAIM_LEASE must be positive")
	}
	return c.validateLogging()
}

func (c *Config) validateLogging() error {
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.LogFormat)
	}
	return nil
}
