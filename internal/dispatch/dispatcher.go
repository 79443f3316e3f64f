package dispatch

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"eventide/internal/broker"
	"eventide/internal/httpclient"
	"eventide/internal/logger"
	"eventide/internal/workflow"
	"eventide/pkg/models"
)

// Dispatcher executes a single matched rule's action against the event.
type Dispatcher interface {
	Dispatch(ctx context.Context, event models.IncomingEvent, rule workflow.Rule) error
}

type ActionDispatcher struct {
	producer broker.Producer
	http     httpclient.Client
	logger   logger.Logger
}

func NewActionDispatcher(producer broker.Producer, client httpclient.Client, log logger.Logger) *ActionDispatcher {
	return &ActionDispatcher{producer: producer, http: client, logger: log}
}

func (d *ActionDispatcher) Dispatch(ctx context.Context, event models.IncomingEvent, rule workflow.Rule) error {
	switch rule.ActionType {
	case workflow.ActionKafka:
		return d.dispatchKafka(ctx, event, rule.ActionConfig)
	case workflow.ActionWebhook:
		return d.dispatchWebhook(ctx, event, rule.ActionConfig)
	case workflow.ActionHTTP:
		return d.dispatchHTTP(ctx, event, rule.ActionConfig)
	default:
		return fmt.Errorf("unsupported action type: %s", rule.ActionType)
	}
}

func (d *ActionDispatcher) dispatchKafka(ctx context.Context, event models.IncomingEvent, raw map[string]interface{}) error {
	var cfg KafkaActionConfig
	if err := decode(raw, &cfg); err != nil {
		return fmt.Errorf("invalid kafka action config: %w", err)
	}
	if cfg.Topic == "" {
		return fmt.Errorf("kafka action config missing topic")
	}
	key := cfg.Key
	if key == "" {
		key = event.EventID
	}
	msg := models.FromIncomingEvent(event)
	msg.ID = key
	return d.producer.Publish(ctx, cfg.Topic, msg)
}

func (d *ActionDispatcher) dispatchWebhook(ctx context.Context, event models.IncomingEvent, raw map[string]interface{}) error {
	var cfg WebhookActionConfig
	if err := decode(raw, &cfg); err != nil {
		return fmt.Errorf("invalid webhook action config: %w", err)
	}
	if cfg.URL == "" {
		return fmt.Errorf("webhook action config missing url")
	}
	return d.http.Post(ctx, cfg.URL, cfg.Headers, event)
}

func (d *ActionDispatcher) dispatchHTTP(ctx context.Context, event models.IncomingEvent, raw map[string]interface{}) error {
	var cfg HTTPActionConfig
	if err := decode(raw, &cfg); err != nil {
		return fmt.Errorf("invalid http action config: %w", err)
	}
	if cfg.URL == "" {
		return fmt.Errorf("http action config missing url")
	}
	method := strings.ToUpper(cfg.Method)
	if method == "" {
		method = http.MethodPost
	}
	return d.http.Request(ctx, method, cfg.URL, cfg.Headers, event.Payload)
}

func decode(raw map[string]interface{}, out interface{}) error {
	return mapstructure.Decode(raw, out)
}
