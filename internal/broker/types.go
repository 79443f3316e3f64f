package broker

import (
	"context"

	"eventide/pkg/models"
)

type Producer interface {
	Publish(ctx context.Context, topic string, msg models.MessageEnvelope) error
	Close() error
}

type Consumer interface {
	Consume(ctx context.Context, topic string, handler HandlerFunc) error
	Close() error
	SetServiceName(name string)
	// SetRawHandler registers a callback invoked when a message on the topic
	// cannot be unmarshalled into a MessageEnvelope, or unmarshals but fails
	// models.ValidateMessageEnvelope. Without one, such messages are logged
	// and committed (dropped) to avoid blocking the partition.
	SetRawHandler(handler RawHandlerFunc)
}

type HandlerFunc func(ctx context.Context, msg models.MessageEnvelope) error

type RawHandlerFunc func(ctx context.Context, raw []byte, decodeErr error)
