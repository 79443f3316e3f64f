package constants

import "time"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	DefaultHTTPTimeout = 10 * time.Second
)

const (
	CacheKeyPrefixDedup = "eventide:dedup:"
)

const (
	DefaultEventsTopic = "eventide.events"
	DefaultDLQTopic    = "eventide.dlq"
	DefaultDeadTopic   = "eventide.dlq.dead"
)

const (
	DefaultMaxRetries    = 3
	DefaultBaseDelayMs   = 5000
	RetryCountField      = "_retryCount"
	RetryBackoffExponent = 5
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	DefaultLimit       = 100
	MaxLimit           = 1000
	DefaultTruncateLen = 100
)

const (
	DefaultTTLSeconds = 3600
)

const (
	HTTPStatusOKMin = 200
	HTTPStatusOKMax = 300
)

const (
	FallbackAllow = "allow"
	FallbackDeny  = "deny"
)
