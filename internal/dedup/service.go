package dedup

import (
	"context"
	"time"

	"eventide/internal/config"
	"eventide/internal/constants"
	"eventide/internal/logger"
	"eventide/pkg/metrics"
	"eventide/pkg/tracing"
)

// Gate is the idempotency port the choreography engine and the retry loop
// depend on: IsDuplicate answers "have we already seen this event" atomically,
// Clear releases the key so a retried event can pass through again.
type Gate interface {
	IsDuplicate(ctx context.Context, eventID string) (bool, error)
	Clear(ctx context.Context, eventID string) error
}

// Service is the Redis-backed Gate implementation.
type Service struct {
	repo   Repository
	cfg    config.DeduplicationConfig
	logger logger.Logger
}

func NewService(repo Repository, cfg config.DeduplicationConfig, log logger.Logger) *Service {
	return &Service{repo: repo, cfg: cfg, logger: log}
}

// IsDuplicate reports whether eventID has already been processed. A blank
// eventID is never considered a duplicate and never touches the store.
func (s *Service) IsDuplicate(ctx context.Context, eventID string) (bool, error) {
	ctx, span := tracing.GetTracer("dedup-gate").Start(ctx, "dedup.is_duplicate")
	defer span.End()

	if eventID == "" {
		return false, nil
	}

	if err := ctx.Err(); err != nil {
		return false, err
	}

	key := s.key(eventID)
	ttl := time.Duration(s.cfg.TTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	start := time.Now()
	created, err := s.repo.SetNX(ctx, key, time.Now().Unix(), ttl)
	duration := time.Since(start)

	if err != nil {
		return s.handleKVError(ctx, err, duration, eventID)
	}

	isDuplicate := !created
	s.recordMetrics(duration, isDuplicate)
	return isDuplicate, nil
}

// Clear removes the dedup key for eventID so a subsequent attempt is not
// treated as a duplicate. Used by the retry loop before republishing.
func (s *Service) Clear(ctx context.Context, eventID string) error {
	if eventID == "" {
		return nil
	}
	return s.repo.Del(ctx, s.key(eventID))
}

func (s *Service) key(eventID string) string {
	prefix := s.cfg.Prefix
	if prefix == "" {
		prefix = constants.CacheKeyPrefixDedup
	}
	return prefix + eventID
}

// handleKVError applies the configured fail-open/fail-closed policy. Either
// way the event is never silently dropped through to "not a duplicate"
// without a logged decision: fail-open lets it through as unique, fail-closed
// treats it as a duplicate so no side effect runs twice against a store we
// can't currently verify.
func (s *Service) handleKVError(ctx context.Context, err error, duration time.Duration, eventID string) (bool, error) {
	s.recordMetricsWithStatus(duration, "error")

	if s.cfg.OnKVError == constants.FallbackDeny {
		metrics.FallbackUsageTotal.WithLabelValues("dedup", "deny_on_error", err.Error()).Inc()
		s.logger.ErrorwCtx(ctx, "KV error during dedup check, treating event as duplicate (fail-closed)",
			"error", err,
			"event_id", eventID,
		)
		return true, nil
	}

	metrics.FallbackUsageTotal.WithLabelValues("dedup", "allow_on_error", err.Error()).Inc()
	s.logger.WarnwCtx(ctx, "KV error during dedup check, treating event as unique (fail-open)",
		"error", err,
		"event_id", eventID,
	)
	return false, nil
}

func (s *Service) recordMetrics(duration time.Duration, isDuplicate bool) {
	status := "unique"
	if isDuplicate {
		status = "duplicate"
	}
	s.recordMetricsWithStatus(duration, status)
}

func (s *Service) recordMetricsWithStatus(duration time.Duration, status string) {
	metrics.DeduplicateMessagesTotal.WithLabelValues(status).Inc()
	metrics.ObserveDedupDuration(duration, status)
}
