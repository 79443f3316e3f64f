package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventide/internal/dedup"
)

func TestDedupService_IsDuplicate_FirstSeenIsUnique(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, true)
	ctx := context.Background()

	repo := dedup.NewRepository(infra.RedisClient)
	svc := dedup.NewService(repo, createTestDeduplicationConfig(), createTestLogger())

	isDuplicate, err := svc.IsDuplicate(ctx, "evt-dedup-1")
	require.NoError(t, err)
	assert.False(t, isDuplicate)
}

func TestDedupService_IsDuplicate_SecondSeenIsDuplicate(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, true)
	ctx := context.Background()

	repo := dedup.NewRepository(infra.RedisClient)
	svc := dedup.NewService(repo, createTestDeduplicationConfig(), createTestLogger())

	_, err := svc.IsDuplicate(ctx, "evt-dedup-2")
	require.NoError(t, err)

	isDuplicate, err := svc.IsDuplicate(ctx, "evt-dedup-2")
	require.NoError(t, err)
	assert.True(t, isDuplicate)
}

func TestDedupService_Clear_AllowsReprocessing(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, true)
	ctx := context.Background()

	repo := dedup.NewRepository(infra.RedisClient)
	svc := dedup.NewService(repo, createTestDeduplicationConfig(), createTestLogger())

	_, err := svc.IsDuplicate(ctx, "evt-dedup-3")
	require.NoError(t, err)

	require.NoError(t, svc.Clear(ctx, "evt-dedup-3"))

	isDuplicate, err := svc.IsDuplicate(ctx, "evt-dedup-3")
	require.NoError(t, err)
	assert.False(t, isDuplicate, "clearing the key should let the event through again")
}
