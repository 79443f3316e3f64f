package httpclient

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventide/internal/config"
)

type fakeClient struct {
	err error
}

func (f *fakeClient) Post(context.Context, string, map[string]string, interface{}) error {
	return f.err
}

func (f *fakeClient) Request(context.Context, string, string, map[string]string, interface{}) error {
	return f.err
}

func TestCircuitBreakerClient_Disabled_PassesErrorThrough(t *testing.T) {
	underlying := &fakeClient{err: errors.New("boom")}
	client := NewCircuitBreakerClient(underlying, config.CircuitBreakerConfig{Enabled: false})

	err := client.Post(context.Background(), "https://example.com", nil, nil)
	require.Error(t, err)
	assert.Equal(t, "boom", err.Error())
	assert.False(t, client.IsOpen())
}

func TestCircuitBreakerClient_ClosedPassesSuccessThrough(t *testing.T) {
	underlying := &fakeClient{}
	client := NewCircuitBreakerClient(underlying, config.CircuitBreakerConfig{Enabled: true, MinRequests: 2, FailureRatio: 0.5})

	err := client.Post(context.Background(), "https://example.com", nil, nil)
	require.NoError(t, err)
	assert.False(t, client.IsOpen())
}

func TestCircuitBreakerClient_OpensAfterRepeatedFailures(t *testing.T) {
	underlying := &fakeClient{err: errors.New("target down")}
	client := NewCircuitBreakerClient(underlying, config.CircuitBreakerConfig{
		Enabled:      true,
		MaxRequests:  1,
		MinRequests:  2,
		FailureRatio: 0.5,
	})

	for i := 0; i < 2; i++ {
		err := client.Post(context.Background(), "https://example.com", nil, nil)
		assert.Error(t, err)
	}

	assert.True(t, client.IsOpen(), "breaker should trip open once the failure ratio threshold is reached")

	err := client.Post(context.Background(), "https://example.com", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker is open for dispatch-http")
}
