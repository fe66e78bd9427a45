package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/tutorflow/types"
)

func TestBackoffRetryer_SucceedsFirstTry(t *testing.T) {
	r := NewBackoffRetryer(DefaultPolicy(), zap.NewNop())

	calls := 0
	err := r.Do(context.Background(), func() error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestBackoffRetryer_RetriesRetryableError(t *testing.T) {
	policy := &Policy{
		MaxRetries:    2,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		Multiplier:    2.0,
		RetryableOnly: true,
	}
	r := NewBackoffRetryer(policy, zap.NewNop())

	calls := 0
	err := r.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return types.NewError(types.ErrGenerationService, "upstream 503").WithRetryable(true)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestBackoffRetryer_StopsOnNonRetryable(t *testing.T) {
	policy := &Policy{
		MaxRetries:    3,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		Multiplier:    2.0,
		RetryableOnly: true,
	}
	r := NewBackoffRetryer(policy, zap.NewNop())

	calls := 0
	err := r.Do(context.Background(), func() error {
		calls++
		return types.NewError(types.ErrInputValidation, "bad question")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, types.ErrInputValidation, types.GetErrorCode(err))
}

func TestBackoffRetryer_BudgetExhausted(t *testing.T) {
	policy := &Policy{
		MaxRetries:    2,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		Multiplier:    2.0,
		RetryableOnly: true,
	}
	r := NewBackoffRetryer(policy, zap.NewNop())

	calls := 0
	wantErr := types.NewError(types.ErrGenerationService, "still down").WithRetryable(true)
	err := r.Do(context.Background(), func() error {
		calls++
		return wantErr
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, types.ErrGenerationService, types.GetErrorCode(err))
}

func TestBackoffRetryer_ContextCanceledDuringDelay(t *testing.T) {
	policy := &Policy{
		MaxRetries:    3,
		InitialDelay:  200 * time.Millisecond,
		MaxDelay:      time.Second,
		Multiplier:    2.0,
		RetryableOnly: true,
	}
	r := NewBackoffRetryer(policy, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	err := r.Do(ctx, func() error {
		calls++
		return types.NewError(types.ErrGenerationService, "flaky").WithRetryable(true)
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, calls)
}

func TestBackoffRetryer_OnRetryCallback(t *testing.T) {
	var attempts []int
	policy := &Policy{
		MaxRetries:    2,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		Multiplier:    2.0,
		RetryableOnly: false,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			attempts = append(attempts, attempt)
		},
	}
	r := NewBackoffRetryer(policy, zap.NewNop())

	_ = r.Do(context.Background(), func() error {
		return errors.New("plain error")
	})

	assert.Equal(t, []int{1, 2}, attempts)
}

func TestCalculateDelay_CappedAtMax(t *testing.T) {
	policy := &Policy{
		MaxRetries:   10,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		Jitter:       false,
	}
	r := NewBackoffRetryer(policy, zap.NewNop()).(*backoffRetryer)

	assert.Equal(t, 100*time.Millisecond, r.calculateDelay(1))
	assert.Equal(t, 200*time.Millisecond, r.calculateDelay(2))
	assert.Equal(t, time.Second, r.calculateDelay(8))
}

func TestCalculateDelay_JitterStaysInBounds(t *testing.T) {
	policy := &Policy{
		MaxRetries:   3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
	r := NewBackoffRetryer(policy, zap.NewNop()).(*backoffRetryer)

	for i := 0; i < 100; i++ {
		d := r.calculateDelay(2)
		assert.GreaterOrEqual(t, d, policy.InitialDelay)
		assert.LessOrEqual(t, d, time.Duration(float64(policy.MaxDelay)*1.25))
	}
}
