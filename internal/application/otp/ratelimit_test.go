package otp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockAttemptStore struct{ mock.Mock }

func (m *mockAttemptStore) RecordAttempt(ctx context.Context, email string, at time.Time, ttl time.Duration) (string, error) {
	args := m.Called(ctx, email, at, ttl)
	return args.String(0), args.Error(1)
}
func (m *mockAttemptStore) ReleaseAttempt(ctx context.Context, email, sk string) error {
	return m.Called(ctx, email, sk).Error(0)
}
func (m *mockAttemptStore) CountAttemptsSince(ctx context.Context, email string, since time.Time) (int, int64, error) {
	args := m.Called(ctx, email, since)
	return args.Int(0), args.Get(1).(int64), args.Error(2)
}

func TestReserve_UnderThreshold(t *testing.T) {
	st := &mockAttemptStore{}
	st.On("RecordAttempt", mock.Anything, "a@x.com", mock.Anything, 15*time.Minute).Return("attempt#1", nil)
	st.On("CountAttemptsSince", mock.Anything, "a@x.com", mock.Anything).Return(3, time.Now().Unix(), nil)

	l := NewLimiter(st, 15*time.Minute, false)
	res := l.Reserve(context.Background(), "a@x.com", 3)

	assert.True(t, res.Allowed, "the 3rd attempt within the window must pass")
	assert.Equal(t, 0, res.AttemptsRemaining)
	st.AssertNotCalled(t, "ReleaseAttempt", mock.Anything, mock.Anything, mock.Anything)
}

func TestReserve_OverThreshold(t *testing.T) {
	st := &mockAttemptStore{}
	oldest := time.Now().Add(-5 * time.Minute).Unix()
	st.On("RecordAttempt", mock.Anything, "a@x.com", mock.Anything, mock.Anything).Return("attempt#1", nil)
	st.On("CountAttemptsSince", mock.Anything, "a@x.com", mock.Anything).Return(4, oldest, nil)
	st.On("ReleaseAttempt", mock.Anything, "a@x.com", "attempt#1").Return(nil)

	l := NewLimiter(st, 15*time.Minute, false)
	res := l.Reserve(context.Background(), "a@x.com", 3)

	require.False(t, res.Allowed)
	assert.Equal(t, 10, res.ResetIn, "oldest attempt is 5 minutes in; 10 to go")
	assert.Contains(t, res.Message, "10 minute")
	// The denied reservation is withdrawn: retrying while throttled must not
	// count as a creation event and push the window out.
	st.AssertCalled(t, "ReleaseAttempt", mock.Anything, "a@x.com", "attempt#1")
}

func TestReserve_ResetInNeverBelowOneMinute(t *testing.T) {
	st := &mockAttemptStore{}
	oldest := time.Now().Add(-15 * time.Minute).Unix()
	st.On("RecordAttempt", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("attempt#1", nil)
	st.On("ReleaseAttempt", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	st.On("CountAttemptsSince", mock.Anything, mock.Anything, mock.Anything).Return(5, oldest, nil)

	l := NewLimiter(st, 15*time.Minute, false)
	res := l.Reserve(context.Background(), "a@x.com", 3)

	require.False(t, res.Allowed)
	assert.GreaterOrEqual(t, res.ResetIn, 1)
}

func TestReserve_FailOpenOnStorageError(t *testing.T) {
	st := &mockAttemptStore{}
	st.On("RecordAttempt", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("dynamo down"))

	l := NewLimiter(st, 15*time.Minute, false)
	res := l.Reserve(context.Background(), "a@x.com", 3)

	assert.True(t, res.Allowed)
}

func TestReserve_FailOpenOnCountError(t *testing.T) {
	st := &mockAttemptStore{}
	st.On("RecordAttempt", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("attempt#1", nil)
	st.On("CountAttemptsSince", mock.Anything, mock.Anything, mock.Anything).Return(0, int64(0), errors.New("dynamo down"))

	l := NewLimiter(st, 15*time.Minute, false)
	res := l.Reserve(context.Background(), "a@x.com", 3)

	assert.True(t, res.Allowed)
}

func TestReserve_FailClosedWhenConfigured(t *testing.T) {
	st := &mockAttemptStore{}
	st.On("RecordAttempt", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("dynamo down"))

	l := NewLimiter(st, 15*time.Minute, true)
	res := l.Reserve(context.Background(), "a@x.com", 3)

	assert.False(t, res.Allowed)
	assert.NotEmpty(t, res.Message)
}
