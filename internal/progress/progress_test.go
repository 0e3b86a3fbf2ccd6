package progress

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunPopsOnError(t *testing.T) {
	rec := NewRecorder()
	ctx := WithIndicator(context.Background(), rec)

	boom := errors.New("boom")
	err := Run(ctx, "Searching", func(ind Indicator) error {
		assert.Same(t, rec, ind)
		assert.Equal(t, 1, rec.Depth())
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, rec.Depth())
	assert.Equal(t, []string{"Searching"}, rec.History())
}

func TestRunPopsOnPanic(t *testing.T) {
	rec := NewRecorder()
	ctx := WithIndicator(context.Background(), rec)

	assert.Panics(t, func() {
		_ = Run(ctx, "Searching", func(Indicator) error { panic("bad") })
	})
	assert.Equal(t, 0, rec.Depth())
}

func TestCheck(t *testing.T) {
	rec := NewRecorder()
	require.NoError(t, Check(context.Background(), rec))

	rec.Cancel()
	assert.ErrorIs(t, Check(context.Background(), rec), ErrCancelled)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Check(ctx, NewRecorder())
	assert.ErrorIs(t, err, ErrCancelled)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDefaultIndicatorFollowsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ind := FromContext(ctx)
	assert.False(t, ind.IsCancelled())

	ind.PushState("a")
	ind.PopState()
	ind.PopState() // extra pop is harmless

	cancel()
	assert.True(t, ind.IsCancelled())
}

func TestRecorderPolls(t *testing.T) {
	rec := NewRecorder()
	rec.IsCancelled()
	rec.IsCancelled()
	assert.EqualValues(t, 2, rec.Polls())
}

func TestRecorderForwardsToParent(t *testing.T) {
	parent := NewRecorder()
	rec := NewRecorderFor(parent)

	err := Run(WithIndicator(context.Background(), rec), "Searching inheritors of Base", func(Indicator) error {
		assert.Equal(t, 1, parent.Depth())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Searching inheritors of Base"}, rec.History())
	assert.Equal(t, []string{"Searching inheritors of Base"}, parent.History())
	assert.Equal(t, 0, parent.Depth())

	rec.PopState() // empty: not forwarded
	assert.Equal(t, 0, parent.Depth())

	assert.False(t, rec.IsCancelled())
	parent.Cancel()
	assert.True(t, rec.IsCancelled())
	assert.ErrorIs(t, Check(context.Background(), rec), ErrCancelled)
}
