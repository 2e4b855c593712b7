package optimistic

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRunConfirmed(t *testing.T) {
	r := NewRunner(zap.NewNop(), nil)

	value := 0
	done := r.Run(context.Background(), Mutation{
		Name:   "inc",
		Apply:  func() { value++ },
		Revert: func() { value-- },
	}, func(context.Context) error { return nil })

	require.NoError(t, <-done)
	r.Wait()
	assert.Equal(t, 1, value)

	_, open := <-done
	assert.False(t, open)
}

func TestRunRevertsOnFailure(t *testing.T) {
	var (
		mu       sync.Mutex
		reported []string
	)
	r := NewRunner(zap.NewNop(), func(name string, err error) {
		mu.Lock()
		defer mu.Unlock()
		reported = append(reported, name+": "+err.Error())
	})

	value := 0
	boom := errors.New("boom")
	release := make(chan struct{})

	done := r.Run(context.Background(), Mutation{
		Name:   "inc",
		Apply:  func() { value++ },
		Revert: func() { value-- },
	}, func(context.Context) error {
		<-release
		return boom
	})

	// applied before the remote call resolves
	assert.Equal(t, 1, value)
	close(release)

	assert.ErrorIs(t, <-done, boom)
	r.Wait()
	assert.Equal(t, 0, value)
	assert.Equal(t, []string{"inc: boom"}, reported)
}

func TestRunSurvivesCanceledContext(t *testing.T) {
	r := NewRunner(zap.NewNop(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := r.Run(ctx, Mutation{Name: "noop"}, func(ctx context.Context) error {
		return ctx.Err()
	})
	assert.NoError(t, <-done)
}

func TestResolved(t *testing.T) {
	boom := errors.New("boom")
	done := Resolved(boom)
	assert.ErrorIs(t, <-done, boom)
	_, open := <-done
	assert.False(t, open)
}
