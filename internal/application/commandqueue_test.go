package application_test

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/threadwatch/internal/application"
	"github.com/ericfisherdev/threadwatch/internal/domain/model"
)

func cmdWithID(id string) model.Command {
	return model.Command{ID: id, Type: model.CommandAdd, DocToken: "owner/repo#1"}
}

func TestCommandQueue_DefaultCapacity(t *testing.T) {
	q := application.NewCommandQueue(0)
	assert.Equal(t, application.DefaultQueueCapacity, q.Capacity())
	assert.True(t, q.IsEmpty())
}

func TestCommandQueue_FullRejectsNewest(t *testing.T) {
	q := application.NewCommandQueue(3)
	for i := range 3 {
		require.True(t, q.Offer(cmdWithID(strconv.Itoa(i))))
	}

	assert.False(t, q.Offer(cmdWithID("overflow")))
	assert.Equal(t, 3, q.Size())

	cmd, ok, err := q.Poll(context.Background(), time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "0", cmd.ID)

	assert.True(t, q.Offer(cmdWithID("after-poll")))
	assert.Equal(t, 3, q.Size())
}

func TestCommandQueue_FIFO(t *testing.T) {
	q := application.NewCommandQueue(10)
	for i := range 5 {
		require.True(t, q.Offer(cmdWithID(strconv.Itoa(i))))
	}

	for i := range 5 {
		cmd, err := q.Take(context.Background())
		require.NoError(t, err)
		assert.Equal(t, strconv.Itoa(i), cmd.ID)
	}
	assert.True(t, q.IsEmpty())
}

func TestCommandQueue_PollTimeout(t *testing.T) {
	q := application.NewCommandQueue(1)

	start := time.Now()
	_, ok, err := q.Poll(context.Background(), 20*time.Millisecond)

	require.NoError(t, err)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestCommandQueue_PollReceivesLateOffer(t *testing.T) {
	q := application.NewCommandQueue(1)

	go func() {
		time.Sleep(10 * time.Millisecond)
		q.Offer(cmdWithID("late"))
	}()

	cmd, ok, err := q.Poll(context.Background(), time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "late", cmd.ID)
}

func TestCommandQueue_CancelledWaits(t *testing.T) {
	q := application.NewCommandQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Take(ctx)
	require.ErrorIs(t, err, context.Canceled)

	_, ok, err := q.Poll(ctx, time.Second)
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, ok)
}

func TestCommandQueue_Clear(t *testing.T) {
	q := application.NewCommandQueue(10)
	for i := range 4 {
		q.Offer(cmdWithID(strconv.Itoa(i)))
	}

	assert.Equal(t, 4, q.Clear())
	assert.True(t, q.IsEmpty())
	assert.Equal(t, 0, q.Clear())
}

func TestCommandQueue_ConcurrentProducers(t *testing.T) {
	q := application.NewCommandQueue(100)

	var wg sync.WaitGroup
	for p := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 50 {
				q.Offer(cmdWithID(strconv.Itoa(p*100 + i)))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, q.Size())
}
