package events

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/types"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case e, ok := <-ch:
		require.True(t, ok, "channel closed")
		return e
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
		return Event{}
	}
}

func assertEmpty(t *testing.T, ch <-chan Event) {
	t.Helper()
	select {
	case e := <-ch:
		t.Fatalf("unexpected event %s", e.Type)
	default:
	}
}

func TestEventBus_PublishSubscribe(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	ctx := context.Background()
	ch, cleanup := bus.Subscribe(ctx, Filter{}, 10)
	defer cleanup()

	formationID := types.NewID()
	require.NoError(t, bus.Publish(ctx, Event{Type: EventFormationBuilt, FormationID: formationID}))

	got := receive(t, ch)
	assert.Equal(t, EventFormationBuilt, got.Type)
	assert.Equal(t, formationID, got.FormationID)
	assert.False(t, got.Timestamp.IsZero(), "zero timestamp should be filled in")
}

func TestFilter_Matches(t *testing.T) {
	fa, fb := types.NewID(), types.NewID()
	ia := types.NewID()

	tests := []struct {
		name   string
		filter Filter
		event  Event
		want   bool
	}{
		{"empty filter matches all", Filter{}, Event{Type: EventInstanceStarted}, true},
		{"type match", Filter{Types: []EventType{EventRolloutCompleted, EventRolloutAborted}}, Event{Type: EventRolloutAborted}, true},
		{"type mismatch", Filter{Types: []EventType{EventRolloutCompleted}}, Event{Type: EventRolloutFailed}, false},
		{"formation match", Filter{FormationID: fa}, Event{Type: EventFormationBuilt, FormationID: fa}, true},
		{"formation mismatch", Filter{FormationID: fa}, Event{Type: EventFormationBuilt, FormationID: fb}, false},
		{"instance match", Filter{InstanceID: ia}, Event{Type: EventInstanceStopped, InstanceID: ia}, true},
		{"instance missing", Filter{InstanceID: ia}, Event{Type: EventInstanceStopped}, false},
		{
			"all criteria",
			Filter{Types: []EventType{EventFormationRebalanced}, FormationID: fa},
			Event{Type: EventFormationRebalanced, FormationID: fa},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(tt.event))
		})
	}
}

func TestEventBus_FilteredSubscribers(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	ctx := context.Background()
	target := types.NewID()

	rollouts, c1 := bus.Subscribe(ctx, Filter{Types: []EventType{EventRolloutCompleted}}, 10)
	defer c1()
	scoped, c2 := bus.Subscribe(ctx, Filter{FormationID: target}, 10)
	defer c2()

	require.NoError(t, bus.Publish(ctx, Event{Type: EventRolloutCompleted, FormationID: types.NewID()}))
	require.NoError(t, bus.Publish(ctx, Event{Type: EventFormationDissolved, FormationID: target}))

	assert.Equal(t, EventRolloutCompleted, receive(t, rollouts).Type)
	assertEmpty(t, rollouts)

	assert.Equal(t, EventFormationDissolved, receive(t, scoped).Type)
	assertEmpty(t, scoped)
}

type countingMetrics struct {
	published atomic.Int64
	dropped   atomic.Int64
}

func (m *countingMetrics) RecordEventPublished(string, int)  { m.published.Add(1) }
func (m *countingMetrics) RecordEventDropped(string, string) { m.dropped.Add(1) }

func TestEventBus_SlowSubscriberDoesNotBlock(t *testing.T) {
	metrics := &countingMetrics{}
	bus := NewEventBus(WithMetrics(metrics))
	defer bus.Close()

	ctx := context.Background()
	slow, c1 := bus.Subscribe(ctx, Filter{}, 1)
	defer c1()
	fast, c2 := bus.Subscribe(ctx, Filter{}, 10)
	defer c2()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 5; i++ {
			_ = bus.Publish(ctx, Event{Type: EventFormationHealthChanged})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}

	assert.Len(t, slow, 1)
	assert.Len(t, fast, 5)
	assert.Equal(t, int64(4), metrics.dropped.Load())
	assert.Equal(t, int64(5), metrics.published.Load())
}

func TestEventBus_CancelledSubscriberSkipped(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, cleanup := bus.Subscribe(ctx, Filter{}, 10)
	defer cleanup()

	cancel()
	require.NoError(t, bus.Publish(context.Background(), Event{Type: EventProfileSwitched}))
	assertEmpty(t, ch)
}

func TestEventBus_CleanupClosesChannel(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	ch, cleanup := bus.Subscribe(context.Background(), Filter{}, 0)
	assert.Equal(t, 1, bus.SubscriberCount())

	cleanup()
	cleanup()

	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, bus.SubscriberCount())
}

func TestEventBus_Close(t *testing.T) {
	bus := NewEventBus()
	ctx := context.Background()

	ch, cleanup := bus.Subscribe(ctx, Filter{}, 0)
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())
	cleanup()

	_, ok := <-ch
	assert.False(t, ok)
	assert.Error(t, bus.Publish(ctx, Event{Type: EventFormationBuilt}))

	late, lateCleanup := bus.Subscribe(ctx, Filter{}, 0)
	defer lateCleanup()
	_, ok = <-late
	assert.False(t, ok)
}

func TestEventBus_DefaultBufferSize(t *testing.T) {
	bus := NewEventBus(WithDefaultBufferSize(3))
	defer bus.Close()

	ch, cleanup := bus.Subscribe(context.Background(), Filter{}, 0)
	defer cleanup()
	assert.Equal(t, 3, cap(ch))
}

func TestEventBus_ConcurrentPublishers(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	ctx := context.Background()
	ch, cleanup := bus.Subscribe(ctx, Filter{}, 1000)
	defer cleanup()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = bus.Publish(ctx, Event{Type: EventInstanceStarted, InstanceID: types.NewID()})
			}
		}()
	}
	wg.Wait()

	assert.Len(t, ch, 500)
}

func TestDiscard(t *testing.T) {
	assert.NoError(t, Discard.Publish(context.Background(), Event{Type: EventFormationBuilt}))
}
