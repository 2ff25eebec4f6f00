package eventbus

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recflow/recflow/pkg/events"
	"github.com/recflow/recflow/pkg/models"
)

func TestWatermillEventBus_PublishAndHandle(t *testing.T) {
	bus := NewInProcessEventBus(slog.Default())
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan *events.StageCompleted, 1)

	err := bus.Handle(events.StageCompletedEvent, func(_ context.Context, event any) error {
		completed, ok := event.(*events.StageCompleted)
		require.True(t, ok)

		received <- completed

		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Subscribe(ctx))

	published := events.StageCompleted{
		BaseEvent: events.NewBaseEvent(events.StageCompletedEvent, "wf-1"),
		Stage:     models.StageTranscript,
	}

	require.NoError(t, bus.Publish(ctx, "wf-1", published))

	select {
	case got := <-received:
		assert.Equal(t, "wf-1", got.WorkflowID)
		assert.Equal(t, models.StageTranscript, got.Stage)
		assert.Equal(t, events.StageCompletedEvent, got.GetType())
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event delivery")
	}
}

func TestWatermillEventBus_UnhandledTypeIsAcked(t *testing.T) {
	bus := NewInProcessEventBus(slog.Default())
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan struct{}, 1)

	err := bus.Handle(events.ProcessingFailedEvent, func(_ context.Context, _ any) error {
		received <- struct{}{}

		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Subscribe(ctx))

	// No handler is registered for started events; they must not block the
	// stream for later failed events.
	started := events.ProcessingStarted{
		BaseEvent: events.NewBaseEvent(events.ProcessingStartedEvent, "wf-2"),
		VideoRef:  "blob://demo.mp4",
	}
	require.NoError(t, bus.Publish(ctx, "wf-2", started))

	failed := events.ProcessingFailed{
		BaseEvent: events.NewBaseEvent(events.ProcessingFailedEvent, "wf-2"),
		Stage:     models.StageExtraction,
		Error:     "frame extraction failed",
	}
	require.NoError(t, bus.Publish(ctx, "wf-2", failed))

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for failed event delivery")
	}
}

func TestWatermillEventBus_GenerateID(t *testing.T) {
	bus := NewInProcessEventBus(slog.Default())
	defer bus.Close()

	first := bus.GenerateID()
	second := bus.GenerateID()

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}
