package outbox_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	appoutbox "marketplace/internal/app/outbox"
	domainmessaging "marketplace/internal/domain/messaging"
	"marketplace/internal/infra/outbox"
	"marketplace/internal/infra/storage/memory"
	"marketplace/internal/mocks"
)

func stagedOutbox(t *testing.T) *memory.Outbox {
	t.Helper()
	ctx := context.Background()
	conv, err := domainmessaging.NewConversation(domainmessaging.NewConversationParams{
		ID:           "conv-1",
		Participants: []domainmessaging.Participant{{UserID: "1"}, {UserID: "2"}},
		Now:          time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	box := memory.NewOutbox()
	encoder := appoutbox.JSONEventEncoder{IDGenerator: func() string { return "evt-1" }}
	require.NoError(t, appoutbox.RecordDomainEvents(ctx, box, encoder, domainmessaging.NewConversationCreated(conv)))
	require.NoError(t, box.Flush(ctx))
	return box
}

func TestWorkerDrain(t *testing.T) {
	ctx := context.Background()

	t.Run("publishes cloud events", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		producer := mocks.NewMockProducer(ctrl)
		box := stagedOutbox(t)

		var payload []byte
		var headers map[string]string
		producer.EXPECT().
			Publish(gomock.Any(), "mkt.conversation.events.v1", "conv-1", gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, _, _ string, p []byte, h map[string]string) error {
				payload, headers = p, h
				return nil
			})

		w := &outbox.Worker{Store: box, Producer: producer, TopicPrefix: "mkt.", ID: "w1"}
		sent, err := w.Drain(ctx)
		req.NoError(err)
		req.Equal(1, sent)
		req.Empty(box.Pending())

		var evt map[string]any
		req.NoError(json.Unmarshal(payload, &evt))
		req.Equal("1.0", evt["specversion"])
		req.Equal("evt-1", evt["id"])
		req.Equal("conversation.created.v1", evt["type"])
		req.Equal("app://marketplace", evt["source"])
		req.Equal("conv-1", evt["subject"])
		data, ok := evt["data"].(map[string]any)
		req.True(ok)
		req.Equal([]any{"1", "2"}, data["participants"])
		req.Equal("application/cloudevents+json", headers["content-type"])
	})

	t.Run("failed publish is retried later", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		producer := mocks.NewMockProducer(ctrl)
		box := stagedOutbox(t)
		producer.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("broker down"))

		w := &outbox.Worker{Store: box, Producer: producer, Backoff: []time.Duration{time.Hour}}
		sent, err := w.Drain(ctx)
		req.NoError(err)
		req.Zero(sent)
		req.Len(box.Pending(), 1)

		// Backoff keeps the record out of the next drain.
		sent, err = w.Drain(ctx)
		req.NoError(err)
		req.Zero(sent)
	})

	t.Run("source errors surface", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		source := mocks.NewMockSource(ctrl)
		source.EXPECT().Claim(gomock.Any(), "w1").Return(nil, errors.New("store offline"))
		w := &outbox.Worker{Store: source, Producer: mocks.NewMockProducer(ctrl), ID: "w1"}
		_, err := w.Drain(ctx)
		require.EqualError(t, err, "store offline")
	})

	t.Run("mark failed with backoff schedule", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		source := mocks.NewMockSource(ctrl)
		producer := mocks.NewMockProducer(ctrl)
		rec := &appoutbox.PendingRecord{
			EventRecord: appoutbox.EventRecord{ID: "evt-9", Name: "message.sent", Aggregate: "conv-9", Payload: []byte(`{}`)},
			Attempts:    1,
		}
		source.EXPECT().Claim(gomock.Any(), "w1").Return(rec, nil)
		producer.EXPECT().Publish(gomock.Any(), "message.events.v1", "conv-9", gomock.Any(), gomock.Any()).Return(errors.New("timeout"))
		before := time.Now()
		source.EXPECT().MarkFailed(gomock.Any(), "evt-9", gomock.Any(), "timeout").DoAndReturn(
			func(_ context.Context, _ string, next time.Time, _ string) error {
				req.WithinDuration(before.Add(5*time.Second), next, 2*time.Second)
				return nil
			})

		w := &outbox.Worker{Store: source, Producer: producer, ID: "w1", Backoff: []time.Duration{time.Second, 5 * time.Second}}
		sent, err := w.Drain(ctx)
		req.NoError(err)
		req.Zero(sent)
	})
}

func TestWorkerRun(t *testing.T) {
	t.Run("requires dependencies", func(t *testing.T) {
		err := (&outbox.Worker{}).Run(context.Background())
		require.ErrorIs(t, err, outbox.ErrWorkerNotConfigured)
	})

	t.Run("relays until cancelled", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		producer := mocks.NewMockProducer(ctrl)
		producer.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(1)
		box := stagedOutbox(t)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		w := &outbox.Worker{Store: box, Producer: producer, Interval: 10 * time.Millisecond}
		go func() { done <- w.Run(ctx) }()

		req.Eventually(func() bool { return len(box.Pending()) == 0 }, time.Second, 10*time.Millisecond)
		cancel()
		req.ErrorIs(<-done, context.Canceled)
	})
}
