package workers

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"chat-relay/domain/event"
	"chat-relay/mocks"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestEventFanout_Fanout(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	sink1 := mocks.NewMockEventSink(ctrl)
	sink2 := mocks.NewMockEventSink(ctrl)
	fanout := NewEventFanout(log, nil, 10, time.Second).Add(sink1, sink2)

	evt := event.UserOnline{UserID: "doc1", ConnectionID: "c1"}

	// Given both sinks consume the event
	consumed := make(chan struct{}, 2)
	consume := func(ctx context.Context, e event.DomainEvent) error {
		consumed <- struct{}{}
		return nil
	}
	sink1.EXPECT().Consume(gomock.Any(), evt).DoAndReturn(consume).Times(1)
	sink2.EXPECT().Consume(gomock.Any(), evt).DoAndReturn(consume).Times(1)

	// When the worker runs and an event is published
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = fanout.Run(ctx)
		close(done)
	}()
	fanout.Publish(evt)

	// Then both sinks are reached
	for i := 0; i < 2; i++ {
		select {
		case <-consumed:
		case <-time.After(time.Second):
			req.Fail("Sink was not reached in time")
		}
	}
	cancel()
	<-done
}

func TestEventFanout_SinkTimeout(t *testing.T) {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	slow := mocks.NewMockEventSink(ctrl)
	fast := mocks.NewMockEventSink(ctrl)
	fanout := NewEventFanout(log, nil, 10, 20*time.Millisecond).Add(slow, fast)

	// Given a sink that waits for its deadline
	slow.EXPECT().Consume(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, evt event.DomainEvent) error {
			<-ctx.Done()
			return ctx.Err()
		}).
		Times(1)
	fast.EXPECT().Consume(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	// When an event is fanned out
	start := time.Now()
	fanout.Fanout(context.Background(), event.UserOffline{UserID: "doc1"})

	// Then the slow sink is abandoned at its deadline
	require.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestEventFanout_PublishDropsWhenFull(t *testing.T) {
	req := require.New(t)
	fanout := NewEventFanout(logs.GetLoggerFromLevel(slog.LevelDebug), nil, 1, time.Second)

	fanout.Publish(event.UserOnline{UserID: "a"})
	fanout.Publish(event.UserOnline{UserID: "b"})

	req.Len(fanout.events, 1)
}
