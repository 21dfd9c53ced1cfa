package workers

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"chat-relay/mocks"
	"chat-relay/observability"

	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestHeartbeatWorker_ReportsProcessStats(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	presence := mocks.NewMockIPresence(ctrl)
	presence.EXPECT().Count().Return(3).AnyTimes()
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	worker := NewHeartbeatWorker(logs.GetLoggerFromLevel(slog.LevelDebug), metrics, presence, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	// Then the resident memory of the test process is eventually published
	req.Eventually(func() bool {
		return testutil.ToFloat64(metrics.ProcessRSS) > 0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	req.NoError(<-done)
}
