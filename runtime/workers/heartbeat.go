package workers

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"

	"chat-relay/contract"
	"chat-relay/observability"

	"github.com/shirou/gopsutil/process"
)

// HeartbeatWorker periodically samples the relay process and publishes
// its resource usage along with the number of identities online.
type HeartbeatWorker struct {
	log      *slog.Logger
	metrics  *observability.Metrics
	presence contract.IPresence
	interval time.Duration
}

func NewHeartbeatWorker(
	log *slog.Logger,
	metrics *observability.Metrics,
	presence contract.IPresence,
	interval time.Duration,
) *HeartbeatWorker {
	return &HeartbeatWorker{log: log, metrics: metrics, presence: presence, interval: interval}
}

func (w *HeartbeatWorker) Run(ctx context.Context) error {
	w.log.Info("Starting heartbeat worker", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			rss, cpu, err := selfStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "error", err)
				continue
			}
			w.metrics.SetProcess(rss, cpu)
			w.log.Debug("Heartbeat",
				"rss_bytes", rss,
				"cpu_percent", cpu,
				"goroutines", runtime.NumGoroutine(),
				"online", w.presence.Count())
		}
	}
}

// selfStats retrieves resident memory and CPU usage of the given process.
func selfStats(p *process.Process) (uint64, float64, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, err
	}
	return memInfo.RSS, cpuPercent, nil
}
