package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	req := require.New(t)
	m := NewMetrics(prometheus.NewRegistry())

	m.ConnectionOpened()
	m.ConnectionOpened()
	m.ConnectionClosed()
	m.ReceiptsAdded(3)
	m.ReceiptsAdded(0)
	m.SignalRelayed("callUser")
	m.SignalDropped("offline")
	m.SignalDropped("offline")
	m.SetProcess(1024, 12.5)

	req.Equal(1.0, testutil.ToFloat64(m.Connections))
	req.Equal(3.0, testutil.ToFloat64(m.ReceiptsStamped))
	req.Equal(1.0, testutil.ToFloat64(m.Signals.WithLabelValues("callUser")))
	req.Equal(2.0, testutil.ToFloat64(m.SignalsDropped.WithLabelValues("offline")))
	req.Equal(1024.0, testutil.ToFloat64(m.ProcessRSS))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.ConnectionOpened()
		m.MessagePosted()
		m.SignalDropped("offline")
		m.SetRooms(2)
	})
}
