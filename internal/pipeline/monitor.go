package pipeline

import (
	"context"
	"runtime"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/maohuynh-embedded/camnode/internal/metrics"
)

// MonitorStage periodically logs pipeline health, refreshes the Prometheus
// gauges from the counters, and feeds the systemd watchdog when one is
// armed.
type MonitorStage struct {
	state    *State
	interval time.Duration
	watchdog time.Duration
}

func NewMonitorStage(state *State) *MonitorStage {
	return &MonitorStage{state: state, interval: 5 * time.Second}
}

func (m *MonitorStage) Name() string { return "monitor" }

func (m *MonitorStage) Init() error {
	if wd, err := daemon.SdWatchdogEnabled(false); err == nil && wd > 0 {
		// Notify at half the configured watchdog interval.
		m.watchdog = wd / 2
		if m.watchdog < m.interval {
			m.interval = m.watchdog
		}
		log.Info("Systemd watchdog armed", "interval", m.watchdog)
	}
	log.Info("Monitor stage ready", "interval", m.interval)
	return nil
}

func (m *MonitorStage) Terminate() {
	log.Info("Monitor stage terminated")
}

func (m *MonitorStage) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.report()
			if m.watchdog > 0 {
				daemon.SdNotify(false, daemon.SdNotifyWatchdog)
			}
		}
	}
}

func (m *MonitorStage) report() {
	s := m.state
	st := s.Stats()

	metrics.SetFrameCounts(st.Captured, st.Encoded, st.Streamed, st.Dropped)
	metrics.SetQueueDepth("raw", s.Raw.Len())
	metrics.SetQueueDepth("encoded", s.Encoded.Len())
	metrics.SetQueueDepth("control", s.Control.Len())
	metrics.SetStreaming(s.Streaming())
	metrics.SetArenaLiveBytes(s.Arena.LiveBytes())

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	log.Info("Pipeline stats",
		"captured", st.Captured,
		"encoded", st.Encoded,
		"streamed", st.Streamed,
		"dropped", st.Dropped,
		"io_errors", st.IOErrors,
		"raw_queue", s.Raw.Len(),
		"encoded_queue", s.Encoded.Len(),
		"arena_live", s.Arena.LiveBytes(),
		"arena_high", s.Arena.HighWater(),
		"heap_mb", mem.HeapAlloc>>20,
		"goroutines", runtime.NumGoroutine(),
		"streaming", s.Streaming())
}
