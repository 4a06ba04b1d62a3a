// Package metrics exposes Prometheus gauges and histograms for the frame
// pipeline. The pipeline's own atomic counters remain the source of truth
// (they are resettable via the reset-statistics control event, which
// Prometheus counters are not); the monitor stage mirrors them here.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	framesTotal = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "camnode",
		Subsystem: "pipeline",
		Name:      "frames",
		Help:      "Frame counts by pipeline stage outcome",
	}, []string{"outcome"})

	queueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "camnode",
		Subsystem: "pipeline",
		Name:      "queue_depth",
		Help:      "Current occupancy of the hand-off queues",
	}, []string{"queue"})

	streamingActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "camnode",
		Subsystem: "pipeline",
		Name:      "streaming_active",
		Help:      "Whether the streaming gate is open (1) or closed (0)",
	})

	arenaLiveBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "camnode",
		Subsystem: "arena",
		Name:      "live_bytes",
		Help:      "Bytes currently allocated from the frame arena",
	})

	pullLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "camnode",
		Subsystem: "uvc",
		Name:      "pull_latency_seconds",
		Help:      "Latency of the gadget's get-next-frame callback",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
	})
)

// SetFrameCounts mirrors the pipeline's statistics counters.
func SetFrameCounts(captured, encoded, streamed, dropped uint64) {
	framesTotal.WithLabelValues("captured").Set(float64(captured))
	framesTotal.WithLabelValues("encoded").Set(float64(encoded))
	framesTotal.WithLabelValues("streamed").Set(float64(streamed))
	framesTotal.WithLabelValues("dropped").Set(float64(dropped))
}

// SetQueueDepth records the occupancy of one hand-off queue.
func SetQueueDepth(queue string, depth int) {
	queueDepth.WithLabelValues(queue).Set(float64(depth))
}

// SetStreaming records the streaming gate state.
func SetStreaming(active bool) {
	if active {
		streamingActive.Set(1)
	} else {
		streamingActive.Set(0)
	}
}

// SetArenaLiveBytes records current arena usage.
func SetArenaLiveBytes(n int) {
	arenaLiveBytes.Set(float64(n))
}

// ObservePullLatency records one GetFrame callback duration.
func ObservePullLatency(d time.Duration) {
	pullLatency.Observe(d.Seconds())
}
