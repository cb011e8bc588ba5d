package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	frames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rilbridge",
			Subsystem: "transport",
			Name:      "frames_total",
			Help:      "Frames moved over the daemon socket.",
		},
		[]string{"socket", "direction", "kind"},
	)
	inflight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "rilbridge",
			Subsystem: "transport",
			Name:      "requests_inflight",
			Help:      "Requests registered and awaiting completion.",
		},
		[]string{"socket"},
	)
	completions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rilbridge",
			Subsystem: "transport",
			Name:      "completions_total",
			Help:      "Request completions by outcome.",
		},
		[]string{"socket", "code", "outcome"},
	)
	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rilbridge",
			Subsystem: "transport",
			Name:      "request_duration_seconds",
			Help:      "Time from registration to completion.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"socket", "code"},
	)
	connected = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "rilbridge",
			Subsystem: "transport",
			Name:      "connected",
			Help:      "1 while the daemon socket is connected.",
		},
		[]string{"socket"},
	)
	connectAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rilbridge",
			Subsystem: "transport",
			Name:      "connect_attempts_total",
			Help:      "Daemon socket connect attempts.",
		},
		[]string{"socket", "success"},
	)
	droppedEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rilbridge",
			Subsystem: "transport",
			Name:      "events_dropped_total",
			Help:      "Unsolicited events dropped because a subscriber was full.",
		},
		[]string{"socket", "code"},
	)
	unmatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rilbridge",
			Subsystem: "transport",
			Name:      "unmatched_replies_total",
			Help:      "Replies whose serial was no longer registered.",
		},
		[]string{"socket"},
	)
	lockHeld = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "rilbridge",
			Subsystem: "powerlock",
			Name:      "held",
			Help:      "1 while the lock is logically held.",
		},
		[]string{"socket", "kind"},
	)
	lockCount = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "rilbridge",
			Subsystem: "powerlock",
			Name:      "holds",
			Help:      "Outstanding holds on the lock.",
		},
		[]string{"socket", "kind"},
	)
	lockTimeouts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rilbridge",
			Subsystem: "powerlock",
			Name:      "timeouts_total",
			Help:      "Locks released by their safety timeout.",
		},
		[]string{"socket", "kind"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			frames, inflight, completions, requestDuration, connected,
			connectAttempts, droppedEvents, unmatched, lockHeld, lockCount, lockTimeouts,
		)
	})
}

func RecordFrame(socket, direction, kind string) {
	RegisterMetrics()
	frames.WithLabelValues(socket, direction, kind).Inc()
}

func SetInflight(socket string, n int) {
	RegisterMetrics()
	inflight.WithLabelValues(socket).Set(float64(n))
}

func RecordCompletion(socket string, code int32, outcome string, d time.Duration) {
	RegisterMetrics()
	codeLabel := strconv.FormatInt(int64(code), 10)
	completions.WithLabelValues(socket, codeLabel, outcome).Inc()
	if d > 0 {
		requestDuration.WithLabelValues(socket, codeLabel).Observe(d.Seconds())
	}
}

func SetConnected(socket string, up bool) {
	RegisterMetrics()
	v := 0.0
	if up {
		v = 1
	}
	connected.WithLabelValues(socket).Set(v)
}

func RecordConnectAttempt(socket string, success bool) {
	RegisterMetrics()
	connectAttempts.WithLabelValues(socket, strconv.FormatBool(success)).Inc()
}

func RecordDroppedEvent(socket string, code int32) {
	RegisterMetrics()
	droppedEvents.WithLabelValues(socket, strconv.FormatInt(int64(code), 10)).Inc()
}

func RecordUnmatchedReply(socket string) {
	RegisterMetrics()
	unmatched.WithLabelValues(socket).Inc()
}

func SetLockState(socket, kind string, held bool, holds uint32) {
	RegisterMetrics()
	v := 0.0
	if held {
		v = 1
	}
	lockHeld.WithLabelValues(socket, kind).Set(v)
	lockCount.WithLabelValues(socket, kind).Set(float64(holds))
}

func RecordLockTimeout(socket, kind string) {
	RegisterMetrics()
	lockTimeouts.WithLabelValues(socket, kind).Inc()
}
