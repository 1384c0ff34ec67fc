// Package metrics holds the prometheus collectors shared by the sync client.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is safe to use as a nil pointer; every method becomes a no-op.
type Metrics struct {
	autosaveWrites  *prometheus.CounterVec
	autosaveSkipped *prometheus.CounterVec
	autosaveRetries prometheus.Counter
	channelMessages *prometheus.CounterVec
	channelState    *prometheus.CounterVec
	cacheOps        *prometheus.CounterVec
	uploads         *prometheus.CounterVec
}

// New creates the collectors and registers them on reg. A nil registerer
// yields unregistered collectors, which is what tests want.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		autosaveWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "editor",
			Subsystem: "autosave",
			Name:      "writes_total",
			Help:      "Remote document writes issued by the autosave scheduler.",
		}, []string{"result"}),
		autosaveSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "editor",
			Subsystem: "autosave",
			Name:      "skipped_total",
			Help:      "Debounce firings that did not write.",
		}, []string{"reason"}),
		autosaveRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "editor",
			Subsystem: "autosave",
			Name:      "retries_total",
			Help:      "Retries scheduled after a failed write.",
		}),
		channelMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "editor",
			Subsystem: "channel",
			Name:      "messages_total",
			Help:      "Sync channel messages by direction and type.",
		}, []string{"direction", "type"}),
		channelState: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "editor",
			Subsystem: "channel",
			Name:      "state_transitions_total",
			Help:      "Sync channel state transitions.",
		}, []string{"state"}),
		cacheOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "editor",
			Subsystem: "cache",
			Name:      "operations_total",
			Help:      "Local cache operations by outcome.",
		}, []string{"op", "result"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "editor",
			Subsystem: "upload",
			Name:      "images_total",
			Help:      "Image uploads by outcome.",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.autosaveWrites,
			m.autosaveSkipped,
			m.autosaveRetries,
			m.channelMessages,
			m.channelState,
			m.cacheOps,
			m.uploads,
		)
	}
	return m
}

func (m *Metrics) AutosaveWrite(ok bool) {
	if m == nil {
		return
	}
	m.autosaveWrites.WithLabelValues(result(ok)).Inc()
}

func (m *Metrics) AutosaveSkipped(reason string) {
	if m == nil {
		return
	}
	m.autosaveSkipped.WithLabelValues(reason).Inc()
}

func (m *Metrics) AutosaveRetry() {
	if m == nil {
		return
	}
	m.autosaveRetries.Inc()
}

func (m *Metrics) ChannelMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.channelMessages.WithLabelValues(direction, msgType).Inc()
}

func (m *Metrics) ChannelState(state string) {
	if m == nil {
		return
	}
	m.channelState.WithLabelValues(state).Inc()
}

func (m *Metrics) CacheOp(op string, ok bool) {
	if m == nil {
		return
	}
	m.cacheOps.WithLabelValues(op, result(ok)).Inc()
}

func (m *Metrics) Upload(ok bool) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(result(ok)).Inc()
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
