// Package metrics holds the bot's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	commands        *prometheus.CounterVec
	upserts         *prometheus.CounterVec
	checkIns        *prometheus.CounterVec
	ambiguous       prometheus.Counter
	freshnessCycles *prometheus.CounterVec
	lastFreshness   prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rosterbot",
			Name:      "commands_total",
			Help:      "Chat commands handled, by command.",
		}, []string{"command"}),
		upserts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rosterbot",
			Name:      "roster_upserts_total",
			Help:      "Roster upserts, by outcome.",
		}, []string{"outcome"}),
		checkIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rosterbot",
			Name:      "checkins_total",
			Help:      "Check-in attempts, by outcome.",
		}, []string{"outcome"}),
		ambiguous: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rosterbot",
			Name:      "checkin_ambiguous_participants_total",
			Help:      "Check-ins where several participants shared the handle.",
		}),
		freshnessCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rosterbot",
			Name:      "freshness_cycles_total",
			Help:      "Sheet freshness cycles, by result.",
		}, []string{"result"}),
		lastFreshness: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rosterbot",
			Name:      "freshness_last_success_timestamp_seconds",
			Help:      "Unix time of the last fully successful freshness cycle.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.commands, m.upserts, m.checkIns, m.ambiguous, m.freshnessCycles, m.lastFreshness)
	}
	return m
}

func (m *Metrics) Command(name string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(name).Inc()
}

func (m *Metrics) Upsert(outcome string) {
	if m == nil {
		return
	}
	m.upserts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) CheckIn(outcome string) {
	if m == nil {
		return
	}
	m.checkIns.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AmbiguousParticipant() {
	if m == nil {
		return
	}
	m.ambiguous.Inc()
}

func (m *Metrics) FreshnessCycle(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.freshnessCycles.WithLabelValues("ok").Inc()
		m.lastFreshness.SetToCurrentTime()
		return
	}
	m.freshnessCycles.WithLabelValues("error").Inc()
}
