// ABOUTME: Prometheus instrumentation for stores, fetches, and mutations
// ABOUTME: Collectors register on the default registry and are served by the dev server
package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pageCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "devicedrop",
		Subsystem: "store",
		Name:      "page_lookups_total",
		Help:      "Page cache lookups by kind and result (hit or miss).",
	}, []string{"kind", "result"})

	recordIndexLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "devicedrop",
		Subsystem: "store",
		Name:      "record_lookups_total",
		Help:      "Record index lookups by kind and result (hit or miss).",
	}, []string{"kind", "result"})

	fetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "devicedrop",
		Name:      "fetches_total",
		Help:      "Remote list calls by kind and outcome (ok, failed, superseded).",
	}, []string{"kind", "outcome"})

	mutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "devicedrop",
		Name:      "mutations_total",
		Help:      "Facade mutations by kind, action and outcome code.",
	}, []string{"kind", "action", "outcome"})

	ticketsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "devicedrop",
		Subsystem: "gate",
		Name:      "tickets_in_flight",
		Help:      "Mutation tickets currently held.",
	})
)

func outcomeLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if c := CodeOf(err); c != "" {
		return string(c)
	}
	return "error"
}
