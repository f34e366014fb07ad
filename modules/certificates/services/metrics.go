package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vecinal/certdesk/modules/certificates/domain/aggregates/request"
)

var (
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "certificates",
		Name:      "transitions_total",
		Help:      "Committed request state transitions.",
	}, []string{"from", "to"})

	documentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "certificates",
		Name:      "documents_total",
		Help:      "Certificate document generations by result.",
	}, []string{"result"})

	documentRenderSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "certificates",
		Name:      "document_render_seconds",
		Help:      "Time spent rendering a certificate PDF.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	})
)

func recordTransition(from, to request.State) {
	transitionsTotal.WithLabelValues(string(from), string(to)).Inc()
}

func recordDocument(result string) {
	documentsTotal.WithLabelValues(result).Inc()
}

func observeRender(start time.Time) {
	documentRenderSeconds.Observe(time.Since(start).Seconds())
}
