package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "consogab_messages_sent_total",
		Help: "Messages accepted by the send endpoint.",
	})
	RealtimeEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "consogab_realtime_events_total",
		Help: "Envelopes fanned out to websocket sessions.",
	}, []string{"event"})
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "consogab_ws_active_sessions",
		Help: "Currently connected websocket sessions.",
	})
)

// Handler returns the scrape endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
