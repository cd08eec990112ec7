// Package metrics exposes Prometheus counters for the SQP responder.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const namespace = "sqpd"

// Drop reasons used as label values of DatagramsDropped.
const (
	ReasonMalformed    = "malformed"
	ReasonUnknownType  = "unknown_type"
	ReasonUnauthorized = "unauthorized"
	ReasonMismatch     = "token_mismatch"
	ReasonUnsupported  = "unsupported_chunk"
	ReasonEncode       = "encode_failed"
)

// Metrics holds the responder collectors.
type Metrics struct {
	DatagramsReceived prometheus.Counter
	ChallengesIssued  prometheus.Counter
	QueriesServed     prometheus.Counter
	DatagramsDropped  *prometheus.CounterVec
	SendErrors        prometheus.Counter
	PendingTokens     prometheus.Gauge
	TokensExpired     prometheus.Counter
	BuildInfo         *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg.
// A nil reg yields working but unregistered collectors.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		DatagramsReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "responder",
			Name:      "datagrams_received_total",
			Help:      "Number of datagrams read from the socket.",
		}),
		ChallengesIssued: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "responder",
			Name:      "challenges_issued_total",
			Help:      "Number of challenge responses sent.",
		}),
		QueriesServed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "responder",
			Name:      "queries_served_total",
			Help:      "Number of ServerInfo responses sent.",
		}),
		DatagramsDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "responder",
			Name:      "datagrams_dropped_total",
			Help:      "Number of datagrams dropped without a response, by reason.",
		}, []string{"reason"}),
		SendErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "responder",
			Name:      "send_errors_total",
			Help:      "Number of responses the socket failed to send.",
		}),
		PendingTokens: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tokens",
			Name:      "pending",
			Help:      "Number of challenge tokens waiting for a query.",
		}),
		TokensExpired: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tokens",
			Name:      "expired_total",
			Help:      "Number of challenge tokens removed by the TTL sweep.",
		}),
		BuildInfo: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "A metric with a constant '1' value labeled by version and commit.",
		}, []string{"version", "commit"}),
	}
}

// Serve exposes /metrics from gatherer on address until ctx is done.
func Serve(ctx context.Context, address string, gatherer prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:         address,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Metrics server forced to shutdown")
		}
	}()

	log.Info().Str("address", address).Msg("Metrics server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
