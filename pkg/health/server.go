// Package health serves the operational endpoints: liveness, readiness,
// service status and Prometheus metrics.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/paystream-hq/paystreamer/pkg/circuitbreaker"
	"github.com/paystream-hq/paystreamer/pkg/intent"
	"github.com/paystream-hq/paystreamer/pkg/logger"
	"github.com/paystream-hq/paystreamer/pkg/models"
	"github.com/paystream-hq/paystreamer/pkg/registry"
	"github.com/paystream-hq/paystreamer/pkg/subscription"
)

// WalletInfoProvider reports the signer wallet backing the registry.
type WalletInfoProvider interface {
	WalletInfo(ctx context.Context) (registry.WalletInfo, error)
}

// Server is the health and metrics HTTP server, separate from the public
// API so operational traffic never competes with it.
type Server struct {
	port          string
	intents       *intent.Manager
	subs          *subscription.Manager
	wallet        WalletInfoProvider
	breaker       *circuitbreaker.CircuitBreaker
	logger        logger.Logger
	metricsAPIKey string
	startedAt     time.Time
}

// NewServer creates a health check server. Metrics are protected with a
// bearer token when METRICS_API_KEY is set.
func NewServer(port string, intents *intent.Manager, subs *subscription.Manager, wallet WalletInfoProvider, breaker *circuitbreaker.CircuitBreaker, log logger.Logger) *Server {
	return &Server{
		port:          port,
		intents:       intents,
		subs:          subs,
		wallet:        wallet,
		breaker:       breaker,
		logger:        log,
		metricsAPIKey: os.Getenv("METRICS_API_KEY"),
		startedAt:     time.Now(),
	}
}

// metricsAuthMiddleware checks for a valid API key on the metrics endpoint.
func (s *Server) metricsAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.metricsAPIKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Missing Authorization header", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
			return
		}

		if parts[1] != s.metricsAPIKey {
			http.Error(w, "Invalid API key", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Handler builds the health server's routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.wallet.WalletInfo(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(fmt.Sprintf("Registry not reachable: %v", err)))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Ready"))
	})

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		byStatus := make(map[models.IntentStatus]int)
		for _, it := range s.intents.AllIntents() {
			byStatus[it.Status]++
		}

		active := 0
		for _, sub := range s.subs.AllSubscriptions() {
			if sub.Status == models.SubscriptionActive {
				active++
			}
		}

		circuitStatus := "closed"
		if s.breaker.IsOpen() {
			circuitStatus = "open"
		}

		status := map[string]interface{}{
			"uptime_seconds":       int(time.Since(s.startedAt).Seconds()),
			"intents_by_status":    byStatus,
			"active_subscriptions": active,
			"settlement_circuit":   circuitStatus,
		}

		if info, err := s.wallet.WalletInfo(r.Context()); err == nil {
			status["wallet"] = info
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(status); err != nil {
			s.logger.Error("Error encoding status JSON: %v", err)
		}
	})

	mux.HandleFunc("/circuit/reset", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		s.breaker.Reset()
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Settlement circuit breaker reset"))
	})

	mux.Handle("/metrics", s.metricsAuthMiddleware(promhttp.Handler()))

	return mux
}

// Start runs the health server. It blocks until the listener fails.
func (s *Server) Start() {
	s.logger.Notice("Starting health and metrics server on port %s", s.port)
	if err := http.ListenAndServe(":"+s.port, s.Handler()); err != nil {
		s.logger.Error("Health server error: %v", err)
	}
}
