package api

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/airwatch-io/airwatch/internal/ingest"
	"github.com/airwatch-io/airwatch/internal/metrics"
	"github.com/airwatch-io/airwatch/internal/store"
)

type Server struct {
	store    *store.Store
	pipeline *ingest.Pipeline
	addr     string
}

func NewServer(store *store.Store, pipeline *ingest.Pipeline, addr string) *Server {
	return &Server{
		store:    store,
		pipeline: pipeline,
		addr:     addr,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /upload", timed("upload", s.handleUpload))
	mux.HandleFunc("GET /alerts", timed("alerts", s.handleAlerts))
	mux.HandleFunc("GET /alerts/city/{city}", timed("alerts_by_city", s.handleAlertsByCity))
	mux.HandleFunc("GET /cities/best", timed("best_cities", s.handleBestCities))
	mux.HandleFunc("GET /cities/{city}", timed("city", s.handleCity))
	mux.HandleFunc("GET /cities/{city}/average", timed("city_average", s.handleCityAverage))
	mux.HandleFunc("GET /history", timed("history", s.handleHistory))
	mux.HandleFunc("GET /badge", timed("badge", s.handleBadge))
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func timed(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		h(w, r)
		metrics.HTTPRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}
