package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"b3-tracker/internal/metrics"
)

// SetupRoutes configures all API routes
func SetupRoutes(handler *Handler) *mux.Router {
	r := mux.NewRouter()
	r.Use(instrument(handler.metrics, handler.logger))

	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")
	r.Handle("/metrics", handler.metrics.Handler()).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/positions", handler.GetPositions).Methods("GET")
	api.HandleFunc("/transactions", handler.GetTransactions).Methods("GET")
	api.HandleFunc("/indicators/{ticker}", handler.GetIndicators).Methods("GET")
	api.HandleFunc("/fii/{ticker}/score", handler.GetFundScore).Methods("GET")
	api.HandleFunc("/fii/segments/{id}/ranking", handler.GetSegmentRanking).Methods("GET")

	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// instrument logs each request and counts it by route template.
func instrument(m *metrics.Metrics, logger zerolog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			route := r.URL.Path
			if cr := mux.CurrentRoute(r); cr != nil {
				if tpl, err := cr.GetPathTemplate(); err == nil {
					route = tpl
				}
			}
			m.ObserveHTTP(route, rec.status)
			logger.Debug().
				Str("method", r.Method).
				Str("route", route).
				Int("status", rec.status).
				Dur("elapsed", time.Since(start)).
				Msg("http request")
		})
	}
}

// Serve runs the API on addr until ctx is cancelled, then shuts down
// gracefully.
func Serve(ctx context.Context, addr string, handler *Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           SetupRoutes(handler),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		handler.logger.Info().Str("addr", addr).Msg("api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	handler.logger.Info().Msg("api stopped")
	return nil
}
