package dev

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Default tracer name for dev server spans.
const defaultTracerName = "vpack"

// httpMetrics holds the Prometheus collectors for served requests.
type httpMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	fallbacks       prometheus.Counter
	reloadsSent     prometheus.Counter
}

func newHTTPMetrics(reg prometheus.Registerer) *httpMetrics {
	factory := promauto.With(reg)

	return &httpMetrics{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vpack",
			Subsystem: "dev",
			Name:      "requests_total",
			Help:      "Total number of dev server requests by route and status code",
		}, []string{"route", "code"}),

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "vpack",
			Subsystem: "dev",
			Name:      "request_duration_seconds",
			Help:      "Dev server request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),

		fallbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "vpack",
			Subsystem: "dev",
			Name:      "history_fallbacks_total",
			Help:      "Total number of requests answered with the index document",
		}),

		reloadsSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "vpack",
			Subsystem: "dev",
			Name:      "notifications_total",
			Help:      "Total number of build notifications broadcast to browsers",
		}),
	}
}

// instrument records metrics and a server span for every request.
func (m *httpMetrics) instrument(tracer trace.Tracer) func(http.Handler) http.Handler {
	if tracer == nil {
		tracer = otel.Tracer(defaultTracerName)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx, span := tracer.Start(r.Context(), fmt.Sprintf("vpack.dev %s", r.Method),
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.method", r.Method),
					attribute.String("http.target", r.URL.Path),
				))
			defer span.End()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			route := "unknown"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			span.SetAttributes(
				attribute.String("http.route", route),
				attribute.Int("http.status_code", status),
			)
			if status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(status))
			}

			m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
			m.requestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
		})
	}
}
