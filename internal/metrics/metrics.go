package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	ordersCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_orders_created_total",
			Help: "Order creation attempts by outcome",
		},
		[]string{"result"},
	)

	orderTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_order_transitions_total",
			Help: "Committed order status transitions",
		},
		[]string{"to"},
	)

	orderPayAmount = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "storefront_order_pay_amount",
			Help:    "Payable amount of created orders",
			Buckets: []float64{10, 50, 100, 200, 500, 1000, 5000},
		},
	)

	couponClaimsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_coupon_claims_total",
			Help: "Coupon claim attempts by outcome",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(ordersCreatedTotal)
	prometheus.MustRegister(orderTransitionsTotal)
	prometheus.MustRegister(orderPayAmount)
	prometheus.MustRegister(couponClaimsTotal)
}

// Middleware records request counts and latency labelled by the matched chi
// route pattern, so path parameters do not explode label cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordOrderCreated(result string, payAmount float64) {
	ordersCreatedTotal.WithLabelValues(result).Inc()
	if result == "success" {
		orderPayAmount.Observe(payAmount)
	}
}

func RecordOrderTransition(to string) {
	orderTransitionsTotal.WithLabelValues(to).Inc()
}

func RecordCouponClaim(result string) {
	couponClaimsTotal.WithLabelValues(result).Inc()
}
