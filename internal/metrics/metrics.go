// Package metrics exposes the prometheus collectors shared by the bazar
// services. CompensationFailures is the alerting signal: any non-zero value
// means a stock unit was decremented with no order on record.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PurchasesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bazar_purchases_total",
		Help: "Purchase requests by terminal state.",
	}, []string{"state"})

	ReservationRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bazar_reservation_retries_total",
		Help: "Internal retries of stock reservations after a transient conflict.",
	})

	CompensationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bazar_compensation_failures_total",
		Help: "Stock restores that failed after a recording failure. Requires reconciliation.",
	})

	StockRestored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bazar_stock_restored_total",
		Help: "Stock units restored by saga compensation.",
	})
)

// Handler serves the default prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
