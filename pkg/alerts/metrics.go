package alerts

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mCycles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dreambot_alert_cycles_total", Help: "Price alert poll cycles run",
	})
	mFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dreambot_alert_items_fetched_total", Help: "Item prices fetched successfully",
	})
	mFetchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dreambot_alert_fetch_failures_total", Help: "Item price fetches that failed or returned no data",
	})
	mTriggered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dreambot_alert_triggered_total", Help: "Alerts spent on a crossed threshold",
	})
	mDeliveryFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dreambot_alert_delivery_failures_total", Help: "Alert notifications that could not be delivered",
	})
	mRemoved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dreambot_alert_subscriptions_removed_total", Help: "Subscriptions removed after spending their budget",
	})
	mErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dreambot_alert_errors_total", Help: "Store and lock errors during poll cycles",
	})
	mCycleDur = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "dreambot_alert_cycle_duration_seconds", Help: "Price alert poll cycle duration",
		Buckets: prometheus.DefBuckets,
	})
)

func (s CycleStats) observe() {
	mCycles.Inc()
	mFetched.Add(float64(s.Items - s.FetchFailures))
	mFetchFailures.Add(float64(s.FetchFailures))
	mTriggered.Add(float64(s.Triggered))
	mDeliveryFailures.Add(float64(s.DeliveryFailures))
	mRemoved.Add(float64(s.Removed))
	mErrors.Add(float64(s.Errors))
}
