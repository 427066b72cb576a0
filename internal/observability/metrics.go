package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	CarrierAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "sms_carrier_attempts_total", Help: "Carrier send attempts by outcome"},
		[]string{"carrier", "result"},
	)
	CarrierLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "sms_carrier_latency_seconds", Help: "Carrier call latency"},
		[]string{"carrier"},
	)
	Dispatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "sms_dispatch_total", Help: "Per-recipient dispatch outcomes"},
		[]string{"result"},
	)
	RateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "sms_rate_limited_total", Help: "Dispatch calls rejected by the rate limiter"},
	)
	CampaignRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "sms_campaign_runs_total", Help: "Campaign executions by final status"},
		[]string{"status"},
	)
	AutoresponderTriggers = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "sms_autoresponder_triggers_total", Help: "Autoresponder outcomes"},
		[]string{"trigger_type", "outcome"},
	)
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(CarrierAttempts, CarrierLatency, Dispatches, RateLimited, CampaignRuns, AutoresponderTriggers)
}
