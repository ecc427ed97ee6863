// Package metrics holds the Prometheus instruments of the contact service.
// All collectors are registered with the global registry, so mounting
// promhttp.Handler() is enough to expose them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess = "success"
	OutcomeInvalid = "invalid"
)

var (
	SubmitAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contact_submit_attempts_total",
			Help: "Contact form submit attempts by outcome.",
		}, []string{"outcome"})

	FieldErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contact_field_errors_total",
			Help: "Validation errors recorded on submit, by field.",
		}, []string{"field"})

	FieldUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contact_field_updates_total",
			Help: "Field updates applied to contact forms, by field.",
		}, []string{"field"})

	NotifyErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "contact_notify_errors_total",
			Help: "Accepted submissions the notifier failed to deliver.",
		})

	RateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "contact_rate_limited_total",
			Help: "Requests rejected by the rate limiter.",
		})
)

func init() {
	prometheus.MustRegister(
		SubmitAttemptsTotal,
		FieldErrorsTotal,
		FieldUpdatesTotal,
		NotifyErrorsTotal,
		RateLimitedTotal,
	)
}
