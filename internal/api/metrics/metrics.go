// Package metrics defines the custom Prometheus metrics of the booking API.
// HTTP request metrics come from echoprometheus; the collectors here count
// business events. All of them register with the default registry on import.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "natours"

// ── Accounts ──────────────────────────────────────────────────────────────────

// SignupsTotal counts accounts created through self sign-up.
var SignupsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "signups_total",
		Help:      "Total number of self sign-ups.",
	},
)

// LoginsTotal counts login attempts.
// Label:
//   - result: "success" or "failure"
var LoginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Total number of login attempts, by result.",
	},
	[]string{"result"},
)

// ── Bookings ──────────────────────────────────────────────────────────────────

// CheckoutSessionsTotal counts checkout sessions requested from the payment provider.
// Label:
//   - result: "created" or "error"
var CheckoutSessionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkout_sessions_total",
		Help:      "Total number of checkout sessions requested, by result.",
	},
	[]string{"result"},
)

// WebhookEventsTotal counts payment webhook deliveries.
// Label:
//   - result: "booked", "ignored", "rejected" (bad signature or payload) or "failed"
var WebhookEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_events_total",
		Help:      "Total number of payment webhook deliveries, by outcome.",
	},
	[]string{"result"},
)

// ── Images ────────────────────────────────────────────────────────────────────

// ImageProcessingDuration measures resize and store time of one upload request.
// Label:
//   - kind: "user" or "tour"
var ImageProcessingDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "image_processing_duration_seconds",
		Help:      "Duration of image resize and storage per upload request.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"kind"},
)
