// Package metrics registers the Prometheus instruments for the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	Registrations     prometheus.Counter
	Logins            *prometheus.CounterVec
	CredentialChanges *prometheus.CounterVec
	RateLimited       prometheus.Counter
	TokenRejections   *prometheus.CounterVec
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		Registrations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "keyward_registrations_total",
			Help: "Total number of successful registrations",
		}),
		Logins: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "keyward_logins_total",
			Help: "Login attempts by result",
		}, []string{"result"}),
		CredentialChanges: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "keyward_credential_changes_total",
			Help: "Credential change operations by kind",
		}, []string{"kind"}),
		RateLimited: promauto.NewCounter(prometheus.CounterOpts{
			Name: "keyward_rate_limited_total",
			Help: "Requests rejected by the rate governor",
		}),
		TokenRejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "keyward_token_rejections_total",
			Help: "Token validation failures by reason",
		}, []string{"reason"}),
	}
}
