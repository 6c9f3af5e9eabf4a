// Package metrics defines the Prometheus instrumentation for the
// authentication engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's Prometheus collectors. Create one per
// process with [New] and share it between the engine and the HTTP
// layer.
type Metrics struct {
	LoginSuccess      prometheus.Counter
	LoginFailure      prometheus.Counter
	AccountsLocked    prometheus.Counter
	RateLimitHits     *prometheus.CounterVec
	SessionsCreated   prometheus.Counter
	SessionsEvicted   prometheus.Counter
	SessionsRefreshed prometheus.Counter
	SessionsExpired   prometheus.Counter
	SessionsRevoked   prometheus.Counter
	CodesIssued       *prometheus.CounterVec
	CodesRedeemed     *prometheus.CounterVec
	AccountsDeleted   prometheus.Counter
}

// New registers the engine collectors with reg and returns them.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		LoginSuccess: factory.NewCounter(prometheus.CounterOpts{
			Name: "authedge_logins_total",
			Help: "Successful logins.",
		}),
		LoginFailure: factory.NewCounter(prometheus.CounterOpts{
			Name: "authedge_login_failures_total",
			Help: "Failed login attempts.",
		}),
		AccountsLocked: factory.NewCounter(prometheus.CounterOpts{
			Name: "authedge_accounts_locked_total",
			Help: "Accounts locked by the failed-login controller.",
		}),
		RateLimitHits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "authedge_rate_limit_hits_total",
			Help: "Requests rejected by a fixed-window counter.",
		}, []string{"operation"}),
		SessionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "authedge_sessions_created_total",
			Help: "Sessions created.",
		}),
		SessionsEvicted: factory.NewCounter(prometheus.CounterOpts{
			Name: "authedge_sessions_evicted_total",
			Help: "Sessions evicted by the per-account cap.",
		}),
		SessionsRefreshed: factory.NewCounter(prometheus.CounterOpts{
			Name: "authedge_sessions_refreshed_total",
			Help: "Sessions refreshed by the gate.",
		}),
		SessionsExpired: factory.NewCounter(prometheus.CounterOpts{
			Name: "authedge_sessions_expired_total",
			Help: "Sessions deleted on hard expiration.",
		}),
		SessionsRevoked: factory.NewCounter(prometheus.CounterOpts{
			Name: "authedge_sessions_revoked_total",
			Help: "Sessions deleted by logout or account deletion.",
		}),
		CodesIssued: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "authedge_codes_issued_total",
			Help: "One-time codes issued.",
		}, []string{"purpose"}),
		CodesRedeemed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "authedge_codes_redeemed_total",
			Help: "One-time codes successfully redeemed.",
		}, []string{"purpose"}),
		AccountsDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "authedge_accounts_deleted_total",
			Help: "Accounts deleted.",
		}),
	}
}
