package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

var (
	LoginSuccessTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gtgram_logins_success_total",
		Help: "Total number of successful logins.",
	})
	LoginFailureTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gtgram_logins_failure_total",
		Help: "Total number of rejected or failed logins.",
	})
	ActiveSessionsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gtgram_active_sessions_gauge",
		Help: "Whether an authenticated session is currently held (0 or 1 per instance).",
	})
	SessionsRestoredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gtgram_sessions_restored_total",
		Help: "Total number of sessions restored from the local cache at bootstrap.",
	})
	SessionsExpiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gtgram_sessions_expired_total",
		Help: "Total number of cached sessions discarded past the validity window.",
	})
	AutoProvisionedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gtgram_auto_provisioned_total",
		Help: "Total number of profile documents created by auto-provisioning.",
	})
	IdentityChangeTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gtgram_identity_change_events_total",
		Help: "Total number of sign-in state change events processed.",
	})
)

// Register registers all session metrics with the given registerer.
// Metrics are usable without registration, so library tests do not need
// to call this.
func Register(reg prometheus.Registerer) {
	if reg == nil {
		return
	}
	for _, c := range []prometheus.Collector{
		LoginSuccessTotal,
		LoginFailureTotal,
		ActiveSessionsGauge,
		SessionsRestoredTotal,
		SessionsExpiredTotal,
		AutoProvisionedTotal,
		IdentityChangeTotal,
	} {
		if err := reg.Register(c); err != nil {
			log.Warn().Err(err).Msg("Failed to register session metric")
		}
	}
}
