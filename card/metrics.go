package card

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts engine activity for the /metrics endpoint.
type Metrics struct {
	RequestsCreated  prometheus.Counter
	Approvals        prometheus.Counter
	DuplicateVotes   prometheus.Counter
	TokensRedeemed   prometheus.Counter
	Grants           prometheus.Counter
	GrantFailures    prometheus.Counter
	NotifyFailures   prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "card_requests_created_total",
			Help: "Purchasing-card requests opened.",
		}),
		Approvals: factory.NewCounter(prometheus.CounterOpts{
			Name: "card_approvals_total",
			Help: "Stockist approvals recorded.",
		}),
		DuplicateVotes: factory.NewCounter(prometheus.CounterOpts{
			Name: "card_duplicate_votes_total",
			Help: "Approval attempts that were idempotent repeats.",
		}),
		TokensRedeemed: factory.NewCounter(prometheus.CounterOpts{
			Name: "card_tokens_redeemed_total",
			Help: "Email approval tokens redeemed.",
		}),
		Grants: factory.NewCounter(prometheus.CounterOpts{
			Name: "card_grants_total",
			Help: "Purchasing cards granted.",
		}),
		GrantFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "card_grant_failures_total",
			Help: "Grant executions that failed after threshold.",
		}),
		NotifyFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "card_notify_failures_total",
			Help: "Approval request emails that could not be delivered.",
		}),
	}
}
