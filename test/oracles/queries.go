package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_approver_is_candidate",
			SQL: `SELECT a.request_id, a.stockist_id FROM card_approvals a
                  WHERE NOT EXISTS (
                      SELECT 1 FROM card_request_stockists c
                      WHERE c.request_id = a.request_id AND c.stockist_id = a.stockist_id)`,
		},
		{
			Name: "O2_approved_means_quorum",
			SQL: `SELECT r.id, r.threshold,
                         (SELECT COUNT(*) FROM card_approvals a WHERE a.request_id = r.id) AS votes
                  FROM card_requests r
                  WHERE r.status = 'approved'
                    AND (SELECT COUNT(*) FROM card_approvals a WHERE a.request_id = r.id) < r.threshold`,
		},
		{
			Name: "O3_quorum_means_not_pending",
			SQL: `SELECT r.id FROM card_requests r
                  WHERE r.status = 'pending'
                    AND (SELECT COUNT(*) FROM card_approvals a WHERE a.request_id = r.id) >= r.threshold`,
		},
		{
			Name: "O4_approved_has_timestamp",
			SQL: `SELECT id FROM card_requests
                  WHERE (status = 'approved') <> (approved_at IS NOT NULL)`,
		},
		{
			Name: "O5_grant_at_most_once",
			SQL: `SELECT u.id,
                         (SELECT COUNT(*) FROM purchasers p WHERE p.created_by = u.id) AS profiles,
                         (SELECT COUNT(*) FROM card_requests r WHERE r.requester_id = u.id AND r.status = 'approved') AS approved
                  FROM users u
                  WHERE (SELECT COUNT(*) FROM purchasers p WHERE p.created_by = u.id)
                        > (SELECT COUNT(*) FROM card_requests r WHERE r.requester_id = u.id AND r.status = 'approved')`,
		},
		{
			Name: "O6_card_flag_backed_by_approval",
			SQL: `SELECT u.id FROM users u
                  WHERE u.has_purchasing_card
                    AND NOT EXISTS (
                        SELECT 1 FROM card_requests r
                        WHERE r.requester_id = u.id AND r.status = 'approved')`,
		},
		{
			Name: "O7_token_consumed_with_vote",
			SQL: `SELECT t.request_id, t.stockist_id FROM card_approval_tokens t
                  JOIN card_requests r ON r.id = t.request_id
                  WHERE t.used
                    AND r.status = 'pending'
                    AND NOT EXISTS (
                        SELECT 1 FROM card_approvals a
                        WHERE a.request_id = t.request_id AND a.stockist_id = t.stockist_id)`,
		},
		{
			Name: "O8_decision_always_audited",
			SQL: `SELECT s.id, s.status FROM stockists s
                  WHERE s.email LIKE 'decider-%'
                    AND s.status <> 'processing'
                    AND NOT EXISTS (
                        SELECT 1 FROM admin_audits au
                        WHERE au.target_kind = 'stockist' AND au.target_id = s.id)`,
		},
		{
			Name: "O9_decided_stockist_stamped",
			SQL: `SELECT id, status FROM stockists
                  WHERE (status = 'approved' AND approved_at IS NULL)
                     OR (status = 'declined' AND declined_at IS NULL)`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row text) or empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
