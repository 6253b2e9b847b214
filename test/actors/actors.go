package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"meditrap/card"
	"meditrap/onboarding"
	"meditrap/purchaser"
)

// transient reports whether an error is an expected casualty of chaos: a
// terminated backend, a closed connection, or a transaction aborted mid-kill.
func transient(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "57P01", "57014", "08006", "08003", "40001", "40P01":
			return true
		}
	}
	if errors.Is(err, pgx.ErrTxClosed) || errors.Is(err, pgx.ErrTxCommitRollback) {
		return true
	}
	msg := err.Error()
	for _, hint := range []string{"conn closed", "connection reset", "unexpected EOF", "broken pipe", "server closed"} {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}

// RequestCreator registers a fresh store owner and opens a purchasing-card
// request naming a random subset of the seeded stockists, then marks the
// request with its own token batch.
func RequestCreator(ctx context.Context, pool *pgxpool.Pool, stockistIDs []string, stop <-chan struct{}) error {
	repo := card.NewRepository(pool)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		nonce := rand.Int63()
		var userID string
		err := pool.QueryRow(ctx, `INSERT INTO users (medical_name, owner_name, address, email, contact_no, drug_license_no, password_hash, status)
			VALUES ('Stress Pharmacy', 'Stress Owner', 'Nowhere Lane', $1, '9999999999', $2, 'x', 'approved') RETURNING id`,
			fmt.Sprintf("owner%d@stress.test", nonce), fmt.Sprintf("DL-STRESS-%d", nonce)).Scan(&userID)
		if err != nil {
			if transient(err) {
				continue
			}
			return fmt.Errorf("creator seed user: %w", err)
		}

		n := 3 + rand.Intn(len(stockistIDs)-2)
		picked := pickStockists(stockistIDs, n)
		recipients := make([]card.RecipientToken, 0, len(picked))
		for _, id := range picked {
			recipients = append(recipients, card.RecipientToken{
				StockistID: id,
				Token:      fmt.Sprintf("tok-%s-%d", id, rand.Int63()),
			})
		}

		_, err = repo.CreateRequest(ctx, card.CreateRequestParams{
			RequesterID:    userID,
			RequesterName:  "Stress Owner",
			RequesterEmail: fmt.Sprintf("owner%d@stress.test", nonce),
			Payload:        card.Payload{FullName: "Stress Owner", ContactNo: "9999999999"},
			Threshold:      3,
			Recipients:     recipients,
		})
		if err != nil && !transient(err) {
			return fmt.Errorf("creator request: %w", err)
		}
		time.Sleep(time.Duration(20+rand.Intn(40)) * time.Millisecond)
	}
}

func pickStockists(ids []string, n int) []string {
	shuffled := append([]string(nil), ids...)
	rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	if n > len(shuffled) {
		n = len(shuffled)
	}
	return shuffled[:n]
}

// Approver votes on random pending requests as a random stockist. Duplicate
// votes, already-decided requests, and non-candidate rejections are all
// expected outcomes under contention.
func Approver(ctx context.Context, pool *pgxpool.Pool, stockistIDs []string, stop <-chan struct{}) error {
	repo := card.NewRepository(pool)
	purchasers := purchaser.NewRepository(pool)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		var requestID string
		err := pool.QueryRow(ctx, `SELECT id FROM card_requests WHERE status = 'pending' ORDER BY random() LIMIT 1`).Scan(&requestID)
		if errors.Is(err, pgx.ErrNoRows) {
			time.Sleep(25 * time.Millisecond)
			continue
		}
		if err != nil {
			if transient(err) {
				continue
			}
			return fmt.Errorf("approver pick: %w", err)
		}

		stockistID := stockistIDs[rand.Intn(len(stockistIDs))]
		outcome, err := repo.ApplyApproval(ctx, requestID, stockistID)
		switch {
		case err == nil:
			if outcome.Reached {
				if gerr := grant(ctx, purchasers, outcome.Request); gerr != nil && !transient(gerr) {
					return fmt.Errorf("approver grant: %w", gerr)
				}
			}
		case errors.Is(err, card.ErrAlreadyProcessed),
			errors.Is(err, card.ErrUnauthorizedApprover),
			errors.Is(err, card.ErrRequestNotFound):
			// lost the race, fine
		case transient(err):
		default:
			return fmt.Errorf("approver vote: %w", err)
		}
		time.Sleep(time.Duration(5+rand.Intn(15)) * time.Millisecond)
	}
}

// TokenRedeemer plays the email approval path: it grabs random unused tokens
// and redeems them, racing the authenticated Approver for the same slots.
func TokenRedeemer(ctx context.Context, pool *pgxpool.Pool, stop <-chan struct{}) error {
	repo := card.NewRepository(pool)
	purchasers := purchaser.NewRepository(pool)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		var token string
		err := pool.QueryRow(ctx, `SELECT token FROM card_approval_tokens WHERE NOT used ORDER BY random() LIMIT 1`).Scan(&token)
		if errors.Is(err, pgx.ErrNoRows) {
			time.Sleep(25 * time.Millisecond)
			continue
		}
		if err != nil {
			if transient(err) {
				continue
			}
			return fmt.Errorf("redeemer pick: %w", err)
		}

		outcome, err := repo.RedeemToken(ctx, token)
		switch {
		case err == nil:
			if outcome.Reached {
				if gerr := grant(ctx, purchasers, outcome.Request); gerr != nil && !transient(gerr) {
					return fmt.Errorf("redeemer grant: %w", gerr)
				}
			}
		case errors.Is(err, card.ErrInvalidToken), errors.Is(err, card.ErrAlreadyProcessed):
			// consumed by someone else or request already decided
		case transient(err):
		default:
			return fmt.Errorf("redeemer redeem: %w", err)
		}
		time.Sleep(time.Duration(10+rand.Intn(20)) * time.Millisecond)
	}
}

// grant mirrors the card granter wired in cmd/api: one transaction creating
// the purchaser profile and flipping the owner's card flags.
func grant(ctx context.Context, repo *purchaser.PGRepository, req card.Request) error {
	tx, err := repo.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	_, err = repo.CreateInTx(ctx, tx, purchaser.CreateParams{
		FullName:  req.Payload.FullName,
		ContactNo: req.Payload.ContactNo,
		CreatedBy: req.RequesterID,
	})
	if err != nil {
		return err
	}
	if err := repo.MarkCardGrantedInTx(ctx, tx, req.RequesterID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Canceller occasionally rejects a pending request, racing in-flight votes.
func Canceller(ctx context.Context, pool *pgxpool.Pool, stop <-chan struct{}) error {
	repo := card.NewRepository(pool)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		case <-time.After(time.Duration(200+rand.Intn(300)) * time.Millisecond):
		}

		var requestID string
		err := pool.QueryRow(ctx, `SELECT id FROM card_requests WHERE status = 'pending' ORDER BY random() LIMIT 1`).Scan(&requestID)
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			if transient(err) {
				continue
			}
			return fmt.Errorf("canceller pick: %w", err)
		}

		_, err = repo.Cancel(ctx, requestID)
		switch {
		case err == nil:
		case errors.Is(err, card.ErrAlreadyProcessed), errors.Is(err, card.ErrRequestNotFound):
		case transient(err):
		default:
			return fmt.Errorf("canceller cancel: %w", err)
		}
	}
}

// AdminDecider flip-flops onboarding decisions on a dedicated set of stockist
// accounts. Every call must leave an audit row whether or not the status moved.
func AdminDecider(ctx context.Context, pool *pgxpool.Pool, adminID string, targetIDs []string, stop <-chan struct{}) error {
	repo := onboarding.NewRepository(pool)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		action := onboarding.ActionApprove
		if rand.Intn(2) == 0 {
			action = onboarding.ActionDecline
		}
		_, err := repo.Decide(ctx, onboarding.DecideParams{
			TargetKind: onboarding.TargetStockist,
			TargetID:   targetIDs[rand.Intn(len(targetIDs))],
			Action:     action,
			ActorID:    adminID,
			ActorEmail: "stress-admin@stress.test",
			Note:       "stress decision",
		})
		switch {
		case err == nil:
		case errors.Is(err, onboarding.ErrEntityNotFound):
		case transient(err):
		default:
			return fmt.Errorf("decider: %w", err)
		}
		time.Sleep(time.Duration(30+rand.Intn(50)) * time.Millisecond)
	}
}
