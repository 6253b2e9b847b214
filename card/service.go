package card

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"meditrap/auth"
	"meditrap/notify"
	"meditrap/stockist"
)

// DefaultThreshold is the number of distinct stockist approvals required to
// grant a purchasing card.
const DefaultThreshold = 3

var (
	// ErrTooFewStockists signals fewer than the required distinct candidates.
	ErrTooFewStockists = fmt.Errorf("card: at least %d distinct stockists are required", DefaultThreshold)
	// ErrUnknownStockist signals a nominated candidate that does not exist.
	ErrUnknownStockist = errors.New("card: nominated stockist does not exist")
	// ErrGrantFailed signals the threshold was reached but the grant step
	// failed. The approvals and the approved status stand.
	ErrGrantFailed = errors.New("card: grant failed after approval threshold")
	// ErrNotRequester signals a cancel attempt by someone other than the
	// requester or an admin.
	ErrNotRequester = errors.New("card: only the requester may cancel")
)

// Directory resolves nominated stockists so candidates are validated and
// notified at creation time.
type Directory interface {
	ListByIDs(ctx context.Context, ids []string) ([]stockist.Profile, error)
}

// Granter materialises the purchasing card once the threshold is reached.
// It is invoked after the approval transaction commits and must tolerate
// being trusted: the engine never calls it twice for one request.
type Granter interface {
	Grant(ctx context.Context, requesterID string, payload Payload) error
}

// GranterFunc adapts a function to the Granter interface.
type GranterFunc func(ctx context.Context, requesterID string, payload Payload) error

func (f GranterFunc) Grant(ctx context.Context, requesterID string, payload Payload) error {
	return f(ctx, requesterID, payload)
}

// Service orchestrates the purchasing-card approval flow.
type Service struct {
	repo        Repository
	directory   Directory
	granter     Granter
	broadcaster *notify.Broadcaster
	logger      *zap.Logger
	metrics     *Metrics

	// approveLinkBase is the frontend URL the emailed token is appended to.
	approveLinkBase string
	threshold       int
	tokenGen        func() (string, error)
}

func NewService(repo Repository, directory Directory, granter Granter, broadcaster *notify.Broadcaster, logger *zap.Logger, metrics *Metrics, approveLinkBase string) *Service {
	return &Service{
		repo:            repo,
		directory:       directory,
		granter:         granter,
		broadcaster:     broadcaster,
		logger:          logger,
		metrics:         metrics,
		approveLinkBase: approveLinkBase,
		threshold:       DefaultThreshold,
		tokenGen:        newApprovalToken,
	}
}

// CreateRequest opens a purchasing-card request nominating the given
// stockists, then emails each one an approval link. Notification failures
// are reported in the result list but never fail the request.
func (s *Service) CreateRequest(ctx context.Context, input CreateRequestInput) (Request, []notify.DeliveryResult, error) {
	if input.RequesterID == "" {
		return Request{}, nil, fmt.Errorf("card: create request: requester id is required")
	}
	if input.Payload.FullName == "" {
		return Request{}, nil, fmt.Errorf("card: create request: purchaser full name is required")
	}

	ids := dedupe(input.StockistIDs)
	if len(ids) < s.threshold {
		return Request{}, nil, ErrTooFewStockists
	}

	candidates, err := s.directory.ListByIDs(ctx, ids)
	if err != nil {
		return Request{}, nil, fmt.Errorf("card: create request: resolve stockists: %w", err)
	}
	if len(candidates) != len(ids) {
		return Request{}, nil, ErrUnknownStockist
	}

	recipients := make([]RecipientToken, len(candidates))
	msgs := make([]notify.Message, len(candidates))
	for i, c := range candidates {
		token, err := s.tokenGen()
		if err != nil {
			return Request{}, nil, err
		}
		recipients[i] = RecipientToken{StockistID: c.ID, Token: token}
		msgs[i] = approvalMail(c, input.Payload.FullName, s.approveLinkBase+token)
	}

	req, err := s.repo.CreateRequest(ctx, CreateRequestParams{
		RequesterID:    input.RequesterID,
		RequesterName:  input.RequesterName,
		RequesterEmail: input.RequesterEmail,
		Payload:        input.Payload,
		Threshold:      s.threshold,
		Recipients:     recipients,
	})
	if err != nil {
		return Request{}, nil, err
	}
	s.metrics.RequestsCreated.Inc()

	results := s.broadcaster.Broadcast(ctx, msgs)
	for _, res := range results {
		if res.Err != nil {
			s.metrics.NotifyFailures.Inc()
		}
	}

	s.logger.Info("card request created",
		zap.String("request_id", req.ID),
		zap.String("requester_id", req.RequesterID),
		zap.Int("candidates", len(recipients)))
	return req, results, nil
}

// Approve records an authenticated stockist's approval. Repeating a vote is
// a success and changes nothing. The vote that reaches the threshold also
// triggers the grant.
func (s *Service) Approve(ctx context.Context, approver auth.Principal, requestID string) (Decision, error) {
	if approver.Kind != auth.KindStockist {
		return Decision{}, ErrUnauthorizedApprover
	}

	outcome, err := s.repo.ApplyApproval(ctx, requestID, approver.ID)
	if err != nil {
		return Decision{}, err
	}
	return s.finishVote(ctx, outcome, false)
}

// ApproveByToken records an approval through an emailed single-use token.
func (s *Service) ApproveByToken(ctx context.Context, token string) (Decision, error) {
	outcome, err := s.repo.RedeemToken(ctx, token)
	if err != nil {
		return Decision{}, err
	}
	return s.finishVote(ctx, outcome, true)
}

// finishVote updates counters and, on the threshold-crossing vote, runs the
// grant. The approval transaction has already committed; a grant failure is
// surfaced but never unwinds the vote.
func (s *Service) finishVote(ctx context.Context, outcome Outcome, viaToken bool) (Decision, error) {
	if viaToken {
		s.metrics.TokensRedeemed.Inc()
	}
	if outcome.Duplicate {
		s.metrics.DuplicateVotes.Inc()
		return Decision{Request: outcome.Request, Duplicate: true}, nil
	}
	s.metrics.Approvals.Inc()

	decision := Decision{Request: outcome.Request}
	if !outcome.Reached {
		return decision, nil
	}

	if err := s.granter.Grant(ctx, outcome.Request.RequesterID, outcome.Request.Payload); err != nil {
		s.metrics.GrantFailures.Inc()
		s.logger.Error("card grant failed",
			zap.String("request_id", outcome.Request.ID),
			zap.String("requester_id", outcome.Request.RequesterID),
			zap.Error(err))
		return decision, fmt.Errorf("%w: %v", ErrGrantFailed, err)
	}

	s.metrics.Grants.Inc()
	decision.Granted = true
	s.logger.Info("purchasing card approved",
		zap.String("request_id", outcome.Request.ID),
		zap.Int("approvals", outcome.Request.Approvals))
	return decision, nil
}

// ListPending returns requests still awaiting the stockist's vote.
func (s *Service) ListPending(ctx context.Context, approver auth.Principal, cursor Cursor, limit int) ([]Request, error) {
	if approver.Kind != auth.KindStockist {
		return nil, ErrUnauthorizedApprover
	}
	return s.repo.ListPendingFor(ctx, approver.ID, cursor, limit)
}

// GetRequest returns one request with its current vote count.
func (s *Service) GetRequest(ctx context.Context, id string) (Request, error) {
	return s.repo.GetRequest(ctx, id)
}

// Cancel rejects a pending request. Allowed for the requester or an admin.
func (s *Service) Cancel(ctx context.Context, caller auth.Principal, requestID string) (Request, error) {
	req, err := s.repo.GetRequest(ctx, requestID)
	if err != nil {
		return Request{}, err
	}
	if !caller.IsAdmin() && caller.ID != req.RequesterID {
		return Request{}, ErrNotRequester
	}
	return s.repo.Cancel(ctx, requestID)
}

func approvalMail(c stockist.Profile, purchaserName, link string) notify.Message {
	return notify.Message{
		To:      c.Email,
		Subject: "Purchasing card approval needed",
		Text: fmt.Sprintf(
			"Hello %s,\n\nA purchasing card has been requested for %s and you are listed as a verifier.\n\nApprove here: %s\n\nIf you do not recognise this request, ignore this email.",
			c.Name, purchaserName, link),
	}
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
