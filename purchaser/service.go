package purchaser

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Service materialises purchaser profiles when purchasing-card requests are
// granted and serves profile reads. The caller is responsible for deciding
// that a grant is due; Grant itself performs no threshold checks.
type Service struct {
	repo   Repository
	logger *zap.Logger
}

func NewService(repo Repository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Grant creates the purchaser profile and flips the card flags on the
// requesting account in one transaction.
func (s *Service) Grant(ctx context.Context, params CreateParams) (Purchaser, error) {
	if params.FullName == "" {
		return Purchaser{}, fmt.Errorf("purchaser: grant: full name is required")
	}
	if params.CreatedBy == "" {
		return Purchaser{}, fmt.Errorf("purchaser: grant: requester id is required")
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return Purchaser{}, fmt.Errorf("purchaser: grant: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	p, err := s.repo.CreateInTx(ctx, tx, params)
	if err != nil {
		return Purchaser{}, err
	}
	if err := s.repo.MarkCardGrantedInTx(ctx, tx, params.CreatedBy); err != nil {
		return Purchaser{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Purchaser{}, fmt.Errorf("purchaser: grant: commit: %w", err)
	}

	s.logger.Info("purchasing card granted",
		zap.String("purchaser_id", p.ID),
		zap.String("user_id", params.CreatedBy))
	return p, nil
}

// GetByID returns a purchaser profile.
func (s *Service) GetByID(ctx context.Context, id string) (Purchaser, error) {
	return s.repo.GetByID(ctx, id)
}

// ListByCreator returns the profiles created on behalf of one store owner.
func (s *Service) ListByCreator(ctx context.Context, userID string) ([]Purchaser, error) {
	return s.repo.ListByCreator(ctx, userID)
}
