package lender

import (
	"context"
	"slices"
	"sort"
	"strings"

	"github.com/julo/lendcore/internal/domain/featuresetting"
)

type matchmakingParams struct {
	ForcedLenderCode string `json:"forced_lender_code"`
}

type Service struct {
	repo     Repository
	features FeatureReader
	tx       TxRunner
}

func NewService(repo Repository, features FeatureReader, tx TxRunner) *Service {
	return &Service{repo: repo, features: features, tx: tx}
}

func (s *Service) Get(ctx context.Context, lenderID string) (*Entity, error) {
	return s.repo.GetByID(ctx, lenderID)
}

// Select picks the lender that funds a loan. A forced lender from the
// lender_matchmaking setting wins when it can fund the loan; otherwise the
// lowest priority value among eligible active lenders is chosen.
func (s *Service) Select(ctx context.Context, c Criteria) (*Entity, error) {
	if forced := s.forcedLender(ctx); forced != nil && s.eligible(*forced, c) {
		return forced, nil
	}

	lenders, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	candidates := make([]Entity, 0, len(lenders))
	for _, l := range lenders {
		if s.eligible(l, c) {
			candidates = append(candidates, l)
		}
	}
	if len(candidates) == 0 {
		return nil, ErrNoLenderAvailable
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority < candidates[j].Priority
		}
		return candidates[i].DisbursementBalance > candidates[j].DisbursementBalance
	})
	out := candidates[0]
	return &out, nil
}

func (s *Service) forcedLender(ctx context.Context) *Entity {
	if s.features == nil {
		return nil
	}
	var p matchmakingParams
	if err := s.features.Params(ctx, featuresetting.LenderMatchmaking, &p); err != nil {
		return nil
	}
	code := strings.TrimSpace(p.ForcedLenderCode)
	if code == "" {
		return nil
	}
	l, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil
	}
	return l
}

func (s *Service) eligible(l Entity, c Criteria) bool {
	if l.Status != StatusActive {
		return false
	}
	if l.IsChanneling && !c.AllowChanneling {
		return false
	}
	if slices.Contains(c.ExcludeIDs, l.ID) {
		return false
	}
	return l.Serves(c.ProductCode) && l.DisbursementBalance >= c.Amount
}

// Reserve earmarks amount of the lender's disbursement balance for a loan.
func (s *Service) Reserve(ctx context.Context, lenderID string, amount int64) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		l, err := s.repo.GetForUpdate(ctx, lenderID)
		if err != nil {
			return err
		}
		if l.DisbursementBalance < amount {
			return ErrInsufficientLenderBalance
		}
		return s.repo.AdjustBalance(ctx, lenderID, -amount)
	})
}

func (s *Service) Release(ctx context.Context, lenderID string, amount int64) error {
	if amount <= 0 {
		return nil
	}
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.repo.GetForUpdate(ctx, lenderID); err != nil {
			return err
		}
		return s.repo.AdjustBalance(ctx, lenderID, amount)
	})
}
