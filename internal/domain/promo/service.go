package promo

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/julo/lendcore/internal/domain/featuresetting"
	"github.com/julo/lendcore/internal/domain/loan"
)

type Service struct {
	repo     Repository
	features FeatureReader
	tx       TxRunner
	now      func() time.Time
}

func NewService(repo Repository, features FeatureReader, tx TxRunner) *Service {
	return &Service{
		repo:     repo,
		features: features,
		tx:       tx,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Check evaluates a code for a prospective loan without reserving it.
func (s *Service) Check(ctx context.Context, in CheckInput) (*Evaluation, error) {
	if !s.features.IsActive(ctx, featuresetting.PromoCode) {
		return nil, ErrPromoFeatureOff
	}
	c, err := s.repo.GetByCode(ctx, Normalize(in.Code))
	if err != nil {
		return nil, err
	}
	return s.evaluate(ctx, c, in)
}

func (s *Service) evaluate(ctx context.Context, c *Code, in CheckInput) (*Evaluation, error) {
	now := s.now()
	switch {
	case !c.IsActive:
		return nil, ErrPromoInactive
	case now.Before(c.StartAt) || now.After(c.EndAt):
		return nil, ErrPromoExpired
	case in.LoanAmount < c.MinLoanAmount:
		return nil, ErrPromoMinAmount
	case len(c.TransactionMethods) > 0 && !slices.Contains(c.TransactionMethods, in.TransactionMethod):
		return nil, ErrPromoMethodNotAllowed
	}

	if c.TotalLimit > 0 {
		reserved, err := s.repo.CountReservedUsages(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		if c.UsageCount+reserved >= c.TotalLimit {
			return nil, ErrPromoQuotaExhausted
		}
	}
	if c.MaxPerCustomer > 0 && in.CustomerID != "" {
		used, err := s.repo.CountCustomerUsages(ctx, c.ID, in.CustomerID)
		if err != nil {
			return nil, err
		}
		if used >= c.MaxPerCustomer {
			return nil, ErrPromoCustomerLimit
		}
	}
	return &Evaluation{Code: *c, BenefitAmount: Benefit(*c, in)}, nil
}

// Reserve validates the code under a row lock and records a reserved usage
// for the loan. It returns the benefit amount.
func (s *Service) Reserve(ctx context.Context, req loan.PromoRequest) (int64, error) {
	if !s.features.IsActive(ctx, featuresetting.PromoCode) {
		return 0, ErrPromoFeatureOff
	}
	in := CheckInput{
		Code:              req.Code,
		CustomerID:        req.CustomerID,
		TransactionMethod: req.TransactionMethod,
		LoanAmount:        req.LoanAmount,
		DurationMonths:    req.DurationMonths,
		MonthlyInterest:   req.MonthlyInterest,
		InstallmentAmount: req.InstallmentAmount,
	}
	var benefit int64
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		found, err := s.repo.GetByCode(ctx, Normalize(req.Code))
		if err != nil {
			return err
		}
		locked, err := s.repo.GetForUpdate(ctx, found.ID)
		if err != nil {
			return err
		}
		eval, err := s.evaluate(ctx, locked, in)
		if err != nil {
			return err
		}
		if _, err := s.repo.CreateUsage(ctx, Usage{
			PromoCodeID:   locked.ID,
			CustomerID:    req.CustomerID,
			LoanID:        req.LoanID,
			Status:        UsageReserved,
			BenefitAmount: eval.BenefitAmount,
		}); err != nil {
			return err
		}
		benefit = eval.BenefitAmount
		return nil
	})
	return benefit, err
}

// Apply marks the loan's reserved usage as applied and bumps the code's
// usage count by one. Loans without a promo are ignored.
func (s *Service) Apply(ctx context.Context, loanID string) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		usage, err := s.repo.GetUsageByLoan(ctx, loanID)
		if errors.Is(err, ErrUsageNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if usage.Status != UsageReserved {
			return nil
		}
		if _, err := s.repo.GetForUpdate(ctx, usage.PromoCodeID); err != nil {
			return err
		}
		if err := s.repo.IncrementUsage(ctx, usage.PromoCodeID); err != nil {
			return err
		}
		return s.repo.UpdateUsageStatus(ctx, usage.ID, UsageApplied, s.now())
	})
}

func (s *Service) Cancel(ctx context.Context, loanID string) error {
	usage, err := s.repo.GetUsageByLoan(ctx, loanID)
	if errors.Is(err, ErrUsageNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if usage.Status != UsageReserved {
		return nil
	}
	return s.repo.UpdateUsageStatus(ctx, usage.ID, UsageCancelled, s.now())
}

// HandleLoanStatus applies the promo when the loan is disbursed and releases
// it when the loan is cancelled or rejected.
func (s *Service) HandleLoanStatus(ctx context.Context, change loan.StatusChange) error {
	switch {
	case change.To == loan.StatusCurrent && change.From == loan.StatusFundDisbursalOngoing:
		return s.Apply(ctx, change.LoanID)
	case loan.ReleasesLimit(change.To):
		return s.Cancel(ctx, change.LoanID)
	}
	return nil
}
