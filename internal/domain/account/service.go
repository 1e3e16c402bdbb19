package account

import (
	"context"
	"errors"
	"strings"
)

type Service struct {
	repo Repository
	tx   TxRunner
}

func NewService(repo Repository, tx TxRunner) *Service {
	return &Service{repo: repo, tx: tx}
}

func IsUsable(status int) bool {
	return status == StatusActive || status == StatusActiveInGrace
}

// Open creates the inactive account and empty limit of a new customer.
func (s *Service) Open(ctx context.Context, customerID string) (*Account, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, ErrAccountNotFound
	}
	return s.repo.Create(ctx, customerID)
}

func (s *Service) Get(ctx context.Context, accountID string) (*Account, error) {
	if strings.TrimSpace(accountID) == "" {
		return nil, ErrAccountNotFound
	}
	return s.repo.GetByID(ctx, accountID)
}

func (s *Service) GetByCustomer(ctx context.Context, customerID string) (*Account, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, ErrAccountNotFound
	}
	return s.repo.GetByCustomerID(ctx, customerID)
}

func (s *Service) EnsureUsable(ctx context.Context, accountID string) (*Account, error) {
	acc, err := s.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !IsUsable(acc.Status) {
		return nil, ErrAccountNotActive
	}
	return acc, nil
}

func (s *Service) GetLimit(ctx context.Context, accountID string) (*Limit, error) {
	return s.repo.GetLimit(ctx, accountID)
}

// Decrease moves amount from available to used under a row lock.
func (s *Service) Decrease(ctx context.Context, accountID string, amount int64, reason string) (*Limit, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	var out *Limit
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		l, err := s.repo.GetLimitForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		if amount > l.AvailableLimit {
			return ErrInsufficientLimit
		}
		next := *l
		next.AvailableLimit -= amount
		next.UsedLimit += amount
		if err := s.save(ctx, *l, next, reason); err != nil {
			return err
		}
		out = &next
		return nil
	})
	return out, err
}

// Increase restores up to amount of used limit back to available.
func (s *Service) Increase(ctx context.Context, accountID string, amount int64, reason string) (*Limit, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	var out *Limit
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		l, err := s.repo.GetLimitForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		restored := min(amount, l.UsedLimit)
		next := *l
		next.UsedLimit -= restored
		next.AvailableLimit += restored
		if restored > 0 {
			if err := s.save(ctx, *l, next, reason); err != nil {
				return err
			}
		}
		out = &next
		return nil
	})
	return out, err
}

// SetLimit assigns a new credit line and activates an inactive account.
func (s *Service) SetLimit(ctx context.Context, accountID string, limit int64) (*Limit, error) {
	if limit < 0 {
		return nil, ErrInvalidLimit
	}
	var out *Limit
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		acc, err := s.repo.GetByID(ctx, accountID)
		if err != nil {
			return err
		}

		current, err := s.repo.GetLimitForUpdate(ctx, accountID)
		if errors.Is(err, ErrLimitNotFound) {
			current = &Limit{AccountID: accountID}
		} else if err != nil {
			return err
		}
		if limit < current.UsedLimit {
			return ErrInvalidLimit
		}

		next := *current
		next.SetLimit = limit
		next.MaxLimit = max(current.MaxLimit, limit)
		next.AvailableLimit = limit - current.UsedLimit
		if err := s.save(ctx, *current, next, "set_limit"); err != nil {
			return err
		}
		if acc.Status == StatusInactive {
			if err := s.repo.UpdateStatus(ctx, accountID, StatusActive); err != nil {
				return err
			}
		}
		out = &next
		return nil
	})
	return out, err
}

func (s *Service) save(ctx context.Context, before, after Limit, reason string) error {
	if err := s.repo.SaveLimit(ctx, after); err != nil {
		return err
	}
	return s.repo.InsertLimitHistory(ctx, LimitChange{
		AccountID:    after.AccountID,
		AvailableOld: before.AvailableLimit,
		AvailableNew: after.AvailableLimit,
		UsedOld:      before.UsedLimit,
		UsedNew:      after.UsedLimit,
		Reason:       reason,
	})
}
