package loan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/julo/lendcore/internal/domain/featuresetting"
)

type lateFeeParams struct {
	PercentBPS int32 `json:"percent_bps"`
}

// RecordRepayment allocates amount across unpaid installments in order,
// settling late fee, then interest, then principal of each. Principal paid
// is restored to the account limit.
func (s *Service) RecordRepayment(ctx context.Context, in RepaymentInput) (*RepaymentResult, error) {
	if strings.TrimSpace(in.LoanID) == "" || in.Amount <= 0 {
		return nil, ErrInvalidRepayment
	}
	if in.PaidAt.IsZero() {
		in.PaidAt = s.now()
	}
	if strings.TrimSpace(in.Channel) == "" {
		in.Channel = "manual"
	}

	var out *RepaymentResult
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.loanRepo.GetForUpdate(ctx, in.LoanID)
		if err != nil {
			return err
		}
		if !IsRepayable(current.Status) {
			return ErrLoanNotRepayable
		}
		payments, err := s.paymentRepo.ListByLoanForUpdate(ctx, current.ID)
		if err != nil {
			return err
		}

		var outstanding int64
		for _, p := range payments {
			if !p.IsPaid() {
				outstanding += p.Outstanding()
			}
		}
		if in.Amount > outstanding {
			return ErrRepaymentExceedsOutstanding
		}

		result := &RepaymentResult{Loan: current}
		remaining := in.Amount
		for i := range payments {
			p := &payments[i]
			if p.IsPaid() || remaining == 0 {
				continue
			}
			fee := min(remaining, p.LateFeeAmount-p.PaidLateFee)
			p.PaidLateFee += fee
			remaining -= fee

			interest := min(remaining, p.InstallmentInterest-p.PaidInterest)
			p.PaidInterest += interest
			remaining -= interest

			principal := min(remaining, p.InstallmentPrincipal-p.PaidPrincipal)
			p.PaidPrincipal += principal
			remaining -= principal

			if p.Outstanding() == 0 {
				paidAt := in.PaidAt
				p.PaidAt = &paidAt
				if dateOnly(paidAt).After(dateOnly(p.DueDate)) {
					p.Status = PaymentPaidLate
				} else {
					p.Status = PaymentPaidOnTime
				}
			}
			if err := s.paymentRepo.Update(ctx, *p); err != nil {
				return err
			}
			result.LateFeePaid += fee
			result.InterestPaid += interest
			result.PrincipalPaid += principal
		}

		if err := s.paymentRepo.InsertRepayment(ctx, in); err != nil {
			return err
		}
		if result.PrincipalPaid > 0 {
			if _, err := s.accounts.Increase(ctx, current.AccountID, result.PrincipalPaid, "repayment"); err != nil {
				return err
			}
		}

		allPaid, anyOverdue := true, false
		for _, p := range payments {
			if !p.IsPaid() {
				allPaid = false
				if p.Status == PaymentOverdue {
					anyOverdue = true
				}
			}
		}
		switch {
		case allPaid:
			if err := s.transition(ctx, current, StatusPaidOff, "paid_off"); err != nil {
				return err
			}
		case current.Status == StatusLate && !anyOverdue:
			if err := s.transition(ctx, current, StatusCurrent, "overdue_settled"); err != nil {
				return err
			}
		}

		result.Payments = payments
		out = result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MarkOverdue flags installments of current and late loans past their due
// date, charges the late fee once per installment, and moves current loans
// to late. Installments of loans that never disbursed or were closed are
// left alone.
func (s *Service) MarkOverdue(ctx context.Context, asOf time.Time) (int, error) {
	var params lateFeeParams
	if s.features != nil {
		err := s.features.Params(ctx, featuresetting.LateFee, &params)
		if err != nil && !errors.Is(err, featuresetting.ErrNotFound) && !errors.Is(err, featuresetting.ErrInactive) {
			return 0, fmt.Errorf("late fee settings: %w", err)
		}
	}

	payments, err := s.paymentRepo.ListOverdue(ctx, dateOnly(asOf), 500)
	if err != nil {
		return 0, err
	}
	marked := 0
	for _, p := range payments {
		err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
			current, err := s.loanRepo.GetForUpdate(ctx, p.LoanID)
			if err != nil {
				return err
			}
			if !IsRepayable(current.Status) {
				return errSkipInstallment
			}
			p.Status = PaymentOverdue
			if p.LateFeeAmount == 0 && params.PercentBPS > 0 {
				p.LateFeeAmount = ApplyBPS(p.InstallmentPrincipal+p.InstallmentInterest, params.PercentBPS)
				p.DueAmount += p.LateFeeAmount
			}
			if err := s.paymentRepo.Update(ctx, p); err != nil {
				return err
			}
			if current.Status == StatusCurrent {
				return s.transition(ctx, current, StatusLate, "payment_overdue")
			}
			return nil
		})
		if errors.Is(err, errSkipInstallment) {
			continue
		}
		if err != nil {
			return marked, err
		}
		marked++
	}
	return marked, nil
}

var errSkipInstallment = errors.New("skip_installment")

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
