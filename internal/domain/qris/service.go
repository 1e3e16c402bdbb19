package qris

import (
	"context"
	"errors"
	"strings"

	"github.com/julo/lendcore/internal/domain/featuresetting"
	"github.com/julo/lendcore/internal/domain/loan"
	"github.com/julo/lendcore/internal/observability"
)

type loanParams struct {
	InterestRateMonthlyBPS int32 `json:"interest_rate_monthly_bps"`
	ProvisionRateBPS       int32 `json:"provision_rate_bps"`
	DurationMonths         int32 `json:"duration_months"`
}

type limitParams struct {
	MinAmount int64 `json:"min_amount"`
	MaxAmount int64 `json:"max_amount"`
}

// TransactionConfirmationService turns a partner QRIS payment into a loan
// funded from the customer's credit limit.
type TransactionConfirmationService struct {
	repo     Repository
	loans    LoanService
	features FeatureReader
	tx       TxRunner
}

func NewTransactionConfirmationService(repo Repository, loans LoanService, features FeatureReader, tx TxRunner) *TransactionConfirmationService {
	return &TransactionConfirmationService{repo: repo, loans: loans, features: features, tx: tx}
}

func (s *TransactionConfirmationService) Confirm(ctx context.Context, in ConfirmInput) (*Confirmation, error) {
	out, err := s.confirm(ctx, in)
	if err != nil {
		observability.RecordQRISConfirmation(err.Error())
		return nil, err
	}
	observability.RecordQRISConfirmation("success")
	return out, nil
}

func (s *TransactionConfirmationService) confirm(ctx context.Context, in ConfirmInput) (*Confirmation, error) {
	if strings.TrimSpace(in.PartnerID) == "" || strings.TrimSpace(in.PartnerCustomerID) == "" || strings.TrimSpace(in.PartnerTransactionID) == "" {
		return nil, ErrInvalidTransaction
	}
	if !s.features.IsActive(ctx, featuresetting.QRISLoan) {
		return nil, ErrQRISDisabled
	}

	linkage, err := s.repo.GetLinkage(ctx, in.PartnerID, in.PartnerCustomerID)
	if err != nil {
		return nil, err
	}
	if linkage.Status != LinkageSuccess {
		return nil, ErrLinkageInactive
	}

	limits := limitParams{MinAmount: defaultMinAmount, MaxAmount: defaultMaxAmount}
	if err := s.features.Params(ctx, featuresetting.QRISTransactionLimit, &limits); err != nil && !errors.Is(err, featuresetting.ErrInactive) {
		return nil, err
	}
	if in.Amount < limits.MinAmount {
		return nil, ErrTransactionAmountTooLow
	}
	if limits.MaxAmount > 0 && in.Amount > limits.MaxAmount {
		return nil, ErrTransactionAmountTooHigh
	}

	terms := loanParams{DurationMonths: 1}
	if err := s.features.Params(ctx, featuresetting.QRISLoan, &terms); err != nil {
		return nil, err
	}
	if terms.DurationMonths <= 0 {
		terms.DurationMonths = 1
	}

	var out *Confirmation
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		txn, err := s.repo.CreateTransaction(ctx, Transaction{
			PartnerID:            in.PartnerID,
			PartnerTransactionID: in.PartnerTransactionID,
			LinkageID:            linkage.ID,
			MerchantID:           in.MerchantID,
			MerchantName:         in.MerchantName,
			Amount:               in.Amount,
			Status:               TransactionPending,
		})
		if err != nil {
			return err
		}

		created, err := s.loans.Create(ctx, loan.CreateInput{
			AccountID:              linkage.AccountID,
			CustomerID:             linkage.CustomerID,
			ProductCode:            loan.ProductQRIS,
			TransactionMethod:      loan.MethodQRIS,
			Amount:                 in.Amount,
			DurationMonths:         terms.DurationMonths,
			InterestRateMonthlyBPS: terms.InterestRateMonthlyBPS,
			ProvisionRateBPS:       terms.ProvisionRateBPS,
		})
		if err != nil {
			return err
		}
		if err := s.repo.AttachLoan(ctx, txn.ID, created.ID); err != nil {
			return err
		}
		txn.LoanID = created.ID

		signed, err := s.loans.SignAgreement(ctx, created.ID, created.CustomerID)
		if err != nil {
			return err
		}
		installments, err := s.loans.ListPayments(ctx, created.ID)
		if err != nil {
			return err
		}
		out = &Confirmation{Transaction: *txn, Loan: *signed, Installments: installments}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *TransactionConfirmationService) Status(ctx context.Context, partnerID, partnerTransactionID string) (*Transaction, error) {
	if strings.TrimSpace(partnerTransactionID) == "" {
		return nil, ErrTransactionNotFound
	}
	return s.repo.GetTransaction(ctx, partnerID, partnerTransactionID)
}

// HandleLoanStatus mirrors the loan outcome onto the partner transaction.
func (s *TransactionConfirmationService) HandleLoanStatus(ctx context.Context, change loan.StatusChange) error {
	switch {
	case change.To == loan.StatusCurrent && change.From == loan.StatusFundDisbursalOngoing:
		return s.repo.UpdateStatusByLoan(ctx, change.LoanID, TransactionSuccess)
	case loan.ReleasesLimit(change.To), change.To == loan.StatusFundDisbursalFailed:
		return s.repo.UpdateStatusByLoan(ctx, change.LoanID, TransactionFailed)
	}
	return nil
}
