package loan

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/julo/lendcore/internal/domain/digisign"
	"github.com/julo/lendcore/internal/domain/featuresetting"
	"github.com/julo/lendcore/internal/domain/lender"
)

const (
	TopicLoanDisburse     = "loan_disburse"
	TopicLoanNotification = "loan_notification"

	maxDurationMonths = 36
)

type Service struct {
	loanRepo    Repository
	paymentRepo PaymentRepository
	outboxRepo  OutboxRepository
	accounts    AccountService
	lenders     LenderService
	features    FeatureReader
	tx          TxRunner
	signer      AgreementSigner
	promos      PromoReserver
	channeling  ChannelingStarter
	hooks       []StatusHook
	now         func() time.Time
}

type Dependencies struct {
	Loans      Repository
	Payments   PaymentRepository
	Outbox     OutboxRepository
	Accounts   AccountService
	Lenders    LenderService
	Features   FeatureReader
	Tx         TxRunner
	Signer     AgreementSigner
	Promos     PromoReserver
	Channeling ChannelingStarter
}

func NewService(deps Dependencies) *Service {
	return &Service{
		loanRepo:    deps.Loans,
		paymentRepo: deps.Payments,
		outboxRepo:  deps.Outbox,
		accounts:    deps.Accounts,
		lenders:     deps.Lenders,
		features:    deps.Features,
		tx:          deps.Tx,
		signer:      deps.Signer,
		promos:      deps.Promos,
		channeling:  deps.Channeling,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SetChanneling wires the channeling starter after construction; the
// channeling service itself depends on this service.
func (s *Service) SetChanneling(c ChannelingStarter) {
	s.channeling = c
}

// OnStatusChange registers a hook that runs after every status change, inside
// the same transaction.
func (s *Service) OnStatusChange(h StatusHook) {
	s.hooks = append(s.hooks, h)
}

func (s *Service) Get(ctx context.Context, loanID string) (*Entity, error) {
	if strings.TrimSpace(loanID) == "" {
		return nil, ErrLoanNotFound
	}
	return s.loanRepo.GetByID(ctx, loanID)
}

func (s *Service) ListByAccount(ctx context.Context, accountID string, limit, offset int32) ([]Entity, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.loanRepo.ListByAccount(ctx, accountID, limit, offset)
}

func (s *Service) ListPayments(ctx context.Context, loanID string) ([]Payment, error) {
	return s.paymentRepo.ListByLoan(ctx, loanID)
}

// Create originates a loan against the account's credit limit. It must leave
// no trace when any step fails, so every write shares one transaction.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Entity, error) {
	if err := validateCreate(in); err != nil {
		return nil, err
	}
	start := in.StartDate
	if start.IsZero() {
		start = s.now()
	}
	terms := ComputeTerms(in.Amount, in.DurationMonths, in.InterestRateMonthlyBPS, in.ProvisionRateBPS)

	var created *Entity
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		acc, err := s.accounts.EnsureUsable(ctx, in.AccountID)
		if err != nil {
			return err
		}
		if _, err := s.accounts.Decrease(ctx, acc.ID, terms.LoanAmount, "loan_created"); err != nil {
			return err
		}

		chosen, err := s.lenders.Select(ctx, lender.Criteria{
			ProductCode:     in.ProductCode,
			Amount:          terms.DisbursementAmount,
			AllowChanneling: s.channelingAllowed(ctx, in.TransactionMethod),
		})
		if err != nil {
			return err
		}
		if err := s.lenders.Reserve(ctx, chosen.ID, terms.DisbursementAmount); err != nil {
			return err
		}

		entity, err := s.loanRepo.Create(ctx, Entity{
			AccountID:              acc.ID,
			CustomerID:             acc.CustomerID,
			LenderID:               chosen.ID,
			ProductCode:            in.ProductCode,
			TransactionMethod:      in.TransactionMethod,
			RequestedAmount:        terms.RequestedAmount,
			LoanAmount:             terms.LoanAmount,
			DisbursementAmount:     terms.DisbursementAmount,
			ProvisionFee:           terms.ProvisionFee,
			InterestRateMonthlyBPS: in.InterestRateMonthlyBPS,
			DurationMonths:         in.DurationMonths,
			InstallmentAmount:      terms.InstallmentAmount,
			Status:                 StatusInactive,
		})
		if err != nil {
			return err
		}

		payments := BuildSchedule(terms, in.DurationMonths, start)
		for i := range payments {
			payments[i].LoanID = entity.ID
		}
		if err := s.paymentRepo.CreateBatch(ctx, payments); err != nil {
			return err
		}
		if err := s.loanRepo.InsertStatusHistory(ctx, StatusChange{
			LoanID:     entity.ID,
			AccountID:  entity.AccountID,
			CustomerID: entity.CustomerID,
			LenderID:   entity.LenderID,
			From:       StatusDraft,
			To:         StatusInactive,
			Reason:     "loan_created",
		}); err != nil {
			return err
		}

		if code := strings.TrimSpace(in.PromoCode); code != "" && s.promos != nil {
			if _, err := s.promos.Reserve(ctx, PromoRequest{
				Code:              code,
				CustomerID:        entity.CustomerID,
				LoanID:            entity.ID,
				TransactionMethod: entity.TransactionMethod,
				LoanAmount:        entity.LoanAmount,
				DurationMonths:    entity.DurationMonths,
				MonthlyInterest:   terms.MonthlyInterest,
				InstallmentAmount: terms.InstallmentAmount,
			}); err != nil {
				return err
			}
		}
		created = entity
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func validateCreate(in CreateInput) error {
	switch {
	case strings.TrimSpace(in.AccountID) == "",
		strings.TrimSpace(in.ProductCode) == "",
		strings.TrimSpace(in.TransactionMethod) == "",
		in.Amount <= 0,
		in.DurationMonths <= 0 || in.DurationMonths > maxDurationMonths,
		in.InterestRateMonthlyBPS < 0,
		in.ProvisionRateBPS < 0:
		return ErrInvalidLoanInput
	}
	return nil
}

func (s *Service) channelingAllowed(ctx context.Context, method string) bool {
	if s.features == nil || s.channeling == nil || method == MethodQRIS {
		return false
	}
	return s.features.IsActive(ctx, featuresetting.DBSChanneling)
}

// SignAgreement records the customer's signature and moves the loan to lender
// approval. Non-channeling lenders approve immediately.
func (s *Service) SignAgreement(ctx context.Context, loanID, customerID string) (*Entity, error) {
	var out *Entity
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.ownedForUpdate(ctx, loanID, customerID)
		if err != nil {
			return err
		}
		if current.Status != StatusInactive {
			return ErrInvalidTransition
		}

		payments, err := s.paymentRepo.ListByLoan(ctx, current.ID)
		if err != nil {
			return err
		}
		doc, err := RenderAgreement(*current, payments)
		if err != nil {
			return err
		}
		if _, err := s.signer.Sign(ctx, digisign.SignInput{
			CustomerID:   current.CustomerID,
			LoanID:       current.ID,
			DocumentType: digisign.DocumentLoanAgreement,
			Content:      doc,
		}); err != nil {
			return err
		}
		signedAt := s.now()
		if err := s.loanRepo.MarkAgreementSigned(ctx, current.ID, signedAt); err != nil {
			return err
		}
		current.AgreementSignedAt = &signedAt

		if err := s.transition(ctx, current, StatusLenderApproval, "agreement_signed"); err != nil {
			return err
		}

		assigned, err := s.lenders.Get(ctx, current.LenderID)
		if err != nil {
			return err
		}
		if assigned.IsChanneling && s.channeling != nil {
			if err := s.channeling.Start(ctx, current.ID, assigned.Code); err != nil {
				return err
			}
		} else if err := s.transition(ctx, current, StatusFundDisbursalOngoing, "lender_approved"); err != nil {
			return err
		}
		out = current
		return nil
	})
	return out, err
}

func (s *Service) Cancel(ctx context.Context, loanID, customerID string) (*Entity, error) {
	var out *Entity
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.ownedForUpdate(ctx, loanID, customerID)
		if err != nil {
			return err
		}
		if err := s.transition(ctx, current, StatusCancelledByCustomer, "cancelled_by_customer"); err != nil {
			return err
		}
		out = current
		return nil
	})
	return out, err
}

func (s *Service) ChangeStatus(ctx context.Context, loanID string, to int, reason string) (*Entity, error) {
	var out *Entity
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.loanRepo.GetForUpdate(ctx, loanID)
		if err != nil {
			return err
		}
		if err := s.transition(ctx, current, to, reason); err != nil {
			return err
		}
		out = current
		return nil
	})
	return out, err
}

// ReassignLender moves the lender reservation of a loan awaiting approval.
func (s *Service) ReassignLender(ctx context.Context, loanID, lenderID string) (*Entity, error) {
	var out *Entity
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.loanRepo.GetForUpdate(ctx, loanID)
		if err != nil {
			return err
		}
		if current.Status != StatusLenderApproval {
			return ErrInvalidTransition
		}
		if current.LenderID == lenderID {
			out = current
			return nil
		}
		if err := s.lenders.Release(ctx, current.LenderID, current.DisbursementAmount); err != nil {
			return err
		}
		if err := s.lenders.Reserve(ctx, lenderID, current.DisbursementAmount); err != nil {
			return err
		}
		if err := s.loanRepo.SetLender(ctx, current.ID, lenderID); err != nil {
			return err
		}
		current.LenderID = lenderID
		out = current
		return nil
	})
	return out, err
}

// CompleteDisbursement settles the disbursement gateway result. A loan that
// is already current is returned unchanged.
func (s *Service) CompleteDisbursement(ctx context.Context, loanID, ref string, ok bool) (*Entity, error) {
	var out *Entity
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.loanRepo.GetForUpdate(ctx, loanID)
		if err != nil {
			return err
		}
		if current.Status == StatusCurrent {
			out = current
			return nil
		}
		if current.Status != StatusFundDisbursalOngoing {
			return ErrInvalidTransition
		}
		if !ok {
			if err := s.transition(ctx, current, StatusFundDisbursalFailed, "disbursement_failed"); err != nil {
				return err
			}
			out = current
			return nil
		}
		at := s.now()
		if err := s.loanRepo.MarkDisbursed(ctx, current.ID, ref, at); err != nil {
			return err
		}
		current.DisbursementRef = ref
		current.FundTransferAt = &at
		if err := s.transition(ctx, current, StatusCurrent, "disbursed"); err != nil {
			return err
		}
		out = current
		return nil
	})
	return out, err
}

// ExpireInactive moves unsigned loans older than ttl to agreement expired.
func (s *Service) ExpireInactive(ctx context.Context, ttl time.Duration) (int, error) {
	ids, err := s.loanRepo.ListIDsByStatusBefore(ctx, StatusInactive, s.now().Add(-ttl), 200)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, id := range ids {
		if _, err := s.ChangeStatus(ctx, id, StatusAgreementExpired, "agreement_expired"); err != nil {
			return expired, fmt.Errorf("expire loan %s: %w", id, err)
		}
		expired++
	}
	return expired, nil
}

func (s *Service) ownedForUpdate(ctx context.Context, loanID, customerID string) (*Entity, error) {
	current, err := s.loanRepo.GetForUpdate(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if current.CustomerID != customerID {
		return nil, ErrLoanNotFound
	}
	return current, nil
}

// transition validates and persists a status change on a locked loan, applies
// its side effects, and runs registered hooks.
func (s *Service) transition(ctx context.Context, current *Entity, to int, reason string) error {
	from := current.Status
	if !CanTransition(from, to) {
		return ErrInvalidTransition
	}
	if err := s.loanRepo.UpdateStatus(ctx, current.ID, from, to); err != nil {
		return err
	}
	change := StatusChange{
		LoanID:     current.ID,
		AccountID:  current.AccountID,
		CustomerID: current.CustomerID,
		LenderID:   current.LenderID,
		From:       from,
		To:         to,
		Reason:     reason,
	}
	if err := s.loanRepo.InsertStatusHistory(ctx, change); err != nil {
		return err
	}
	current.Status = to

	switch {
	case ReleasesLimit(to):
		if _, err := s.accounts.Increase(ctx, current.AccountID, current.LoanAmount, reason); err != nil {
			return err
		}
		if err := s.lenders.Release(ctx, current.LenderID, current.DisbursementAmount); err != nil {
			return err
		}
	case to == StatusFundDisbursalOngoing:
		if err := s.enqueue(ctx, TopicLoanDisburse, map[string]any{"loan_id": current.ID}); err != nil {
			return err
		}
	case to == StatusCurrent && from == StatusFundDisbursalOngoing, to == StatusPaidOff:
		if err := s.enqueue(ctx, TopicLoanNotification, map[string]any{"loan_id": current.ID, "status": to}); err != nil {
			return err
		}
	}

	for _, h := range s.hooks {
		if err := h(ctx, change); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) enqueue(ctx context.Context, topic string, payload map[string]any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return s.outboxRepo.Enqueue(ctx, topic, raw)
}
