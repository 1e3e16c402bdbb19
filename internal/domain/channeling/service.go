package channeling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/julo/lendcore/internal/domain/lender"
	"github.com/julo/lendcore/internal/domain/loan"
	"github.com/julo/lendcore/internal/observability"
	"github.com/julo/lendcore/internal/partner/dbs"
	"github.com/tidwall/gjson"
)

type Service struct {
	repo     Repository
	loans    LoanService
	lenders  LenderSelector
	outbox   OutboxRepository
	client   dbs.Client
	envelope Envelope
	tx       TxRunner
	orgID    string
	logger   *slog.Logger
	now      func() time.Time
}

type Dependencies struct {
	Repo     Repository
	Loans    LoanService
	Lenders  LenderSelector
	Outbox   OutboxRepository
	Client   dbs.Client
	Envelope Envelope
	Tx       TxRunner
	OrgID    string
	Logger   *slog.Logger
}

func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     deps.Repo,
		loans:    deps.Loans,
		lenders:  deps.Lenders,
		outbox:   deps.Outbox,
		client:   deps.Client,
		envelope: deps.Envelope,
		tx:       deps.Tx,
		orgID:    deps.OrgID,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Start records a pending channeling status and queues the submission. It
// runs inside the caller's transaction.
func (s *Service) Start(ctx context.Context, loanID, channelingType string) error {
	if strings.TrimSpace(loanID) == "" {
		return ErrInvalidPayload
	}
	if !strings.EqualFold(channelingType, TypeDBS) {
		return ErrUnsupportedType
	}
	if _, err := s.repo.Create(ctx, Status{
		LoanID:         loanID,
		ChannelingType: TypeDBS,
		Status:         StatusPending,
	}); err != nil {
		return err
	}
	payload, err := json.Marshal(map[string]any{"loan_id": loanID})
	if err != nil {
		return err
	}
	return s.outbox.Enqueue(ctx, TopicSubmit, payload)
}

func (s *Service) GetByLoan(ctx context.Context, loanID string) (*Status, error) {
	return s.repo.GetByLoan(ctx, loanID)
}

// Submit sends the application to DBS. Statuses past pending are left alone so
// retried jobs do not submit twice.
func (s *Service) Submit(ctx context.Context, loanID string) error {
	current, err := s.repo.GetByLoan(ctx, loanID)
	if err != nil {
		return err
	}
	if current.Status != StatusPending {
		return nil
	}
	l, err := s.loans.Get(ctx, loanID)
	if err != nil {
		return err
	}
	applicationID, err := s.client.SubmitApplication(ctx, dbs.Application{
		LoanID:                 l.ID,
		LoanXID:                l.LoanXID,
		CustomerID:             l.CustomerID,
		LoanAmount:             l.LoanAmount,
		DisbursementAmount:     l.DisbursementAmount,
		InstallmentAmount:      l.InstallmentAmount,
		DurationMonths:         l.DurationMonths,
		InterestRateMonthlyBPS: l.InterestRateMonthlyBPS,
	})
	if err != nil {
		return fmt.Errorf("submit dbs application: %w", err)
	}
	current.ApplicationID = applicationID
	current.Status = StatusProcess
	return s.repo.Update(ctx, *current)
}

type loanStatusCallback struct {
	MsgID         string
	ApplicationID string
	Status        string
	RejectReason  string
}

// HandleLoanStatusWebhook processes a sealed DBS loan status callback and
// returns the sealed acknowledgement. Transport level failures (signature,
// ciphertext) are returned as errors; business failures are acknowledged
// with a rejected receipt.
func (s *Service) HandleLoanStatusWebhook(ctx context.Context, body []byte, signature string) (*WebhookReply, error) {
	if err := s.envelope.Verify(body, signature); err != nil {
		observability.RecordDBSWebhook("invalid_signature")
		return nil, err
	}
	plain, err := s.envelope.Decrypt(string(body))
	if err != nil {
		observability.RecordDBSWebhook("invalid_ciphertext")
		return nil, err
	}
	if !gjson.ValidBytes(plain) {
		observability.RecordDBSWebhook("invalid_payload")
		return nil, ErrInvalidPayload
	}

	parsed := gjson.ParseBytes(plain)
	cb := loanStatusCallback{
		MsgID:         parsed.Get("header.msgId").String(),
		ApplicationID: parsed.Get("data.loanApplicationRequest.applicationId").String(),
		Status:        strings.ToUpper(parsed.Get("data.loanApplicationRequest.applicationStatus").String()),
		RejectReason:  parsed.Get("data.loanApplicationRequest.rejectReason").String(),
	}

	ack := dbs.LoanStatusAck{ApplicationID: cb.ApplicationID, ReceiptStatus: dbs.ReceiptAccepted}
	if problems := validateCallback(cb); len(problems) > 0 {
		ack.ReceiptStatus = dbs.ReceiptRejected
		ack.ErrorList = problems
		observability.RecordDBSWebhook("rejected")
		return s.seal(ack)
	}

	if err := s.applyCallback(ctx, cb); err != nil {
		if !errors.Is(err, ErrStatusNotFound) {
			observability.CtxError(ctx, s.logger, "dbs callback failed", "application_id", cb.ApplicationID, "msg_id", cb.MsgID, "error", err)
			observability.RecordDBSWebhook("error")
			return nil, err
		}
		ack.ReceiptStatus = dbs.ReceiptRejected
		ack.ErrorList = []dbs.ErrorItem{{Code: "E404", Description: "application not found"}}
		observability.RecordDBSWebhook("rejected")
		return s.seal(ack)
	}

	observability.CtxInfo(ctx, s.logger, "dbs callback processed", "application_id", cb.ApplicationID, "status", cb.Status)
	observability.RecordDBSWebhook("accepted")
	return s.seal(ack)
}

func validateCallback(cb loanStatusCallback) []dbs.ErrorItem {
	var problems []dbs.ErrorItem
	if strings.TrimSpace(cb.MsgID) == "" {
		problems = append(problems, dbs.ErrorItem{Code: "E001", Description: "header.msgId is required"})
	}
	if strings.TrimSpace(cb.ApplicationID) == "" {
		problems = append(problems, dbs.ErrorItem{Code: "E002", Description: "applicationId is required"})
	}
	if cb.Status != dbs.ApplicationApproved && cb.Status != dbs.ApplicationRejected {
		problems = append(problems, dbs.ErrorItem{Code: "E003", Description: "applicationStatus must be APPROVED or REJECTED"})
	}
	return problems
}

func (s *Service) applyCallback(ctx context.Context, cb loanStatusCallback) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetByApplicationIDForUpdate(ctx, cb.ApplicationID)
		if err != nil {
			return err
		}
		if current.IsFinal() {
			return nil
		}

		if cb.Status == dbs.ApplicationApproved {
			current.Status = StatusSuccess
			if err := s.repo.Update(ctx, *current); err != nil {
				return err
			}
			_, err := s.loans.ChangeStatus(ctx, current.LoanID, loan.StatusFundDisbursalOngoing, "channeling_approved")
			return err
		}

		current.Status = StatusFailed
		current.Reason = cb.RejectReason
		if err := s.repo.Update(ctx, *current); err != nil {
			return err
		}
		return s.fallback(ctx, current.LoanID)
	})
}

// fallback moves a loan rejected by the channeling lender to a regular
// lender, or rejects it when none can fund it.
func (s *Service) fallback(ctx context.Context, loanID string) error {
	l, err := s.loans.Get(ctx, loanID)
	if err != nil {
		return err
	}
	next, err := s.lenders.Select(ctx, lender.Criteria{
		ProductCode:     l.ProductCode,
		Amount:          l.DisbursementAmount,
		ExcludeIDs:      []string{l.LenderID},
		AllowChanneling: false,
	})
	if errors.Is(err, lender.ErrNoLenderAvailable) {
		_, err = s.loans.ChangeStatus(ctx, loanID, loan.StatusLenderReject, "channeling_rejected")
		return err
	}
	if err != nil {
		return err
	}
	if _, err := s.loans.ReassignLender(ctx, loanID, next.ID); err != nil {
		return err
	}
	_, err = s.loans.ChangeStatus(ctx, loanID, loan.StatusFundDisbursalOngoing, "channeling_rejected_reassigned")
	return err
}

func (s *Service) seal(ack dbs.LoanStatusAck) (*WebhookReply, error) {
	plain, err := dbs.MarshalEnvelope(s.orgID, map[string]any{"loanApplicationResponse": ack}, s.now())
	if err != nil {
		return nil, err
	}
	sealed, err := s.envelope.Encrypt(plain)
	if err != nil {
		return nil, err
	}
	return &WebhookReply{Body: sealed, Signature: s.envelope.Sign([]byte(sealed))}, nil
}
