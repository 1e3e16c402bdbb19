package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/julo/lendcore/internal/db"
	"github.com/julo/lendcore/internal/domain/channeling"
	"github.com/julo/lendcore/internal/domain/loan"
	"github.com/julo/lendcore/internal/notify"
	"github.com/julo/lendcore/internal/observability"
	"github.com/julo/lendcore/internal/partner/disbursement"
)

type OutboxJob struct {
	ID          int64
	Topic       string
	Payload     []byte
	Status      string
	Attempts    int32
	LastError   string
	AvailableAt time.Time
}

type OutboxRepository interface {
	ClaimPending(ctx context.Context, limit int32) ([]OutboxJob, error)
	MarkDone(ctx context.Context, jobID int64) error
	MarkRetry(ctx context.Context, jobID int64, nextAvailableAt time.Time, lastError string) error
	MarkFailed(ctx context.Context, jobID int64, lastError string) error
}

type LoanService interface {
	Get(ctx context.Context, loanID string) (*loan.Entity, error)
	CompleteDisbursement(ctx context.Context, loanID, ref string, ok bool) (*loan.Entity, error)
}

type ChannelingSubmitter interface {
	Submit(ctx context.Context, loanID string) error
}

type CustomerDirectory interface {
	GetCustomerByID(ctx context.Context, customerID string) (*db.Customer, error)
}

type Dependencies struct {
	Outbox     OutboxRepository
	Loans      LoanService
	Channeling ChannelingSubmitter
	Gateway    disbursement.Gateway
	Customers  CustomerDirectory
	SMS        notify.Sender
	Logger     *slog.Logger
}

type Worker struct {
	outboxRepo   OutboxRepository
	loans        LoanService
	channeling   ChannelingSubmitter
	gateway      disbursement.Gateway
	customers    CustomerDirectory
	sms          notify.Sender
	logger       *slog.Logger
	maxAttempts  int32
	now          func() time.Time
	retryBackoff func(attempt int32) time.Duration
}

// errPermanent marks a job that retrying cannot fix.
var errPermanent = errors.New("permanent")

func NewWorker(deps Dependencies) *Worker {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		outboxRepo:  deps.Outbox,
		loans:       deps.Loans,
		channeling:  deps.Channeling,
		gateway:     deps.Gateway,
		customers:   deps.Customers,
		sms:         deps.SMS,
		logger:      logger,
		maxAttempts: 5,
		now:         func() time.Time { return time.Now().UTC() },
		retryBackoff: func(attempt int32) time.Duration {
			if attempt < 1 {
				attempt = 1
			}
			return time.Duration(attempt*15) * time.Second
		},
	}
}

func (w *Worker) RunOnce(ctx context.Context, batchSize int32) error {
	jobs, err := w.outboxRepo.ClaimPending(ctx, batchSize)
	if err != nil {
		return err
	}

	for _, job := range jobs {
		if err := w.processJob(ctx, job); err != nil {
			return err
		}
	}

	return nil
}

type loanPayload struct {
	LoanID string `json:"loan_id"`
	Status int    `json:"status"`
}

func (w *Worker) processJob(ctx context.Context, job OutboxJob) error {
	var payload loanPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil || payload.LoanID == "" {
		return w.finish(ctx, job, fmt.Errorf("%w: invalid_payload", errPermanent))
	}

	var err error
	switch job.Topic {
	case channeling.TopicSubmit:
		err = w.channeling.Submit(ctx, payload.LoanID)
	case loan.TopicLoanDisburse:
		err = w.processDisburse(ctx, job, payload.LoanID)
	case loan.TopicLoanNotification:
		err = w.processNotification(ctx, payload)
	default:
		err = fmt.Errorf("%w: unsupported_topic", errPermanent)
	}
	return w.finish(ctx, job, err)
}

func (w *Worker) processDisburse(ctx context.Context, job OutboxJob, loanID string) error {
	item, err := w.loans.Get(ctx, loanID)
	if err != nil {
		return err
	}
	if item.Status != loan.StatusFundDisbursalOngoing {
		return nil
	}

	res, err := w.gateway.Disburse(ctx, disbursement.Request{
		LoanID:  item.ID,
		LoanXID: item.LoanXID,
		Amount:  item.DisbursementAmount,
		Method:  item.TransactionMethod,
	})
	if err != nil {
		if job.Attempts >= w.maxAttempts {
			if _, cerr := w.loans.CompleteDisbursement(ctx, loanID, "", false); cerr != nil {
				return errors.Join(err, cerr)
			}
		}
		return err
	}

	_, err = w.loans.CompleteDisbursement(ctx, loanID, res.Reference, res.Succeeded())
	return err
}

func (w *Worker) processNotification(ctx context.Context, payload loanPayload) error {
	item, err := w.loans.Get(ctx, payload.LoanID)
	if err != nil {
		return err
	}
	customer, err := w.customers.GetCustomerByID(ctx, item.CustomerID)
	if err != nil {
		return err
	}
	body, ok := notificationBody(payload.Status, item)
	if !ok {
		return nil
	}
	return w.sms.Send(ctx, notify.Message{To: customer.Phone, Body: body})
}

func notificationBody(status int, item *loan.Entity) (string, bool) {
	switch status {
	case loan.StatusCurrent:
		return fmt.Sprintf("Dana pinjaman JULO #%d sebesar Rp%d telah dicairkan.", item.LoanXID, item.DisbursementAmount), true
	case loan.StatusPaidOff:
		return fmt.Sprintf("Pinjaman JULO #%d telah lunas. Terima kasih.", item.LoanXID), true
	}
	return "", false
}

func (w *Worker) finish(ctx context.Context, job OutboxJob, err error) error {
	if err == nil {
		observability.RecordOutboxJob(job.Topic, "done")
		return w.outboxRepo.MarkDone(ctx, job.ID)
	}
	msg := err.Error()
	if errors.Is(err, errPermanent) || job.Attempts >= w.maxAttempts {
		observability.RecordOutboxJob(job.Topic, "failed")
		observability.CtxError(ctx, w.logger, "outbox job failed", "job_id", job.ID, "topic", job.Topic, "attempts", job.Attempts, "error", msg)
		return w.outboxRepo.MarkFailed(ctx, job.ID, msg)
	}
	observability.RecordOutboxJob(job.Topic, "retry")
	next := w.now().Add(w.retryBackoff(job.Attempts))
	return w.outboxRepo.MarkRetry(ctx, job.ID, next, msg)
}
