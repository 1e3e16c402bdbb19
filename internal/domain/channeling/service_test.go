package channeling_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/julo/lendcore/internal/domain/channeling"
	"github.com/julo/lendcore/internal/domain/lender"
	"github.com/julo/lendcore/internal/domain/loan"
	"github.com/julo/lendcore/internal/partner/dbs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type passthroughTx struct{}

func (passthroughTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeRepo struct {
	statuses map[string]*channeling.Status
}

func (r *fakeRepo) Create(_ context.Context, s channeling.Status) (*channeling.Status, error) {
	if _, ok := r.statuses[s.LoanID]; ok {
		return nil, channeling.ErrAlreadyStarted
	}
	s.ID = "ch-" + s.LoanID
	r.statuses[s.LoanID] = &s
	cp := s
	return &cp, nil
}

func (r *fakeRepo) GetByLoan(_ context.Context, loanID string) (*channeling.Status, error) {
	s, ok := r.statuses[loanID]
	if !ok {
		return nil, channeling.ErrStatusNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *fakeRepo) GetByApplicationIDForUpdate(_ context.Context, applicationID string) (*channeling.Status, error) {
	for _, s := range r.statuses {
		if s.ApplicationID == applicationID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, channeling.ErrStatusNotFound
}

func (r *fakeRepo) Update(_ context.Context, s channeling.Status) error {
	r.statuses[s.LoanID] = &s
	return nil
}

type fakeLoans struct {
	loans       map[string]*loan.Entity
	transitions []string
}

func (l *fakeLoans) Get(_ context.Context, loanID string) (*loan.Entity, error) {
	e, ok := l.loans[loanID]
	if !ok {
		return nil, loan.ErrLoanNotFound
	}
	cp := *e
	return &cp, nil
}

func (l *fakeLoans) ChangeStatus(_ context.Context, loanID string, to int, reason string) (*loan.Entity, error) {
	e := l.loans[loanID]
	if !loan.CanTransition(e.Status, to) {
		return nil, loan.ErrInvalidTransition
	}
	e.Status = to
	l.transitions = append(l.transitions, fmt.Sprintf("%d:%s", to, reason))
	return e, nil
}

func (l *fakeLoans) ReassignLender(_ context.Context, loanID, lenderID string) (*loan.Entity, error) {
	l.loans[loanID].LenderID = lenderID
	return l.loans[loanID], nil
}

type fakeLenders struct {
	available *lender.Entity
	criteria  []lender.Criteria
}

func (f *fakeLenders) Select(_ context.Context, c lender.Criteria) (*lender.Entity, error) {
	f.criteria = append(f.criteria, c)
	if f.available == nil {
		return nil, lender.ErrNoLenderAvailable
	}
	return f.available, nil
}

type fakeOutbox struct {
	topics []string
}

func (o *fakeOutbox) Enqueue(_ context.Context, topic string, _ []byte) error {
	o.topics = append(o.topics, topic)
	return nil
}

type fixture struct {
	svc     *channeling.Service
	repo    *fakeRepo
	loans   *fakeLoans
	lenders *fakeLenders
	outbox  *fakeOutbox
	cipher  *dbs.Cipher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	c, err := dbs.NewCipher("0123456789abcdef0123456789abcdef", "hmac")
	require.NoError(t, err)
	f := &fixture{
		repo: &fakeRepo{statuses: map[string]*channeling.Status{}},
		loans: &fakeLoans{loans: map[string]*loan.Entity{
			"loan-1": {ID: "loan-1", LoanXID: 1000000001, LenderID: "lender-dbs", ProductCode: loan.ProductCashLoan, DisbursementAmount: 1_000_000, Status: loan.StatusLenderApproval},
		}},
		lenders: &fakeLenders{},
		outbox:  &fakeOutbox{},
		cipher:  c,
	}
	f.svc = channeling.NewService(channeling.Dependencies{
		Repo:     f.repo,
		Loans:    f.loans,
		Lenders:  f.lenders,
		Outbox:   f.outbox,
		Client:   dbs.NewStubClient(),
		Envelope: c,
		Tx:       passthroughTx{},
		OrgID:    "JULO",
	})
	return f
}

func (f *fixture) submitted(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.svc.Start(ctx, "loan-1", "dbs"))
	require.NoError(t, f.svc.Submit(ctx, "loan-1"))
	st, err := f.svc.GetByLoan(ctx, "loan-1")
	require.NoError(t, err)
	return st.ApplicationID
}

func (f *fixture) callback(t *testing.T, applicationID, status, reason string) ([]byte, string) {
	t.Helper()
	plain, err := json.Marshal(map[string]any{
		"header": map[string]any{"msgId": "msg-1", "orgId": "DBS", "timeStamp": time.Now().Format(time.RFC3339)},
		"data": map[string]any{"loanApplicationRequest": map[string]any{
			"applicationId":     applicationID,
			"applicationStatus": status,
			"rejectReason":      reason,
		}},
	})
	require.NoError(t, err)
	sealed, err := f.cipher.Encrypt(plain)
	require.NoError(t, err)
	return []byte(sealed), f.cipher.Sign([]byte(sealed))
}

func (f *fixture) openReply(t *testing.T, reply *channeling.WebhookReply) gjson.Result {
	t.Helper()
	require.NoError(t, f.cipher.Verify([]byte(reply.Body), reply.Signature))
	plain, err := f.cipher.Decrypt(reply.Body)
	require.NoError(t, err)
	return gjson.ParseBytes(plain).Get("data.loanApplicationResponse")
}

func TestStartCreatesPendingStatusAndQueuesSubmission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Start(ctx, "loan-1", "DBS"))
	assert.Equal(t, channeling.StatusPending, f.repo.statuses["loan-1"].Status)
	assert.Equal(t, []string{channeling.TopicSubmit}, f.outbox.topics)

	assert.ErrorIs(t, f.svc.Start(ctx, "loan-1", "dbs"), channeling.ErrAlreadyStarted)
	assert.ErrorIs(t, f.svc.Start(ctx, "loan-2", "bss"), channeling.ErrUnsupportedType)
}

func TestSubmitStoresApplicationID(t *testing.T) {
	f := newFixture(t)
	appID := f.submitted(t)

	assert.Contains(t, appID, "DBS-STUB-1000000001")
	assert.Equal(t, channeling.StatusProcess, f.repo.statuses["loan-1"].Status)

	require.NoError(t, f.svc.Submit(context.Background(), "loan-1"))
	assert.Equal(t, appID, f.repo.statuses["loan-1"].ApplicationID)
}

func TestWebhookApproved(t *testing.T) {
	f := newFixture(t)
	appID := f.submitted(t)

	body, sig := f.callback(t, appID, "APPROVED", "")
	reply, err := f.svc.HandleLoanStatusWebhook(context.Background(), body, sig)
	require.NoError(t, err)

	ack := f.openReply(t, reply)
	assert.Equal(t, dbs.ReceiptAccepted, ack.Get("receiptStatus").String())
	assert.Equal(t, appID, ack.Get("applicationId").String())
	assert.Equal(t, channeling.StatusSuccess, f.repo.statuses["loan-1"].Status)
	assert.Equal(t, loan.StatusFundDisbursalOngoing, f.loans.loans["loan-1"].Status)
}

func TestWebhookRejectedFallsBackToRegularLender(t *testing.T) {
	f := newFixture(t)
	f.lenders.available = &lender.Entity{ID: "lender-jtp"}
	appID := f.submitted(t)

	body, sig := f.callback(t, appID, "REJECTED", "DTI too high")
	_, err := f.svc.HandleLoanStatusWebhook(context.Background(), body, sig)
	require.NoError(t, err)

	st := f.repo.statuses["loan-1"]
	assert.Equal(t, channeling.StatusFailed, st.Status)
	assert.Equal(t, "DTI too high", st.Reason)
	assert.Equal(t, "lender-jtp", f.loans.loans["loan-1"].LenderID)
	assert.Equal(t, loan.StatusFundDisbursalOngoing, f.loans.loans["loan-1"].Status)
	require.Len(t, f.lenders.criteria, 1)
	assert.False(t, f.lenders.criteria[0].AllowChanneling)
	assert.Equal(t, []string{"lender-dbs"}, f.lenders.criteria[0].ExcludeIDs)
}

func TestWebhookRejectedWithoutFallbackRejectsLoan(t *testing.T) {
	f := newFixture(t)
	appID := f.submitted(t)

	body, sig := f.callback(t, appID, "REJECTED", "")
	_, err := f.svc.HandleLoanStatusWebhook(context.Background(), body, sig)
	require.NoError(t, err)
	assert.Equal(t, loan.StatusLenderReject, f.loans.loans["loan-1"].Status)
}

func TestWebhookIsIdempotentOnFinalStatus(t *testing.T) {
	f := newFixture(t)
	appID := f.submitted(t)
	ctx := context.Background()

	body, sig := f.callback(t, appID, "APPROVED", "")
	_, err := f.svc.HandleLoanStatusWebhook(ctx, body, sig)
	require.NoError(t, err)

	body, sig = f.callback(t, appID, "REJECTED", "late")
	reply, err := f.svc.HandleLoanStatusWebhook(ctx, body, sig)
	require.NoError(t, err)
	assert.Equal(t, dbs.ReceiptAccepted, f.openReply(t, reply).Get("receiptStatus").String())
	assert.Len(t, f.loans.transitions, 1)
	assert.Equal(t, channeling.StatusSuccess, f.repo.statuses["loan-1"].Status)
}

func TestWebhookValidation(t *testing.T) {
	f := newFixture(t)
	appID := f.submitted(t)
	ctx := context.Background()

	body, sig := f.callback(t, appID, "MAYBE", "")
	reply, err := f.svc.HandleLoanStatusWebhook(ctx, body, sig)
	require.NoError(t, err)
	ack := f.openReply(t, reply)
	assert.Equal(t, dbs.ReceiptRejected, ack.Get("receiptStatus").String())
	assert.Equal(t, "E003", ack.Get("errorList.0.code").String())

	body, sig = f.callback(t, "unknown-app", "APPROVED", "")
	reply, err = f.svc.HandleLoanStatusWebhook(ctx, body, sig)
	require.NoError(t, err)
	assert.Equal(t, dbs.ReceiptRejected, f.openReply(t, reply).Get("receiptStatus").String())

	_, err = f.svc.HandleLoanStatusWebhook(ctx, body, "deadbeef")
	assert.ErrorIs(t, err, dbs.ErrInvalidSignature)

	garbage := []byte("bm90IGEgY2lwaGVydGV4dA==")
	_, err = f.svc.HandleLoanStatusWebhook(ctx, garbage, f.cipher.Sign(garbage))
	assert.ErrorIs(t, err, dbs.ErrInvalidCiphertext)
}
