package loan_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/julo/lendcore/internal/domain/account"
	"github.com/julo/lendcore/internal/domain/digisign"
	"github.com/julo/lendcore/internal/domain/featuresetting"
	"github.com/julo/lendcore/internal/domain/lender"
	"github.com/julo/lendcore/internal/domain/loan"
)

type passthroughTx struct{}

func (passthroughTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeLoanRepo struct {
	loans   map[string]*loan.Entity
	history []loan.StatusChange
	seq     int
}

func (r *fakeLoanRepo) Create(_ context.Context, e loan.Entity) (*loan.Entity, error) {
	r.seq++
	e.ID = fmt.Sprintf("loan-%d", r.seq)
	e.LoanXID = int64(1000000000 + r.seq)
	e.CreatedAt = time.Now()
	r.loans[e.ID] = &e
	cp := e
	return &cp, nil
}

func (r *fakeLoanRepo) GetByID(_ context.Context, id string) (*loan.Entity, error) {
	e, ok := r.loans[id]
	if !ok {
		return nil, loan.ErrLoanNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *fakeLoanRepo) GetForUpdate(ctx context.Context, id string) (*loan.Entity, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeLoanRepo) ListByAccount(_ context.Context, accountID string, _, _ int32) ([]loan.Entity, error) {
	out := []loan.Entity{}
	for _, e := range r.loans {
		if e.AccountID == accountID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (r *fakeLoanRepo) ListIDsByStatusBefore(_ context.Context, status int, before time.Time, _ int32) ([]string, error) {
	out := []string{}
	for _, e := range r.loans {
		if e.Status == status && e.CreatedAt.Before(before) {
			out = append(out, e.ID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *fakeLoanRepo) UpdateStatus(_ context.Context, id string, from, to int) error {
	e := r.loans[id]
	if e.Status != from {
		return loan.ErrConcurrentUpdate
	}
	e.Status = to
	return nil
}

func (r *fakeLoanRepo) SetLender(_ context.Context, id, lenderID string) error {
	r.loans[id].LenderID = lenderID
	return nil
}

func (r *fakeLoanRepo) MarkAgreementSigned(_ context.Context, id string, at time.Time) error {
	r.loans[id].AgreementSignedAt = &at
	return nil
}

func (r *fakeLoanRepo) MarkDisbursed(_ context.Context, id, ref string, at time.Time) error {
	r.loans[id].DisbursementRef = ref
	r.loans[id].FundTransferAt = &at
	return nil
}

func (r *fakeLoanRepo) InsertStatusHistory(_ context.Context, change loan.StatusChange) error {
	r.history = append(r.history, change)
	return nil
}

type fakePaymentRepo struct {
	payments   map[string][]loan.Payment
	repayments []loan.RepaymentInput
}

func (r *fakePaymentRepo) CreateBatch(_ context.Context, payments []loan.Payment) error {
	for i, p := range payments {
		p.ID = fmt.Sprintf("%s-p%d", p.LoanID, i+1)
		r.payments[p.LoanID] = append(r.payments[p.LoanID], p)
	}
	return nil
}

func (r *fakePaymentRepo) ListByLoan(_ context.Context, loanID string) ([]loan.Payment, error) {
	out := make([]loan.Payment, len(r.payments[loanID]))
	copy(out, r.payments[loanID])
	return out, nil
}

func (r *fakePaymentRepo) ListByLoanForUpdate(ctx context.Context, loanID string) ([]loan.Payment, error) {
	return r.ListByLoan(ctx, loanID)
}

func (r *fakePaymentRepo) ListOverdue(_ context.Context, asOf time.Time, _ int32) ([]loan.Payment, error) {
	out := []loan.Payment{}
	for _, ps := range r.payments {
		for _, p := range ps {
			if p.Status == loan.PaymentNotDue && p.DueDate.Before(asOf) {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

func (r *fakePaymentRepo) Update(_ context.Context, p loan.Payment) error {
	ps := r.payments[p.LoanID]
	for i := range ps {
		if ps[i].ID == p.ID {
			ps[i] = p
			return nil
		}
	}
	return fmt.Errorf("payment %s not found", p.ID)
}

func (r *fakePaymentRepo) InsertRepayment(_ context.Context, in loan.RepaymentInput) error {
	r.repayments = append(r.repayments, in)
	return nil
}

type outboxEntry struct {
	Topic   string
	Payload map[string]any
}

type fakeOutbox struct {
	entries []outboxEntry
}

func (o *fakeOutbox) Enqueue(_ context.Context, topic string, payload []byte) error {
	var decoded map[string]any
	_ = json.Unmarshal(payload, &decoded)
	o.entries = append(o.entries, outboxEntry{Topic: topic, Payload: decoded})
	return nil
}

func (o *fakeOutbox) topics() []string {
	out := make([]string, 0, len(o.entries))
	for _, e := range o.entries {
		out = append(out, e.Topic)
	}
	return out
}

type fakeAccounts struct {
	accounts map[string]*account.Account
	limits   map[string]*account.Limit
}

func (a *fakeAccounts) EnsureUsable(_ context.Context, accountID string) (*account.Account, error) {
	acc, ok := a.accounts[accountID]
	if !ok {
		return nil, account.ErrAccountNotFound
	}
	if !account.IsUsable(acc.Status) {
		return nil, account.ErrAccountNotActive
	}
	return acc, nil
}

func (a *fakeAccounts) Decrease(_ context.Context, accountID string, amount int64, _ string) (*account.Limit, error) {
	l := a.limits[accountID]
	if amount > l.AvailableLimit {
		return nil, account.ErrInsufficientLimit
	}
	l.AvailableLimit -= amount
	l.UsedLimit += amount
	return l, nil
}

func (a *fakeAccounts) Increase(_ context.Context, accountID string, amount int64, _ string) (*account.Limit, error) {
	l := a.limits[accountID]
	restored := min(amount, l.UsedLimit)
	l.UsedLimit -= restored
	l.AvailableLimit += restored
	return l, nil
}

type fakeLenders struct {
	lenders  map[string]*lender.Entity
	selectFn func(c lender.Criteria) (*lender.Entity, error)
	reserved map[string]int64
}

func (l *fakeLenders) Get(_ context.Context, lenderID string) (*lender.Entity, error) {
	e, ok := l.lenders[lenderID]
	if !ok {
		return nil, lender.ErrLenderNotFound
	}
	return e, nil
}

func (l *fakeLenders) Select(_ context.Context, c lender.Criteria) (*lender.Entity, error) {
	if l.selectFn != nil {
		return l.selectFn(c)
	}
	return l.lenders["lender-jtp"], nil
}

func (l *fakeLenders) Reserve(_ context.Context, lenderID string, amount int64) error {
	l.reserved[lenderID] += amount
	return nil
}

func (l *fakeLenders) Release(_ context.Context, lenderID string, amount int64) error {
	l.reserved[lenderID] -= amount
	return nil
}

type fakeSigner struct {
	signed []digisign.SignInput
}

func (s *fakeSigner) Sign(_ context.Context, in digisign.SignInput) (*digisign.Signature, error) {
	s.signed = append(s.signed, in)
	return &digisign.Signature{ID: "sig-1", LoanID: in.LoanID}, nil
}

type fakePromos struct {
	requests []loan.PromoRequest
	err      error
}

func (p *fakePromos) Reserve(_ context.Context, req loan.PromoRequest) (int64, error) {
	if p.err != nil {
		return 0, p.err
	}
	p.requests = append(p.requests, req)
	return 10_000, nil
}

type fakeChanneling struct {
	started []string
}

func (c *fakeChanneling) Start(_ context.Context, loanID, channelingType string) error {
	c.started = append(c.started, loanID+":"+channelingType)
	return nil
}

type fakeFeatures struct {
	active map[string]bool
	params map[string]string
}

func (f fakeFeatures) IsActive(_ context.Context, name string) bool {
	return f.active[name]
}

func (f fakeFeatures) Params(_ context.Context, name string, out any) error {
	raw, ok := f.params[name]
	if !ok {
		return featuresetting.ErrNotFound
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("%w: %s", featuresetting.ErrInvalidParams, name)
	}
	return nil
}

type world struct {
	svc        *loan.Service
	loans      *fakeLoanRepo
	payments   *fakePaymentRepo
	outbox     *fakeOutbox
	accounts   *fakeAccounts
	lenders    *fakeLenders
	signer     *fakeSigner
	promos     *fakePromos
	channeling *fakeChanneling
	features   fakeFeatures
	changes    []loan.StatusChange
}

func newWorld() *world {
	w := &world{
		loans:    &fakeLoanRepo{loans: map[string]*loan.Entity{}},
		payments: &fakePaymentRepo{payments: map[string][]loan.Payment{}},
		outbox:   &fakeOutbox{},
		accounts: &fakeAccounts{
			accounts: map[string]*account.Account{
				"acc-1": {ID: "acc-1", CustomerID: "cust-1", Status: account.StatusActive},
				"acc-2": {ID: "acc-2", CustomerID: "cust-2", Status: account.StatusSuspended},
			},
			limits: map[string]*account.Limit{
				"acc-1": {AccountID: "acc-1", SetLimit: 5_000_000, AvailableLimit: 5_000_000},
				"acc-2": {AccountID: "acc-2", SetLimit: 5_000_000, AvailableLimit: 5_000_000},
			},
		},
		lenders: &fakeLenders{
			lenders: map[string]*lender.Entity{
				"lender-jtp": {ID: "lender-jtp", Code: "jtp", Status: lender.StatusActive},
				"lender-dbs": {ID: "lender-dbs", Code: "dbs", Status: lender.StatusActive, IsChanneling: true},
			},
			reserved: map[string]int64{},
		},
		signer:     &fakeSigner{},
		promos:     &fakePromos{},
		channeling: &fakeChanneling{},
		features:   fakeFeatures{params: map[string]string{"late_fee": `{"percent_bps": 500}`}},
	}
	w.svc = loan.NewService(loan.Dependencies{
		Loans:      w.loans,
		Payments:   w.payments,
		Outbox:     w.outbox,
		Accounts:   w.accounts,
		Lenders:    w.lenders,
		Features:   w.features,
		Tx:         passthroughTx{},
		Signer:     w.signer,
		Promos:     w.promos,
		Channeling: w.channeling,
	})
	w.svc.OnStatusChange(func(_ context.Context, change loan.StatusChange) error {
		w.changes = append(w.changes, change)
		return nil
	})
	return w
}

func cashLoanInput() loan.CreateInput {
	return loan.CreateInput{
		AccountID:              "acc-1",
		CustomerID:             "cust-1",
		ProductCode:            loan.ProductCashLoan,
		TransactionMethod:      loan.MethodSelf,
		Amount:                 1_000_000,
		DurationMonths:         3,
		InterestRateMonthlyBPS: 400,
		ProvisionRateBPS:       500,
		StartDate:              time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
	}
}
