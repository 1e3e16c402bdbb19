package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/julo/lendcore/internal/db"
	"github.com/julo/lendcore/internal/domain/account"
	"github.com/julo/lendcore/internal/domain/channeling"
	lenderdomain "github.com/julo/lendcore/internal/domain/lender"
	loandomain "github.com/julo/lendcore/internal/domain/loan"
	"github.com/julo/lendcore/internal/domain/partner"
	"github.com/julo/lendcore/internal/domain/qris"
	"github.com/julo/lendcore/internal/repository/postgres"
	"github.com/julo/lendcore/internal/testutil"
)

func TestPostgresRepositoriesLoanFlow(t *testing.T) {
	pool := testutil.NewTestPool(t)
	defer pool.Close()
	testutil.ApplyMigrations(t)
	testutil.ResetTables(t, pool)

	ctx := context.Background()
	tx := db.NewTxManager(pool)
	authRepo := db.NewAuthRepository(pool)
	accountRepo := postgres.NewAccountRepository(pool)
	lenderRepo := postgres.NewLenderRepository(pool)
	loanRepo := postgres.NewLoanRepository(pool)
	paymentRepo := postgres.NewPaymentRepository(pool)
	outboxRepo := postgres.NewOutboxRepository(pool)

	customer, err := authRepo.CreateCustomer(ctx, "+6281234567890", "", "Budi", "hash", "customer")
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	if _, err := authRepo.CreateCustomer(ctx, "+6281234567890", "", "Budi", "hash", "customer"); !db.IsUniqueViolation(err) {
		t.Fatalf("expected unique violation on duplicate phone, got %v", err)
	}

	acc, err := accountRepo.Create(ctx, customer.ID)
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	if acc.Status != account.StatusInactive {
		t.Fatalf("expected inactive account, got %d", acc.Status)
	}
	if err := accountRepo.SaveLimit(ctx, account.Limit{AccountID: acc.ID, MaxLimit: 5_000_000, SetLimit: 5_000_000, AvailableLimit: 5_000_000}); err != nil {
		t.Fatalf("save limit: %v", err)
	}
	if _, err := accountRepo.GetByID(ctx, "00000000-0000-0000-0000-000000000000"); !errors.Is(err, account.ErrAccountNotFound) {
		t.Fatalf("expected account not found, got %v", err)
	}

	lender, err := lenderRepo.Create(ctx, lenderdomain.CreateInput{Code: "jtp", Name: "JTP", Status: lenderdomain.StatusActive, Priority: 1, DisbursementBalance: 10_000_000})
	if err != nil {
		t.Fatalf("create lender: %v", err)
	}
	if err := lenderRepo.AdjustBalance(ctx, lender.ID, -20_000_000); !errors.Is(err, lenderdomain.ErrInsufficientLenderBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	active, err := lenderRepo.ListActive(ctx)
	if err != nil || len(active) != 1 {
		t.Fatalf("list active lenders: %v %d", err, len(active))
	}

	var created *loandomain.Entity
	err = tx.WithinTx(ctx, func(ctx context.Context) error {
		limit, err := accountRepo.GetLimitForUpdate(ctx, acc.ID)
		if err != nil {
			return err
		}
		limit.AvailableLimit -= 1_000_000
		limit.UsedLimit += 1_000_000
		if err := accountRepo.SaveLimit(ctx, *limit); err != nil {
			return err
		}
		created, err = loanRepo.Create(ctx, loandomain.Entity{
			AccountID: acc.ID, CustomerID: customer.ID, LenderID: lender.ID,
			ProductCode: loandomain.ProductCashLoan, TransactionMethod: loandomain.MethodSelf,
			RequestedAmount: 1_000_000, LoanAmount: 1_050_000, DisbursementAmount: 1_000_000, ProvisionFee: 50_000,
			InterestRateMonthlyBPS: 400, DurationMonths: 3, InstallmentAmount: 392_000, Status: loandomain.StatusInactive,
		})
		if err != nil {
			return err
		}
		terms := loandomain.ComputeTerms(1_000_000, 3, 400, 500)
		payments := loandomain.BuildSchedule(terms, 3, time.Now().UTC())
		for i := range payments {
			payments[i].LoanID = created.ID
		}
		if err := paymentRepo.CreateBatch(ctx, payments); err != nil {
			return err
		}
		return outboxRepo.Enqueue(ctx, loandomain.TopicLoanNotification, []byte(`{"loan_id":"`+created.ID+`"}`))
	})
	if err != nil {
		t.Fatalf("create loan in tx: %v", err)
	}
	if created.LoanXID < 1000000001 {
		t.Fatalf("unexpected loan xid %d", created.LoanXID)
	}

	payments, err := paymentRepo.ListByLoan(ctx, created.ID)
	if err != nil || len(payments) != 3 {
		t.Fatalf("list payments: %v %d", err, len(payments))
	}

	if err := loanRepo.UpdateStatus(ctx, created.ID, loandomain.StatusInactive, loandomain.StatusLenderApproval); err != nil {
		t.Fatalf("update status: %v", err)
	}
	if err := loanRepo.UpdateStatus(ctx, created.ID, loandomain.StatusInactive, loandomain.StatusCancelledByCustomer); !errors.Is(err, loandomain.ErrConcurrentUpdate) {
		t.Fatalf("expected concurrent update, got %v", err)
	}

	jobs, err := outboxRepo.ClaimPending(ctx, 10)
	if err != nil || len(jobs) != 1 {
		t.Fatalf("claim outbox: %v %d", err, len(jobs))
	}
	if jobs[0].Attempts != 1 || jobs[0].Topic != loandomain.TopicLoanNotification {
		t.Fatalf("unexpected claimed job: %+v", jobs[0])
	}
	again, err := outboxRepo.ClaimPending(ctx, 10)
	if err != nil || len(again) != 0 {
		t.Fatalf("claimed job must not be claimed twice: %v %d", err, len(again))
	}

	// A worker that died mid-job leaves the row in processing.
	if _, err := pool.Exec(ctx, `UPDATE outbox_jobs SET updated_at = NOW() - INTERVAL '10 minutes' WHERE id = $1`, jobs[0].ID); err != nil {
		t.Fatalf("age claimed job: %v", err)
	}
	reclaimed, err := outboxRepo.ClaimPending(ctx, 10)
	if err != nil || len(reclaimed) != 1 {
		t.Fatalf("expired lease must be reclaimed: %v %d", err, len(reclaimed))
	}
	if reclaimed[0].ID != jobs[0].ID || reclaimed[0].Attempts != 2 {
		t.Fatalf("unexpected reclaimed job: %+v", reclaimed[0])
	}
	again, err = outboxRepo.ClaimPending(ctx, 10)
	if err != nil || len(again) != 0 {
		t.Fatalf("reclaimed job must hold a fresh lease: %v %d", err, len(again))
	}
	if err := outboxRepo.MarkDone(ctx, jobs[0].ID); err != nil {
		t.Fatalf("mark done: %v", err)
	}
	if _, err := pool.Exec(ctx, `UPDATE outbox_jobs SET updated_at = NOW() - INTERVAL '1 hour'`); err != nil {
		t.Fatalf("age finished job: %v", err)
	}
	if done, err := outboxRepo.ClaimPending(ctx, 10); err != nil || len(done) != 0 {
		t.Fatalf("finished job must stay done: %v %d", err, len(done))
	}
}

func TestPostgresRepositoriesPartnerConstraints(t *testing.T) {
	pool := testutil.NewTestPool(t)
	defer pool.Close()
	testutil.ApplyMigrations(t)
	testutil.ResetTables(t, pool)

	ctx := context.Background()
	authRepo := db.NewAuthRepository(pool)
	accountRepo := postgres.NewAccountRepository(pool)
	qrisRepo := postgres.NewQRISRepository(pool)
	channelingRepo := postgres.NewChannelingRepository(pool)
	partnerRepo := postgres.NewPartnerRepository(pool)
	lenderRepo := postgres.NewLenderRepository(pool)
	loanRepo := postgres.NewLoanRepository(pool)

	customer, err := authRepo.CreateCustomer(ctx, "+6281111111111", "", "Sari", "hash", "customer")
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	acc, err := accountRepo.Create(ctx, customer.ID)
	if err != nil {
		t.Fatalf("create account: %v", err)
	}

	var partnerID, linkageID string
	err = pool.QueryRow(ctx, `INSERT INTO partners (code, name, api_key_hash, signing_secret) VALUES ('amar', 'Amar', $1, 'secret') RETURNING id`,
		partner.HashAPIKey("amar-key")).Scan(&partnerID)
	if err != nil {
		t.Fatalf("insert partner: %v", err)
	}
	err = pool.QueryRow(ctx, `
INSERT INTO qris_partner_linkages (partner_id, partner_customer_id, customer_id, account_id, status)
VALUES ($1, 'amar-001', $2, $3, 'success') RETURNING id`, partnerID, customer.ID, acc.ID).Scan(&linkageID)
	if err != nil {
		t.Fatalf("insert linkage: %v", err)
	}

	p, err := partnerRepo.GetByAPIKeyHash(ctx, partner.HashAPIKey("amar-key"))
	if err != nil || p.ID != partnerID {
		t.Fatalf("lookup partner: %v", err)
	}

	link, err := qrisRepo.GetLinkage(ctx, partnerID, "amar-001")
	if err != nil || link.ID != linkageID {
		t.Fatalf("get linkage: %v", err)
	}

	txn := qris.Transaction{PartnerID: partnerID, PartnerTransactionID: "TX-1", LinkageID: linkageID, Amount: 50_000, Status: qris.TransactionPending}
	if _, err := qrisRepo.CreateTransaction(ctx, txn); err != nil {
		t.Fatalf("create qris transaction: %v", err)
	}
	if _, err := qrisRepo.CreateTransaction(ctx, txn); !errors.Is(err, qris.ErrDuplicateTransaction) {
		t.Fatalf("expected duplicate transaction, got %v", err)
	}

	lender, err := lenderRepo.Create(ctx, lenderdomain.CreateInput{Code: "dbs", Name: "DBS", Status: lenderdomain.StatusActive, IsChanneling: true})
	if err != nil {
		t.Fatalf("create lender: %v", err)
	}
	l, err := loanRepo.Create(ctx, loandomain.Entity{
		AccountID: acc.ID, CustomerID: customer.ID, LenderID: lender.ID,
		ProductCode: loandomain.ProductCashLoan, TransactionMethod: loandomain.MethodSelf,
		RequestedAmount: 100_000, LoanAmount: 100_000, DisbursementAmount: 100_000,
		DurationMonths: 1, InstallmentAmount: 100_000, Status: loandomain.StatusLenderApproval,
	})
	if err != nil {
		t.Fatalf("create loan: %v", err)
	}

	st, err := channelingRepo.Create(ctx, channeling.Status{LoanID: l.ID, ChannelingType: channeling.TypeDBS, Status: channeling.StatusPending})
	if err != nil {
		t.Fatalf("create channeling status: %v", err)
	}
	if _, err := channelingRepo.Create(ctx, channeling.Status{LoanID: l.ID, ChannelingType: channeling.TypeDBS, Status: channeling.StatusPending}); !errors.Is(err, channeling.ErrAlreadyStarted) {
		t.Fatalf("expected already started, got %v", err)
	}
	st.Status = channeling.StatusProcess
	st.ApplicationID = "APP-1"
	if err := channelingRepo.Update(ctx, *st); err != nil {
		t.Fatalf("update channeling: %v", err)
	}
	byApp, err := channelingRepo.GetByApplicationIDForUpdate(ctx, "APP-1")
	if err != nil || byApp.LoanID != l.ID {
		t.Fatalf("get by application id: %v", err)
	}
}
