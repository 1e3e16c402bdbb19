package lender_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/julo/lendcore/internal/domain/featuresetting"
	"github.com/julo/lendcore/internal/domain/lender"
)

type passthroughTx struct{}

func (passthroughTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeRepo struct {
	lenders map[string]*lender.Entity
}

func (r *fakeRepo) Create(_ context.Context, in lender.CreateInput) (*lender.Entity, error) {
	e := &lender.Entity{ID: "l-" + in.Code, Code: in.Code, Name: in.Name, Status: in.Status}
	r.lenders[e.ID] = e
	return e, nil
}

func (r *fakeRepo) GetByID(_ context.Context, id string) (*lender.Entity, error) {
	e, ok := r.lenders[id]
	if !ok {
		return nil, lender.ErrLenderNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *fakeRepo) GetByCode(_ context.Context, code string) (*lender.Entity, error) {
	for _, e := range r.lenders {
		if e.Code == code {
			cp := *e
			return &cp, nil
		}
	}
	return nil, lender.ErrLenderNotFound
}

func (r *fakeRepo) GetForUpdate(ctx context.Context, id string) (*lender.Entity, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeRepo) ListActive(_ context.Context) ([]lender.Entity, error) {
	out := []lender.Entity{}
	for _, e := range r.lenders {
		if e.Status == lender.StatusActive {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (r *fakeRepo) UpdateStatus(_ context.Context, lenderID, status string) error {
	r.lenders[lenderID].Status = status
	return nil
}

func (r *fakeRepo) AdjustBalance(_ context.Context, lenderID string, delta int64) error {
	r.lenders[lenderID].DisbursementBalance += delta
	return nil
}

type fakeFeatures struct {
	params map[string]string
}

func (f fakeFeatures) Params(_ context.Context, name string, out any) error {
	raw, ok := f.params[name]
	if !ok {
		return featuresetting.ErrInactive
	}
	return json.Unmarshal([]byte(raw), out)
}

func newRepo() *fakeRepo {
	return &fakeRepo{lenders: map[string]*lender.Entity{
		"l-jtp":  {ID: "l-jtp", Code: "jtp", Status: lender.StatusActive, Priority: 10, DisbursementBalance: 10_000_000},
		"l-blue": {ID: "l-blue", Code: "blue_finc", Status: lender.StatusActive, Priority: 5, DisbursementBalance: 100_000, ProductCodes: []string{"qris"}},
		"l-dbs":  {ID: "l-dbs", Code: "dbs", Status: lender.StatusActive, Priority: 1, IsChanneling: true, DisbursementBalance: 50_000_000},
		"l-off":  {ID: "l-off", Code: "off", Status: lender.StatusInactive, Priority: 0, DisbursementBalance: 50_000_000},
	}}
}

func TestSelectPrefersLowestPriorityEligible(t *testing.T) {
	svc := lender.NewService(newRepo(), fakeFeatures{}, passthroughTx{})

	got, err := svc.Select(context.Background(), lender.Criteria{ProductCode: "qris", Amount: 50_000})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if got.Code != "blue_finc" {
		t.Fatalf("expected blue_finc, got %s", got.Code)
	}
}

func TestSelectSkipsLenderWithoutBalanceOrProduct(t *testing.T) {
	svc := lender.NewService(newRepo(), fakeFeatures{}, passthroughTx{})

	got, err := svc.Select(context.Background(), lender.Criteria{ProductCode: "qris", Amount: 500_000})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if got.Code != "jtp" {
		t.Fatalf("expected jtp when blue_finc lacks balance, got %s", got.Code)
	}

	got, err = svc.Select(context.Background(), lender.Criteria{ProductCode: "cash_loan", Amount: 50_000})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if got.Code != "jtp" {
		t.Fatalf("expected jtp for unlisted product, got %s", got.Code)
	}
}

func TestSelectChannelingOnlyWhenAllowed(t *testing.T) {
	svc := lender.NewService(newRepo(), fakeFeatures{}, passthroughTx{})

	got, err := svc.Select(context.Background(), lender.Criteria{ProductCode: "cash_loan", Amount: 1_000_000, AllowChanneling: true})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if got.Code != "dbs" {
		t.Fatalf("expected dbs, got %s", got.Code)
	}
}

func TestSelectHonorsForcedLender(t *testing.T) {
	features := fakeFeatures{params: map[string]string{featuresetting.LenderMatchmaking: `{"forced_lender_code":"jtp"}`}}
	svc := lender.NewService(newRepo(), features, passthroughTx{})

	got, err := svc.Select(context.Background(), lender.Criteria{ProductCode: "qris", Amount: 50_000})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if got.Code != "jtp" {
		t.Fatalf("expected forced jtp, got %s", got.Code)
	}
}

func TestSelectNoLender(t *testing.T) {
	svc := lender.NewService(newRepo(), fakeFeatures{}, passthroughTx{})

	_, err := svc.Select(context.Background(), lender.Criteria{ProductCode: "qris", Amount: 10_000, ExcludeIDs: []string{"l-jtp", "l-blue"}})
	if !errors.Is(err, lender.ErrNoLenderAvailable) {
		t.Fatalf("expected no lender, got %v", err)
	}
}

func TestReserveAndRelease(t *testing.T) {
	repo := newRepo()
	svc := lender.NewService(repo, fakeFeatures{}, passthroughTx{})
	ctx := context.Background()

	if err := svc.Reserve(ctx, "l-blue", 60_000); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := svc.Reserve(ctx, "l-blue", 60_000); !errors.Is(err, lender.ErrInsufficientLenderBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	if err := svc.Release(ctx, "l-blue", 60_000); err != nil {
		t.Fatalf("release: %v", err)
	}
	if repo.lenders["l-blue"].DisbursementBalance != 100_000 {
		t.Fatalf("expected balance restored, got %d", repo.lenders["l-blue"].DisbursementBalance)
	}
}
