package disbursement

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/julo/lendcore/internal/config"
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

type Request struct {
	LoanID      string `json:"loan_id"`
	LoanXID     int64  `json:"loan_xid"`
	Amount      int64  `json:"amount"`
	Method      string `json:"method"`
	Beneficiary string `json:"beneficiary"`
}

type Result struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
}

func (r Result) Succeeded() bool {
	return r.Status == StatusSuccess
}

type Gateway interface {
	Disburse(ctx context.Context, req Request) (Result, error)
}

type StubGateway struct{}

func NewStubGateway() *StubGateway {
	return &StubGateway{}
}

func (g *StubGateway) Disburse(_ context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.LoanID) == "" || req.Amount <= 0 {
		return Result{}, fmt.Errorf("invalid disbursement request")
	}
	return Result{
		Reference: fmt.Sprintf("DISB-%d-%x", req.LoanXID, time.Now().UTC().UnixNano()),
		Status:    StatusSuccess,
	}, nil
}

func NewGatewayFromConfig(cfg config.Config) (Gateway, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.DisbursementMode))
	if mode == "" || mode == "stub" {
		return NewStubGateway(), nil
	}
	if mode != "real" {
		return nil, fmt.Errorf("invalid DISBURSEMENT_MODE: %s", cfg.DisbursementMode)
	}
	return NewHTTPGateway(cfg.DisbursementURL, cfg.DisbursementAPIKey)
}
