package dbs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/julo/lendcore/internal/config"
)

type Application struct {
	LoanID                 string `json:"loanId"`
	LoanXID                int64  `json:"loanXid"`
	CustomerID             string `json:"customerId"`
	LoanAmount             int64  `json:"loanAmount"`
	DisbursementAmount     int64  `json:"disbursementAmount"`
	InstallmentAmount      int64  `json:"installmentAmount"`
	DurationMonths         int32  `json:"tenure"`
	InterestRateMonthlyBPS int32  `json:"interestRateMonthlyBps"`
}

type Client interface {
	// SubmitApplication sends a loan application and returns the application
	// id DBS will reference in its status callback.
	SubmitApplication(ctx context.Context, app Application) (string, error)
}

type StubClient struct{}

func NewStubClient() *StubClient {
	return &StubClient{}
}

func (c *StubClient) SubmitApplication(_ context.Context, app Application) (string, error) {
	if strings.TrimSpace(app.LoanID) == "" {
		return "", fmt.Errorf("missing loan id")
	}
	return fmt.Sprintf("DBS-STUB-%d-%x", app.LoanXID, time.Now().UTC().UnixNano()), nil
}

func NewClientFromConfig(cfg config.Config, c *Cipher) (Client, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.DBSMode))
	if mode == "" || mode == "stub" {
		return NewStubClient(), nil
	}
	if mode != "real" {
		return nil, fmt.Errorf("invalid DBS_MODE: %s", cfg.DBSMode)
	}
	return NewHTTPClient(cfg.DBSBaseURL, cfg.DBSAPIKey, cfg.DBSOrgID, c)
}
