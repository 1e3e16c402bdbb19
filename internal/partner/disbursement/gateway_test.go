package disbursement_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/julo/lendcore/internal/config"
	"github.com/julo/lendcore/internal/partner/disbursement"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStubGateway(t *testing.T) {
	gw, err := disbursement.NewGatewayFromConfig(config.Config{})
	require.NoError(t, err)

	res, err := gw.Disburse(context.Background(), disbursement.Request{LoanID: "loan-1", LoanXID: 1000000001, Amount: 50_000})
	require.NoError(t, err)
	assert.True(t, res.Succeeded())
	assert.Contains(t, res.Reference, "DISB-1000000001")

	_, err = gw.Disburse(context.Background(), disbursement.Request{LoanID: "loan-1"})
	assert.Error(t, err)
}

func TestGatewayFactoryRequiresURLInRealMode(t *testing.T) {
	_, err := disbursement.NewGatewayFromConfig(config.Config{DisbursementMode: "real"})
	assert.Error(t, err)
	_, err = disbursement.NewGatewayFromConfig(config.Config{DisbursementMode: "mock"})
	assert.Error(t, err)
}

func TestHTTPGateway(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req disbursement.Request
		_ = json.NewDecoder(r.Body).Decode(&req)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		assert.Equal(t, req.LoanID, r.Header.Get("Idempotency-Key"))
		status := disbursement.StatusSuccess
		if req.Amount > 1_000_000 {
			status = disbursement.StatusFailed
		}
		_ = json.NewEncoder(w).Encode(disbursement.Result{Reference: "REF-" + req.LoanID, Status: status})
	}))
	defer srv.Close()

	gw, err := disbursement.NewHTTPGateway(srv.URL, "key")
	require.NoError(t, err)

	ok, err := gw.Disburse(context.Background(), disbursement.Request{LoanID: "loan-1", Amount: 100_000})
	require.NoError(t, err)
	assert.Equal(t, "REF-loan-1", ok.Reference)
	assert.True(t, ok.Succeeded())

	failed, err := gw.Disburse(context.Background(), disbursement.Request{LoanID: "loan-2", Amount: 2_000_000})
	require.NoError(t, err)
	assert.False(t, failed.Succeeded())
}
