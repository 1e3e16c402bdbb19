package disbursement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type HTTPGateway struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

func NewHTTPGateway(url, apiKey string) (*HTTPGateway, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("missing DISBURSEMENT_URL")
	}
	return &HTTPGateway{
		url:        strings.TrimSpace(url),
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (g *HTTPGateway) Disburse(ctx context.Context, req Request) (Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Result{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.LoanID)
	if g.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return Result{}, fmt.Errorf("disbursement gateway http %d", resp.StatusCode)
	}
	var out Result
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{}, err
	}
	if out.Status != StatusSuccess && out.Status != StatusFailed {
		return Result{}, fmt.Errorf("disbursement gateway returned status %q", out.Status)
	}
	return out, nil
}
