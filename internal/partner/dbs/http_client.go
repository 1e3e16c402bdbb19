package dbs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const applicationPath = "/unsecured-loans/v1/applications"

type HTTPClient struct {
	baseURL    string
	apiKey     string
	orgID      string
	cipher     *Cipher
	httpClient *http.Client
	now        func() time.Time
}

func NewHTTPClient(baseURL, apiKey, orgID string, c *Cipher) (*HTTPClient, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("missing DBS_BASE_URL")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("missing DBS_API_KEY")
	}
	if c == nil {
		return nil, fmt.Errorf("missing dbs cipher")
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     strings.TrimSpace(apiKey),
		orgID:      orgID,
		cipher:     c,
		httpClient: &http.Client{Timeout: 20 * time.Second},
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

func (h *HTTPClient) SubmitApplication(ctx context.Context, app Application) (string, error) {
	if strings.TrimSpace(app.LoanID) == "" {
		return "", fmt.Errorf("missing loan id")
	}
	plain, err := MarshalEnvelope(h.orgID, map[string]any{"loanApplicationRequest": app}, h.now())
	if err != nil {
		return "", err
	}
	sealed, err := h.cipher.Encrypt(plain)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+applicationPath, strings.NewReader(sealed))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("X-Api-Key", h.apiKey)
	req.Header.Set("X-Dbs-Org-Id", h.orgID)
	req.Header.Set("X-Signature", h.cipher.Sign([]byte(sealed)))

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("dbs application http %d", resp.StatusCode)
	}
	if err := h.cipher.Verify(body, resp.Header.Get("X-Signature")); err != nil {
		return "", err
	}
	decoded, err := h.cipher.Decrypt(string(body))
	if err != nil {
		return "", err
	}

	result := gjson.ParseBytes(decoded)
	if status := result.Get("data.loanApplicationResponse.receiptStatus").String(); status != ReceiptAccepted {
		return "", fmt.Errorf("dbs rejected application: %s %s", status,
			result.Get("data.loanApplicationResponse.errorList.0.description").String())
	}
	applicationID := result.Get("data.loanApplicationResponse.applicationId").String()
	if applicationID == "" {
		return "", fmt.Errorf("dbs response missing application id")
	}
	return applicationID, nil
}
