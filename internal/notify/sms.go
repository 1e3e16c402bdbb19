package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type SMSSender struct {
	baseURL    string
	apiKey     string
	senderID   string
	httpClient *http.Client
}

func NewSMSSender(baseURL, apiKey, senderID string) (*SMSSender, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("missing SMS_BASE_URL")
	}
	return &SMSSender{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     strings.TrimSpace(apiKey),
		senderID:   senderID,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (s *SMSSender) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(map[string]string{
		"from": s.senderID,
		"to":   msg.To,
		"text": msg.Body,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("sms vendor http %d", resp.StatusCode)
	}
	return nil
}
