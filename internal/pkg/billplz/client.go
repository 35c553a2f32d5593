package billplz

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Bosco9119/wms-appi1/internal/pkg/env"
)

const defaultAPIBaseURL = "https://www.billplz-sandbox.com/api/v3"

type Client struct {
	APIKey        string
	XSignatureKey string
	CollectionID  string
	CallbackURL   string
	RedirectURL   string

	APIBaseURL string

	HTTPClient *http.Client
}

// Bill is the gateway-side object returned on bill creation.
type Bill struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CreateBillParams carries the per-bill fields; collection, callback and
// redirect URLs come from the client configuration.
type CreateBillParams struct {
	Email           string
	Mobile          string
	Name            string
	AmountCents     int64
	Description     string
	DueAt           time.Time
	Reference1Label string
	Reference1      string
	Reference2Label string
	Reference2      string
}

func NewClientFromEnv() *Client {
	return &Client{
		APIKey:        strings.TrimSpace(env.GetEnv("BILLPLZ_API_KEY", "")),
		XSignatureKey: strings.TrimSpace(env.GetEnv("BILLPLZ_X_SIGNATURE_KEY", "")),
		CollectionID:  strings.TrimSpace(env.GetEnv("BILLPLZ_COLLECTION_ID", "")),
		CallbackURL:   strings.TrimSpace(env.GetEnv("BILLPLZ_CALLBACK_URL", "")),
		RedirectURL:   strings.TrimSpace(env.GetEnv("BILLPLZ_REDIRECT_URL", "")),
		APIBaseURL:    strings.TrimSpace(env.GetEnv("BILLPLZ_API_BASE_URL", defaultAPIBaseURL)),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// CreateBill creates a bill on the gateway and returns its id and payment URL.
func (c *Client) CreateBill(ctx context.Context, in CreateBillParams) (*Bill, error) {
	if strings.TrimSpace(c.APIKey) == "" {
		return nil, errors.New("BILLPLZ_API_KEY is not configured")
	}
	if strings.TrimSpace(c.CollectionID) == "" {
		return nil, errors.New("BILLPLZ_COLLECTION_ID is not configured")
	}
	if strings.TrimSpace(in.Email) == "" {
		return nil, errors.New("bill email is required")
	}

	payload := map[string]interface{}{
		"collection_id":     c.CollectionID,
		"email":             strings.TrimSpace(in.Email),
		"mobile":            strings.TrimSpace(in.Mobile),
		"name":              strings.TrimSpace(in.Name),
		"amount":            in.AmountCents,
		"description":       strings.TrimSpace(in.Description),
		"callback_url":      c.CallbackURL,
		"redirect_url":      c.RedirectURL,
		"due_at":            in.DueAt.UTC().Format(time.RFC3339),
		"reference_1_label": in.Reference1Label,
		"reference_1":       in.Reference1,
		"reference_2_label": in.Reference2Label,
		"reference_2":       in.Reference2,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	url := strings.TrimRight(c.APIBaseURL, "/") + "/bills"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	// Billplz authenticates with the API key as basic auth username.
	req.SetBasicAuth(c.APIKey, "")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("billplz bill creation failed: status=%d body=%s", resp.StatusCode, string(respBody))
	}

	var out Bill
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.ID) == "" || strings.TrimSpace(out.URL) == "" {
		return nil, errors.New("billplz bill creation returned empty id or url")
	}
	return &out, nil
}
