package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Error kinds let operators tell "we never called the gateway" from
// "the gateway said no" from "our own code crashed".
type ErrorKind string

const (
	ErrKindConfig       ErrorKind = "CONFIG_ERROR"
	ErrKindBadRequest   ErrorKind = "BAD_REQUEST"
	ErrKindAPIRejection ErrorKind = "MP_API_REJECTION"
	ErrKindLogicCrash   ErrorKind = "LOGIC_CRASH"
)

type GatewayError struct {
	Kind    ErrorKind
	Details string
	Raw     string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("mercadopago %s: %s", e.Kind, e.Details)
}

type Config struct {
	BaseURL     string
	AccessToken string
	Currency    string
	HTTPClient  *http.Client
}

// Client is a thin proxy over the gateway REST API. No retries, no
// backoff: failures propagate as immediate structured errors.
type Client struct {
	baseURL     string
	accessToken string
	currency    string
	httpClient  *http.Client
	now         func() time.Time
}

func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	currency := strings.TrimSpace(cfg.Currency)
	if currency == "" {
		currency = "ARS"
	}

	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		accessToken: cfg.AccessToken,
		currency:    currency,
		httpClient:  httpClient,
		now:         time.Now,
	}
}

type BackURLs struct {
	Success string `json:"success"`
	Failure string `json:"failure"`
	Pending string `json:"pending"`
}

type PreferenceInput struct {
	Title      string
	UnitPrice  decimal.Decimal
	Quantity   int
	SaleID     string
	PayerEmail string
	BackURLs   BackURLs
}

// CreatePreference registers a one-time payable item and returns the
// redirect URL (init_point). The sale id travels as external_reference
// and comes back on payments and webhooks.
func (c *Client) CreatePreference(ctx context.Context, in PreferenceInput) (string, error) {
	if strings.TrimSpace(c.accessToken) == "" {
		return "", &GatewayError{Kind: ErrKindConfig, Details: "gateway access token is not configured"}
	}
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.SaleID) == "" || !in.UnitPrice.IsPositive() {
		return "", &GatewayError{Kind: ErrKindBadRequest, Details: "invalid preference payload"}
	}
	quantity := in.Quantity
	if quantity <= 0 {
		quantity = 1
	}

	body := map[string]any{
		"items": []map[string]any{
			{
				"title":       in.Title,
				"quantity":    quantity,
				"unit_price":  in.UnitPrice.InexactFloat64(),
				"currency_id": c.currency,
			},
		},
		"external_reference": in.SaleID,
		"back_urls":          in.BackURLs,
		"auto_return":        "approved",
	}
	if strings.TrimSpace(in.PayerEmail) != "" {
		body["payer"] = map[string]any{"email": in.PayerEmail}
	}

	var resp struct {
		InitPoint string `json:"init_point"`
	}
	if err := c.post(ctx, "/checkout/preferences", body, &resp); err != nil {
		return "", err
	}
	if resp.InitPoint == "" {
		return "", &GatewayError{Kind: ErrKindAPIRejection, Details: "preference response has no init_point"}
	}

	return resp.InitPoint, nil
}

type SubscriptionInput struct {
	Reason     string
	Amount     decimal.Decimal
	SaleID     string
	PayerEmail string
	BackURL    string
}

type SubscriptionResult struct {
	InitPoint        string
	SandboxInitPoint string
}

// CreateSubscription registers a monthly preapproval starting 30 days out.
func (c *Client) CreateSubscription(ctx context.Context, in SubscriptionInput) (SubscriptionResult, error) {
	if strings.TrimSpace(c.accessToken) == "" {
		return SubscriptionResult{}, &GatewayError{Kind: ErrKindConfig, Details: "gateway access token is not configured"}
	}
	if strings.TrimSpace(in.SaleID) == "" || strings.TrimSpace(in.PayerEmail) == "" || !in.Amount.IsPositive() {
		return SubscriptionResult{}, &GatewayError{Kind: ErrKindBadRequest, Details: "invalid subscription payload"}
	}

	startDate := c.now().UTC().Add(30 * 24 * time.Hour).Truncate(time.Second)

	body := map[string]any{
		"reason":             in.Reason,
		"external_reference": in.SaleID,
		"payer_email":        in.PayerEmail,
		"auto_recurring": map[string]any{
			"frequency":          1,
			"frequency_type":     "months",
			"transaction_amount": in.Amount.InexactFloat64(),
			"currency_id":        c.currency,
			"start_date":         startDate.Format("2006-01-02T15:04:05.000Z07:00"),
		},
		"back_url": in.BackURL,
		"status":   "pending",
	}

	var resp struct {
		InitPoint        string `json:"init_point"`
		SandboxInitPoint string `json:"sandbox_init_point"`
	}
	if err := c.post(ctx, "/preapproval", body, &resp); err != nil {
		return SubscriptionResult{}, err
	}
	if resp.InitPoint == "" && resp.SandboxInitPoint == "" {
		return SubscriptionResult{}, &GatewayError{Kind: ErrKindAPIRejection, Details: "preapproval response has no init point"}
	}

	return SubscriptionResult{
		InitPoint:        resp.InitPoint,
		SandboxInitPoint: resp.SandboxInitPoint,
	}, nil
}

type PaymentInfo struct {
	ID                string `json:"id"`
	Status            string `json:"status"`
	ExternalReference string `json:"external_reference"`
}

func (c *Client) GetPayment(ctx context.Context, paymentID string) (PaymentInfo, error) {
	var info struct {
		ID                json.Number `json:"id"`
		Status            string      `json:"status"`
		ExternalReference string      `json:"external_reference"`
	}
	if err := c.get(ctx, "/v1/payments/"+paymentID, &info); err != nil {
		return PaymentInfo{}, err
	}
	return PaymentInfo{
		ID:                info.ID.String(),
		Status:            info.Status,
		ExternalReference: info.ExternalReference,
	}, nil
}

type PreapprovalInfo struct {
	ID                string `json:"id"`
	Status            string `json:"status"`
	ExternalReference string `json:"external_reference"`
}

func (c *Client) GetPreapproval(ctx context.Context, preapprovalID string) (PreapprovalInfo, error) {
	var info PreapprovalInfo
	if err := c.get(ctx, "/preapproval/"+preapprovalID, &info); err != nil {
		return PreapprovalInfo{}, err
	}
	return info, nil
}

func (c *Client) post(ctx context.Context, path string, body any, target any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return &GatewayError{Kind: ErrKindLogicCrash, Details: fmt.Sprintf("marshal request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return &GatewayError{Kind: ErrKindLogicCrash, Details: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	return c.do(req, target)
}

func (c *Client) get(ctx context.Context, path string, target any) error {
	if strings.TrimSpace(c.accessToken) == "" {
		return &GatewayError{Kind: ErrKindConfig, Details: "gateway access token is not configured"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return &GatewayError{Kind: ErrKindLogicCrash, Details: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	return c.do(req, target)
}

func (c *Client) do(req *http.Request, target any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &GatewayError{Kind: ErrKindAPIRejection, Details: fmt.Sprintf("gateway request failed: %v", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &GatewayError{Kind: ErrKindLogicCrash, Details: fmt.Sprintf("read gateway response: %v", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &GatewayError{
			Kind:    ErrKindAPIRejection,
			Details: fmt.Sprintf("gateway returned status %d", resp.StatusCode),
			Raw:     string(raw),
		}
	}

	if target == nil {
		return nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return &GatewayError{Kind: ErrKindLogicCrash, Details: fmt.Sprintf("decode gateway response: %v", err), Raw: string(raw)}
	}

	return nil
}
