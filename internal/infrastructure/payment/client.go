// Package payment talks to the hosted checkout provider.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/natours/booking-api/internal/core/domain"
)

const (
	sessionsPath   = "/v1/checkout/sessions"
	requestTimeout = 15 * time.Second
	maxErrorBody   = 4 << 10
)

// Config holds the provider credentials.
type Config struct {
	BaseURL       string
	SecretKey     string
	WebhookSecret string
}

// Client implements ports.PaymentGateway over the provider's JSON API.
type Client struct {
	cfg    Config
	http   *http.Client
	window time.Duration
	now    func() time.Time
	newKey func() string
}

func NewClient(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:    cfg,
		http:   httpClient,
		window: DefaultReplayWindow,
		now:    time.Now,
		newKey: func() string { return uuid.NewString() },
	}
}

type productData struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Images      []string `json:"images,omitempty"`
}

type priceData struct {
	Currency    string      `json:"currency"`
	UnitAmount  int64       `json:"unit_amount"`
	ProductData productData `json:"product_data"`
}

type lineItem struct {
	PriceData priceData `json:"price_data"`
	Quantity  int       `json:"quantity"`
}

type sessionRequest struct {
	Mode               string     `json:"mode"`
	PaymentMethodTypes []string   `json:"payment_method_types"`
	SuccessURL         string     `json:"success_url"`
	CancelURL          string     `json:"cancel_url"`
	CustomerEmail      string     `json:"customer_email"`
	ClientReferenceID  string     `json:"client_reference_id"`
	LineItems          []lineItem `json:"line_items"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// CreateCheckoutSession opens a hosted payment page for one item.
func (c *Client) CreateCheckoutSession(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutSession, error) {
	body := sessionRequest{
		Mode:               "payment",
		PaymentMethodTypes: []string{"card"},
		SuccessURL:         req.SuccessURL,
		CancelURL:          req.CancelURL,
		CustomerEmail:      req.CustomerEmail,
		ClientReferenceID:  req.TourID,
		LineItems: []lineItem{{
			Quantity: 1,
			PriceData: priceData{
				Currency:   req.Currency,
				UnitAmount: req.AmountCents,
				ProductData: productData{
					Name:        req.TourName,
					Description: req.Description,
				},
			},
		}},
	}
	if req.ImageURL != "" {
		body.LineItems[0].PriceData.ProductData.Images = []string{req.ImageURL}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode checkout session: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+sessionsPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build checkout request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.SecretKey)
	httpReq.Header.Set("Idempotency-Key", c.newKey())

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("checkout request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var apiErr apiError
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("checkout provider: %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("checkout provider: unexpected status %d", resp.StatusCode)
	}

	var session domain.CheckoutSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}
	if session.ID == "" || session.URL == "" {
		return nil, fmt.Errorf("checkout provider: incomplete session")
	}
	return &session, nil
}

type webhookEvent struct {
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID                string `json:"id"`
			ClientReferenceID string `json:"client_reference_id"`
			CustomerEmail     string `json:"customer_email"`
			AmountTotal       int64  `json:"amount_total"`
		} `json:"object"`
	} `json:"data"`
}

// ParseWebhook verifies signature against the webhook secret and only then
// decodes payload.
func (c *Client) ParseWebhook(payload []byte, signature string) (*domain.CheckoutEvent, error) {
	if err := Verify(c.cfg.WebhookSecret, signature, payload, c.now(), c.window); err != nil {
		return nil, err
	}

	var ev webhookEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("decode webhook: %w", err)
	}
	obj := ev.Data.Object
	return &domain.CheckoutEvent{
		Type:              ev.Type,
		SessionID:         obj.ID,
		ClientReferenceID: obj.ClientReferenceID,
		CustomerEmail:     obj.CustomerEmail,
		AmountTotal:       obj.AmountTotal,
	}, nil
}
