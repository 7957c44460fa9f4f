package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"assembliestore-be/internal/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const stripeBaseURL = "https://api.stripe.com"

type stripeGateway struct {
	apiKey        string
	webhookSecret string
	httpClient    *http.Client
	successURL    string
	cancelURL     string
}

type StripeConfig struct {
	APIKey        string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
}

func NewStripeGateway(cfg StripeConfig) Gateway {
	if cfg.APIKey == "" {
		logger.L().Warn("Stripe API key is empty")
	}
	if cfg.WebhookSecret == "" {
		logger.L().Warn("Stripe webhook secret is empty, webhook verification will fail")
	}

	return &stripeGateway{
		apiKey:        cfg.APIKey,
		webhookSecret: cfg.WebhookSecret,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
	}
}

// ----------------- CreateCheckoutSession -----------------

func (g *stripeGateway) CreateCheckoutSession(
	ctx context.Context,
	orderID string,
	amount decimal.Decimal,
	currency string,
) (*CheckoutSession, error) {

	log := logger.L().With(
		zap.String("order_id", orderID),
		zap.String("amount", amount.String()),
		zap.String("currency", currency),
	)

	// Stripe wants the amount in the currency's smallest unit.
	cents := amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", g.successURL+"?session_id={CHECKOUT_SESSION_ID}")
	form.Set("cancel_url", g.cancelURL)
	form.Set("metadata[order_id]", orderID)
	form.Set("line_items[0][price_data][currency]", currency)
	form.Set("line_items[0][price_data][product_data][name]", "Order Payment")
	form.Set("line_items[0][price_data][unit_amount]", fmt.Sprintf("%d", cents))
	form.Set("line_items[0][quantity]", "1")

	req, err := http.NewRequestWithContext(ctx, "POST",
		stripeBaseURL+"/v1/checkout/sessions", strings.NewReader(form.Encode()))
	if err != nil {
		log.Error("Failed creating request", zap.Error(err))
		return nil, err
	}

	req.SetBasicAuth(g.apiKey, "")
	req.Header.Add("Content-Type", "application/x-www-form-urlencoded")

	log.Info("Creating Stripe checkout session")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		log.Error("Stripe request failed", zap.Error(err))
		return nil, err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Error("Failed to read response body", zap.Error(err))
		return nil, fmt.Errorf("failed to read stripe response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		log.Error("Stripe returned non-success status",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", bodyBytes),
		)
		return nil, fmt.Errorf("stripe error: %s", string(bodyBytes))
	}

	var res struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := json.Unmarshal(bodyBytes, &res); err != nil {
		log.Error("Failed decoding Stripe response", zap.Error(err))
		return nil, err
	}

	log.Info("Stripe checkout session created", zap.String("session_id", res.ID))

	return &CheckoutSession{
		SessionID: res.ID,
		URL:       res.URL,
	}, nil
}

// ----------------- VerifyWebhook -----------------

func (g *stripeGateway) VerifyWebhook(payload []byte, sigHeader string) (*Event, error) {
	if err := verifySignature(payload, sigHeader, g.webhookSecret, time.Now()); err != nil {
		return nil, err
	}

	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if event.Type == "" {
		return nil, ErrMalformedEvent
	}
	return &event, nil
}
