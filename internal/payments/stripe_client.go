package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/divinetalks/platform/pkg/logging"
)

var stripeTracer = otel.Tracer("divinetalks.internal.payments.stripe")

// ErrProcessorUnavailable wraps transport-level failures talking to the
// payment processor. Callers surface it as a retryable condition.
var ErrProcessorUnavailable = errors.New("payments: processor unavailable")

// Intent is the subset of a processor payment intent the reconciler needs.
type Intent struct {
	ID           string            `json:"id"`
	Status       string            `json:"status"`
	AmountCents  int64             `json:"amount"`
	Currency     string            `json:"currency"`
	ClientSecret string            `json:"client_secret"`
	Metadata     map[string]string `json:"metadata"`
}

// Succeeded reports whether the processor has captured the charge.
func (i *Intent) Succeeded() bool { return i.Status == "succeeded" }

// Reusable reports whether an open intent can still be presented to the
// customer instead of opening a fresh one.
func (i *Intent) Reusable() bool {
	switch i.Status {
	case "requires_payment_method", "requires_confirmation", "requires_action", "processing":
		return true
	}
	return false
}

// IntentClient is the processor surface the reconciler depends on.
type IntentClient interface {
	CreateIntent(ctx context.Context, amountCents int64, currency, description string, metadata map[string]string) (*Intent, error)
	GetIntent(ctx context.Context, id string) (*Intent, error)
}

// StripeClient talks to the Stripe Payment Intents API over its
// form-encoded HTTP surface.
type StripeClient struct {
	secretKey  string
	baseURL    string
	apiVersion string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewStripeClient creates a Stripe payment intents client.
func NewStripeClient(secretKey string, logger *logging.Logger) *StripeClient {
	if logger == nil {
		logger = logging.Default()
	}
	return &StripeClient{
		secretKey:  secretKey,
		baseURL:    "https://api.stripe.com",
		apiVersion: "2024-12-18.acacia",
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// WithBaseURL overrides the Stripe API base URL (for testing).
func (c *StripeClient) WithBaseURL(baseURL string) *StripeClient {
	if baseURL != "" {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
	return c
}

// CreateIntent opens a payment intent for the given amount.
func (c *StripeClient) CreateIntent(ctx context.Context, amountCents int64, currency, description string, metadata map[string]string) (*Intent, error) {
	ctx, span := stripeTracer.Start(ctx, "stripe.create_payment_intent")
	defer span.End()
	span.SetAttributes(attribute.Int64("divinetalks.amount_cents", amountCents))

	form := url.Values{}
	form.Set("amount", fmt.Sprintf("%d", amountCents))
	form.Set("currency", currency)
	form.Set("automatic_payment_methods[enabled]", "true")
	if description != "" {
		form.Set("description", description)
	}
	for k, v := range metadata {
		form.Set(fmt.Sprintf("metadata[%s]", k), v)
	}

	return c.do(ctx, http.MethodPost, "/v1/payment_intents", strings.NewReader(form.Encode()))
}

// GetIntent retrieves a payment intent from the processor. This is the
// authoritative read: client-reported success is never trusted without it.
func (c *StripeClient) GetIntent(ctx context.Context, id string) (*Intent, error) {
	ctx, span := stripeTracer.Start(ctx, "stripe.get_payment_intent")
	defer span.End()
	span.SetAttributes(attribute.String("divinetalks.intent_id", id))

	return c.do(ctx, http.MethodGet, "/v1/payment_intents/"+url.PathEscape(id), nil)
}

func (c *StripeClient) do(ctx context.Context, method, path string, body io.Reader) (*Intent, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("payments: stripe request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Stripe-Version", c.apiVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProcessorUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: status %d", ErrProcessorUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("payments: stripe api status %d: %s", resp.StatusCode, string(data))
	}

	var intent Intent
	if err := json.NewDecoder(resp.Body).Decode(&intent); err != nil {
		return nil, fmt.Errorf("payments: stripe decode: %w", err)
	}
	if intent.ID == "" {
		return nil, fmt.Errorf("payments: stripe response missing intent id")
	}
	return &intent, nil
}
