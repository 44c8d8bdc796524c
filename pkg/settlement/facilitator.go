package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/paystream-hq/paystreamer/pkg/logger"
	"github.com/paystream-hq/paystreamer/pkg/metrics"
)

const (
	// oneShotValiditySeconds bounds a custodial authorization for a single payment.
	oneShotValiditySeconds = 600
	// recurringValiditySeconds bounds a custodial authorization reused across billing cycles.
	recurringValiditySeconds = 365 * 24 * 60 * 60
)

// PaymentRequirements describes what the facilitator must collect.
type PaymentRequirements struct {
	Scheme            string `json:"scheme"`
	Network           string `json:"network"`
	Asset             string `json:"asset"`
	PayTo             string `json:"payTo"`
	MaxAmountRequired string `json:"maxAmountRequired"`
	Description       string `json:"description,omitempty"`
}

// PaymentPayload carries the authorization the facilitator should execute.
type PaymentPayload struct {
	Scheme          string `json:"scheme"`
	Network         string `json:"network"`
	PaymentAuth     string `json:"paymentAuth,omitempty"`
	CustodialSigner string `json:"custodialSigner,omitempty"`
	ValidBefore     int64  `json:"validBefore,omitempty"`
	ValidAfter      int64  `json:"validAfter,omitempty"`
}

// VerifyRequest is the facilitator /verify request body.
type VerifyRequest struct {
	PaymentPayload      PaymentPayload      `json:"paymentPayload"`
	PaymentRequirements PaymentRequirements `json:"paymentRequirements"`
}

// VerifyResponse is the facilitator /verify response body.
type VerifyResponse struct {
	IsValid       bool   `json:"isValid"`
	InvalidReason string `json:"invalidReason,omitempty"`
	Payer         string `json:"payer,omitempty"`
}

// SettleRequest is the facilitator /settle request body.
type SettleRequest struct {
	PaymentPayload      PaymentPayload      `json:"paymentPayload"`
	PaymentRequirements PaymentRequirements `json:"paymentRequirements"`
}

// SettleResponse is the facilitator /settle response body.
type SettleResponse struct {
	Success     bool   `json:"success"`
	ErrorReason string `json:"errorReason,omitempty"`
	Payer       string `json:"payer,omitempty"`
	Transaction string `json:"transaction"`
	Network     string `json:"network,omitempty"`
}

// FacilitatorConfig configures the HTTP facilitator client.
type FacilitatorConfig struct {
	// URL is the base URL of the facilitator service.
	URL string

	// Network is the chain the payments settle on.
	Network string

	// Scheme is the payment scheme requested from the facilitator.
	Scheme string

	// CustodialSigner is the service account used when a request carries
	// no payment authorization.
	CustodialSigner string

	// HTTPClient is the HTTP client to use (optional).
	HTTPClient *http.Client

	// Timeout for requests (optional, defaults to 30s).
	Timeout time.Duration

	// Logger for settlement path events (optional).
	Logger logger.Logger
}

// FacilitatorClient executes payments through a remote facilitator over HTTP.
type FacilitatorClient struct {
	url             string
	network         string
	scheme          string
	custodialSigner string
	httpClient      *http.Client
	logger          logger.Logger
}

var _ Client = (*FacilitatorClient)(nil)

// NewFacilitatorClient creates a new HTTP facilitator client.
func NewFacilitatorClient(config *FacilitatorConfig) *FacilitatorClient {
	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{
			Timeout: timeout,
		}
	}

	scheme := config.Scheme
	if scheme == "" {
		scheme = "exact"
	}

	log := config.Logger
	if log == nil {
		log = &logger.EmptyLogger{}
	}

	return &FacilitatorClient{
		url:             config.URL,
		network:         config.Network,
		scheme:          scheme,
		custodialSigner: config.CustodialSigner,
		httpClient:      httpClient,
		logger:          log,
	}
}

// Settle performs the verify-then-settle two-step for one payment.
func (c *FacilitatorClient) Settle(ctx context.Context, req Request) (string, error) {
	payload := c.buildPayload(req)
	requirements := PaymentRequirements{
		Scheme:            c.scheme,
		Network:           c.network,
		Asset:             req.Token,
		PayTo:             req.Recipient,
		MaxAmountRequired: req.Amount,
		Description:       fmt.Sprintf("Payment intent %s", req.IntentID),
	}

	started := time.Now()

	var verify VerifyResponse
	if err := c.post(ctx, "/verify", VerifyRequest{PaymentPayload: payload, PaymentRequirements: requirements}, &verify); err != nil {
		metrics.SettlementErrors.WithLabelValues("verify").Inc()
		return "", fmt.Errorf("payment verification failed: %v", err)
	}
	if !verify.IsValid {
		metrics.SettlementErrors.WithLabelValues("verify").Inc()
		reason := verify.InvalidReason
		if reason == "" {
			reason = "unknown reason"
		}
		return "", fmt.Errorf("payment verification failed: %s", reason)
	}

	c.logger.DebugWith(logger.Settlement, "Payment for intent %s verified (payer: %s), settling", req.IntentID, verify.Payer)

	var settle SettleResponse
	if err := c.post(ctx, "/settle", SettleRequest{PaymentPayload: payload, PaymentRequirements: requirements}, &settle); err != nil {
		metrics.SettlementErrors.WithLabelValues("settle").Inc()
		return "", fmt.Errorf("payment settlement failed: %v", err)
	}
	if !settle.Success || settle.Transaction == "" {
		metrics.SettlementErrors.WithLabelValues("settle").Inc()
		reason := settle.ErrorReason
		if reason == "" {
			reason = "facilitator returned no settlement reference"
		}
		return "", fmt.Errorf("payment settlement failed: %s", reason)
	}

	metrics.SettlementDuration.Observe(time.Since(started).Seconds())
	c.logger.InfoWith(logger.Settlement, "Payment for intent %s settled: %s", req.IntentID, settle.Transaction)
	return settle.Transaction, nil
}

// buildPayload selects the decentralized or custodial payment path.
func (c *FacilitatorClient) buildPayload(req Request) PaymentPayload {
	payload := PaymentPayload{
		Scheme:  c.scheme,
		Network: c.network,
	}

	if req.PaymentAuth != "" {
		payload.PaymentAuth = req.PaymentAuth
		return payload
	}

	// Custodial fallback: the facilitator debits the service account. A
	// recurring credential stays valid until the next billing cycle.
	validity := int64(oneShotValiditySeconds)
	if req.Recurring {
		validity = recurringValiditySeconds
	}
	payload.CustodialSigner = c.custodialSigner
	payload.ValidAfter = 0
	payload.ValidBefore = time.Now().Unix() + validity
	return payload
}

func (c *FacilitatorClient) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %v", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(raw))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %v", err)
	}
	return nil
}
