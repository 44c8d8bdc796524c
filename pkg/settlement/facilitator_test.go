package settlement

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func settleRequest() Request {
	return Request{
		IntentID:    "intent-1",
		Owner:       "0xOwner",
		Token:       "0xToken",
		Amount:      "1000000",
		Recipient:   "0xRecipient",
		PaymentAuth: "0xauth",
	}
}

// facilitatorStub serves /verify and /settle with canned responses and
// records the request bodies it saw.
type facilitatorStub struct {
	verify   VerifyResponse
	settle   SettleResponse
	verifies []VerifyRequest
	settles  []SettleRequest
}

func (f *facilitatorStub) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/verify", func(w http.ResponseWriter, r *http.Request) {
		var req VerifyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		f.verifies = append(f.verifies, req)
		_ = json.NewEncoder(w).Encode(f.verify)
	})
	mux.HandleFunc("/settle", func(w http.ResponseWriter, r *http.Request) {
		var req SettleRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		f.settles = append(f.settles, req)
		_ = json.NewEncoder(w).Encode(f.settle)
	})
	return mux
}

func newClient(url string) *FacilitatorClient {
	return NewFacilitatorClient(&FacilitatorConfig{
		URL:             url,
		Network:         "cronos-testnet",
		CustodialSigner: "0xSigner",
	})
}

func TestSettleSuccess(t *testing.T) {
	stub := &facilitatorStub{
		verify: VerifyResponse{IsValid: true, Payer: "0xOwner"},
		settle: SettleResponse{Success: true, Transaction: "0xtxhash", Network: "cronos-testnet"},
	}
	srv := httptest.NewServer(stub.handler(t))
	defer srv.Close()

	ref, err := newClient(srv.URL).Settle(context.Background(), settleRequest())
	require.NoError(t, err)
	assert.Equal(t, "0xtxhash", ref)

	// Verify runs before settle, both with the same requirements.
	require.Len(t, stub.verifies, 1)
	require.Len(t, stub.settles, 1)
	reqs := stub.verifies[0].PaymentRequirements
	assert.Equal(t, "exact", reqs.Scheme)
	assert.Equal(t, "0xToken", reqs.Asset)
	assert.Equal(t, "0xRecipient", reqs.PayTo)
	assert.Equal(t, "1000000", reqs.MaxAmountRequired)
	assert.Equal(t, reqs, stub.settles[0].PaymentRequirements)
}

func TestSettleVerificationRejected(t *testing.T) {
	stub := &facilitatorStub{
		verify: VerifyResponse{IsValid: false, InvalidReason: "insufficient allowance"},
	}
	srv := httptest.NewServer(stub.handler(t))
	defer srv.Close()

	_, err := newClient(srv.URL).Settle(context.Background(), settleRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient allowance")

	// A rejected verification never reaches /settle.
	assert.Empty(t, stub.settles)
}

func TestSettleFailure(t *testing.T) {
	stub := &facilitatorStub{
		verify: VerifyResponse{IsValid: true},
		settle: SettleResponse{Success: false, ErrorReason: "transfer reverted"},
	}
	srv := httptest.NewServer(stub.handler(t))
	defer srv.Close()

	_, err := newClient(srv.URL).Settle(context.Background(), settleRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transfer reverted")
}

func TestSettleMissingTransactionRef(t *testing.T) {
	stub := &facilitatorStub{
		verify: VerifyResponse{IsValid: true},
		settle: SettleResponse{Success: true, Transaction: ""},
	}
	srv := httptest.NewServer(stub.handler(t))
	defer srv.Close()

	_, err := newClient(srv.URL).Settle(context.Background(), settleRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no settlement reference")
}

func TestSettleHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newClient(srv.URL).Settle(context.Background(), settleRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status code 500")
}

func TestSettleDecentralizedPayload(t *testing.T) {
	stub := &facilitatorStub{
		verify: VerifyResponse{IsValid: true},
		settle: SettleResponse{Success: true, Transaction: "0xtx"},
	}
	srv := httptest.NewServer(stub.handler(t))
	defer srv.Close()

	_, err := newClient(srv.URL).Settle(context.Background(), settleRequest())
	require.NoError(t, err)

	payload := stub.verifies[0].PaymentPayload
	assert.Equal(t, "0xauth", payload.PaymentAuth)
	assert.Empty(t, payload.CustodialSigner)
}

func TestSettleCustodialPayload(t *testing.T) {
	stub := &facilitatorStub{
		verify: VerifyResponse{IsValid: true},
		settle: SettleResponse{Success: true, Transaction: "0xtx"},
	}
	srv := httptest.NewServer(stub.handler(t))
	defer srv.Close()

	req := settleRequest()
	req.PaymentAuth = ""

	before := time.Now().Unix()
	_, err := newClient(srv.URL).Settle(context.Background(), req)
	require.NoError(t, err)

	payload := stub.verifies[0].PaymentPayload
	assert.Empty(t, payload.PaymentAuth)
	assert.Equal(t, "0xSigner", payload.CustodialSigner)
	// One-shot validity window is ten minutes.
	assert.InDelta(t, before+600, payload.ValidBefore, 5)
}

func TestSettleCustodialRecurringValidity(t *testing.T) {
	stub := &facilitatorStub{
		verify: VerifyResponse{IsValid: true},
		settle: SettleResponse{Success: true, Transaction: "0xtx"},
	}
	srv := httptest.NewServer(stub.handler(t))
	defer srv.Close()

	req := settleRequest()
	req.PaymentAuth = ""
	req.Recurring = true

	before := time.Now().Unix()
	_, err := newClient(srv.URL).Settle(context.Background(), req)
	require.NoError(t, err)

	payload := stub.verifies[0].PaymentPayload
	// A recurring credential stays valid for a year of billing cycles.
	assert.InDelta(t, before+365*24*60*60, payload.ValidBefore, 5)
}

func TestSettleContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The server only watches for client disconnects (which cancel
		// r.Context()) once the request body has been consumed.
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newClient(srv.URL).Settle(ctx, settleRequest())
	require.Error(t, err)
}
