package payment_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/starpro23/MjengoLink-Constructors/internal/domain/payment"
	"github.com/starpro23/MjengoLink-Constructors/internal/pkg/mpesa"
)

const webhookKey = "test-webhook-secret"

func postCallback(t *testing.T, h *payment.Handler, body []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/mpesa/callback", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set("X-MPesa-Signature", signature)
	}
	rec := httptest.NewRecorder()
	h.Webhook(rec, req)
	return rec
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	h := payment.NewHandler(env.payments, nil, webhookKey)

	body := []byte(`{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_000001","ResultCode":0,"ResultDesc":"ok"}}}`)

	rec := postCallback(t, h, body, "deadbeef")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("tampered signature: status = %d, want 400", rec.Code)
	}

	rec = postCallback(t, h, body, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing signature: status = %d, want 400", rec.Code)
	}
}

func TestWebhookAcknowledgesMalformedBody(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	h := payment.NewHandler(env.payments, nil, webhookKey)

	body := []byte(`{"Body":{"stkCallback":{"ResultCode":0}}}`)
	rec := postCallback(t, h, body, mpesa.SignPayload(body, webhookKey))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var ack struct {
		ResultCode int    `json:"ResultCode"`
		Outcome    string `json:"Outcome"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &ack); err != nil {
		t.Fatalf("unmarshal ack: %v", err)
	}
	if ack.ResultCode != 0 {
		t.Errorf("ResultCode = %d, want 0", ack.ResultCode)
	}
	if ack.Outcome != "malformed" {
		t.Errorf("Outcome = %q, want malformed", ack.Outcome)
	}
}

func TestWebhookProcessesSignedCallback(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()
	ctx := context.Background()

	h := payment.NewHandler(env.payments, nil, webhookKey)

	payer := env.createAccount(t, "homeowner", "0712345678")
	recipient := env.createAccount(t, "artisan", "")

	p, err := env.payments.CreateAndDispatch(ctx, payer, payment.CreateInput{
		RecipientID: recipient,
		Amount:      120_000,
		Method:      payment.MethodMobileMoney,
		Type:        payment.TypeDeposit,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	body, ok := env.simulator.Complete(p.GatewayCode, 0, "WBHK001")
	if !ok {
		t.Fatal("simulator lost the push")
	}

	rec := postCallback(t, h, body, mpesa.SignPayload(body, webhookKey))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
	}

	var ack struct {
		ResultCode int    `json:"ResultCode"`
		Outcome    string `json:"Outcome"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &ack); err != nil {
		t.Fatalf("unmarshal ack: %v", err)
	}
	if ack.Outcome != string(payment.OutcomeCompleted) {
		t.Errorf("Outcome = %q, want completed", ack.Outcome)
	}

	p, err = env.payments.Get(ctx, p.ID, payer)
	if err != nil {
		t.Fatalf("get payment failed: %v", err)
	}
	if p.Status != payment.StatusCompleted {
		t.Errorf("status = %s, want completed", p.Status)
	}

	// Redelivery of the same signed body is acknowledged without effect
	rec = postCallback(t, h, body, mpesa.SignPayload(body, webhookKey))
	if rec.Code != http.StatusOK {
		t.Fatalf("redelivery status = %d, want 200", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &ack); err != nil {
		t.Fatalf("unmarshal ack: %v", err)
	}
	if ack.Outcome != string(payment.OutcomeAlreadyTerminal) {
		t.Errorf("redelivery Outcome = %q, want already_terminal", ack.Outcome)
	}
}
