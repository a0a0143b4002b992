package mpesa

import (
	"errors"
	"testing"
)

func TestParseCallback_Success(t *testing.T) {
	body := []byte(`{"Body":{"stkCallback":{"MerchantRequestID":"29115-34620561-1","CheckoutRequestID":"ws_CO_191220191120363925","ResultCode":0,"ResultDesc":"The service request is processed successfully.","CallbackMetadata":{"Item":[{"Name":"Amount","Value":1500.00},{"Name":"MpesaReceiptNumber","Value":"NLJ7RT61SV"},{"Name":"TransactionDate","Value":20191219102115},{"Name":"PhoneNumber","Value":254708374149}]}}}}`)

	cb, err := ParseCallback(body)
	if err != nil {
		t.Fatalf("ParseCallback: %v", err)
	}

	if !cb.Success() {
		t.Error("expected success")
	}
	if cb.CheckoutRequestID != "ws_CO_191220191120363925" {
		t.Errorf("unexpected checkout id: %s", cb.CheckoutRequestID)
	}
	if cb.AmountCents != 150000 {
		t.Errorf("amount = %d, want 150000", cb.AmountCents)
	}
	if cb.ReceiptNumber != "NLJ7RT61SV" {
		t.Errorf("receipt = %s", cb.ReceiptNumber)
	}
	if cb.PhoneNumber != "254708374149" {
		t.Errorf("phone = %s", cb.PhoneNumber)
	}
}

func TestParseCallback_Cancelled(t *testing.T) {
	body := []byte(`{"Body":{"stkCallback":{"MerchantRequestID":"29115-34620561-1","CheckoutRequestID":"ws_CO_191220191120363925","ResultCode":1032,"ResultDesc":"Request cancelled by user"}}}`)

	cb, err := ParseCallback(body)
	if err != nil {
		t.Fatalf("ParseCallback: %v", err)
	}
	if cb.Success() {
		t.Error("expected failure")
	}
	if cb.ResultCode != 1032 {
		t.Errorf("result code = %d", cb.ResultCode)
	}
	if cb.AmountCents != 0 || cb.ReceiptNumber != "" {
		t.Error("failure callback should carry no metadata")
	}
}

func TestParseCallback_Malformed(t *testing.T) {
	for _, body := range []string{
		`not json`,
		`{}`,
		`{"Body":{}}`,
		`{"Body":{"stkCallback":{"ResultCode":0}}}`,
	} {
		if _, err := ParseCallback([]byte(body)); !errors.Is(err, ErrMalformedCallback) {
			t.Errorf("body %q: expected ErrMalformedCallback, got %v", body, err)
		}
	}
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_1"}}}`)
	key := "test-validation-key"

	sig := SignPayload(body, key)
	if !VerifySignature(body, sig, key) {
		t.Error("valid signature rejected")
	}
	if VerifySignature(body, "deadbeef", key) {
		t.Error("invalid signature accepted")
	}
	if VerifySignature([]byte("tampered"), sig, key) {
		t.Error("tampered body accepted")
	}
	if !VerifySignature(body, "", "") {
		t.Error("empty key should disable verification")
	}
}
