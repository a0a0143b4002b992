package mpesa

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(Config{
		Environment:       "sandbox",
		ConsumerKey:       "key",
		ConsumerSecret:    "secret",
		BusinessShortcode: "174379",
		Passkey:           "passkey",
		CallbackURL:       "https://example.com/callback",
		Timeout:           5 * time.Second,
	}, nil)
	c.baseURL = srv.URL
	return c
}

func TestAuthenticate_CachesToken(t *testing.T) {
	var calls int
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-1", "expires_in": "3599"})
	}))

	for i := 0; i < 3; i++ {
		token, err := c.Authenticate(context.Background())
		if err != nil {
			t.Fatalf("Authenticate: %v", err)
		}
		if token != "tok-1" {
			t.Errorf("token = %q", token)
		}
	}
	if calls != 1 {
		t.Errorf("expected 1 token fetch, got %d", calls)
	}
}

func TestAuthenticate_BadCredentials(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	if _, err := c.Authenticate(context.Background()); !errors.Is(err, ErrAuthFailed) {
		t.Errorf("expected ErrAuthFailed, got %v", err)
	}
}

func TestSTKPush_Accepted(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/v1/generate" {
			json.NewEncoder(w).Encode(map[string]string{"access_token": "tok", "expires_in": "3599"})
			return
		}

		var req stkPushRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode push request: %v", err)
		}
		if req.Amount != "1500" {
			t.Errorf("amount = %q, want whole shillings", req.Amount)
		}
		if req.PhoneNumber != "254712345678" {
			t.Errorf("phone = %q", req.PhoneNumber)
		}

		json.NewEncoder(w).Encode(stkPushResponse{
			MerchantRequestID:   "mr-1",
			CheckoutRequestID:   "ws_CO_1",
			ResponseCode:        "0",
			ResponseDescription: "Success",
			CustomerMessage:     "Success. Request accepted for processing",
		})
	}))

	res, err := c.STKPush(context.Background(), "254712345678", 150000, "MJL-20250101-ABCD1234", "Milestone payment")
	if err != nil {
		t.Fatalf("STKPush: %v", err)
	}
	if !res.Accepted {
		t.Error("expected accepted")
	}
	if res.CheckoutRequestID != "ws_CO_1" {
		t.Errorf("checkout id = %q", res.CheckoutRequestID)
	}
}

func TestSTKPush_GatewayDown(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/v1/generate" {
			json.NewEncoder(w).Encode(map[string]string{"access_token": "tok", "expires_in": "3599"})
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	_, err := c.STKPush(context.Background(), "254712345678", 150000, "ref", "desc")
	if !errors.Is(err, ErrGatewayUnavailable) {
		t.Errorf("expected ErrGatewayUnavailable, got %v", err)
	}
	if !IsTransient(err) {
		t.Error("5xx should be transient")
	}
}

func TestQueryStatus(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/v1/generate" {
			json.NewEncoder(w).Encode(map[string]string{"access_token": "tok", "expires_in": "3599"})
			return
		}
		json.NewEncoder(w).Encode(statusQueryResponse{
			ResponseCode: "0",
			ResultCode:   "1032",
			ResultDesc:   "Request cancelled by user",
		})
	}))

	res, err := c.QueryStatus(context.Background(), "ws_CO_1")
	if err != nil {
		t.Fatalf("QueryStatus: %v", err)
	}
	if res.ResultCode != 1032 {
		t.Errorf("result code = %d", res.ResultCode)
	}
}
