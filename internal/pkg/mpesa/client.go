package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	sandboxBaseURL    = "https://sandbox.safaricom.co.ke"
	productionBaseURL = "https://api.safaricom.co.ke"

	tokenCacheKey = "mpesa:access_token"
	// Daraja tokens live for one hour; refresh after 50 minutes.
	tokenCacheTTL = 50 * time.Minute
)

var (
	// ErrGatewayUnavailable marks transient failures (timeout, 5xx). The
	// payment stays retryable.
	ErrGatewayUnavailable = errors.New("mpesa gateway unavailable")
	// ErrAuthFailed marks a permanent credential problem.
	ErrAuthFailed = errors.New("mpesa authentication failed")
	// ErrRequestRejected marks a request the gateway refused outright.
	ErrRequestRejected = errors.New("mpesa request rejected")
)

// Config holds Daraja API configuration
type Config struct {
	Environment       string // sandbox or production
	ConsumerKey       string
	ConsumerSecret    string
	BusinessShortcode string
	Passkey           string
	CallbackURL       string
	Timeout           time.Duration
}

// Client talks to the Safaricom Daraja API
type Client struct {
	httpClient *http.Client
	config     Config
	baseURL    string

	// Token cache: Redis when available, in-process otherwise
	redis       *redis.Client
	mu          sync.Mutex
	cachedToken string
	tokenExpiry time.Time
}

// PushResult is the outcome of an STK push request
type PushResult struct {
	CheckoutRequestID string
	MerchantRequestID string
	Accepted          bool
	Message           string
}

// StatusResult is the outcome of a transaction status query
type StatusResult struct {
	ResultCode int
	ResultDesc string
}

// NewClient creates a new Daraja client. redisClient may be nil; the access
// token is then cached in process memory only.
func NewClient(cfg Config, redisClient *redis.Client) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	baseURL := sandboxBaseURL
	if cfg.Environment == "production" {
		baseURL = productionBaseURL
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		config:     cfg,
		baseURL:    baseURL,
		redis:      redisClient,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

// Authenticate returns a valid OAuth access token, fetching a new one only
// when the cached token is near expiry.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	if token := c.cachedAccessToken(ctx); token != "" {
		return token, nil
	}

	url := c.baseURL + "/oauth/v1/generate?grant_type=client_credentials"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	auth := base64.StdEncoding.EncodeToString([]byte(c.config.ConsumerKey + ":" + c.config.ConsumerSecret))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", fmt.Errorf("%w: status %d", ErrAuthFailed, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status %d", ErrGatewayUnavailable, resp.StatusCode)
	}

	var out tokenResponse
	if err := json.Unmarshal(body, &out); err != nil || out.AccessToken == "" {
		return "", fmt.Errorf("%w: unparseable token response", ErrAuthFailed)
	}

	c.storeAccessToken(ctx, out.AccessToken)
	return out.AccessToken, nil
}

func (c *Client) cachedAccessToken(ctx context.Context) string {
	if c.redis != nil {
		token, err := c.redis.Get(ctx, tokenCacheKey).Result()
		if err == nil && token != "" {
			return token
		}
		return ""
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cachedToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.cachedToken
	}
	return ""
}

func (c *Client) storeAccessToken(ctx context.Context, token string) {
	if c.redis != nil {
		if err := c.redis.Set(ctx, tokenCacheKey, token, tokenCacheTTL).Err(); err != nil {
			log.Warn().Err(err).Msg("Failed to cache mpesa token in redis")
		}
		return
	}

	c.mu.Lock()
	c.cachedToken = token
	c.tokenExpiry = time.Now().Add(tokenCacheTTL)
	c.mu.Unlock()
}

// generatePassword builds the STK push password: base64(shortcode+passkey+timestamp)
func (c *Client) generatePassword(timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(c.config.BusinessShortcode + c.config.Passkey + timestamp))
}

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            string `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// STKPush initiates a customer-to-business push payment. amountCents is
// converted to whole shillings; Daraja does not accept fractional amounts.
func (c *Client) STKPush(ctx context.Context, phone string, amountCents int64, reference, description string) (*PushResult, error) {
	token, err := c.Authenticate(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := time.Now().Format("20060102150405")
	payload := stkPushRequest{
		BusinessShortCode: c.config.BusinessShortcode,
		Password:          c.generatePassword(timestamp),
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            strconv.FormatInt(amountCents/100, 10),
		PartyA:            phone,
		PartyB:            c.config.BusinessShortcode,
		PhoneNumber:       phone,
		CallBackURL:       c.config.CallbackURL,
		AccountReference:  reference,
		TransactionDesc:   truncate(description, 100),
	}

	var out stkPushResponse
	if err := c.post(ctx, "/mpesa/stkpush/v1/processrequest", token, payload, &out); err != nil {
		return nil, err
	}

	if out.ResponseCode != "0" {
		return &PushResult{
			Accepted: false,
			Message:  out.ResponseDescription,
		}, nil
	}

	return &PushResult{
		CheckoutRequestID: out.CheckoutRequestID,
		MerchantRequestID: out.MerchantRequestID,
		Accepted:          true,
		Message:           out.CustomerMessage,
	}, nil
}

type statusQueryRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

type statusQueryResponse struct {
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	ResultCode          string `json:"ResultCode"`
	ResultDesc          string `json:"ResultDesc"`
}

// QueryStatus checks the state of a previously submitted STK push
func (c *Client) QueryStatus(ctx context.Context, checkoutRequestID string) (*StatusResult, error) {
	token, err := c.Authenticate(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := time.Now().Format("20060102150405")
	payload := statusQueryRequest{
		BusinessShortCode: c.config.BusinessShortcode,
		Password:          c.generatePassword(timestamp),
		Timestamp:         timestamp,
		CheckoutRequestID: checkoutRequestID,
	}

	var out statusQueryResponse
	if err := c.post(ctx, "/mpesa/stkpushquery/v1/query", token, payload, &out); err != nil {
		return nil, err
	}

	code, err := strconv.Atoi(strings.TrimSpace(out.ResultCode))
	if err != nil {
		return nil, fmt.Errorf("%w: unparseable result code %q", ErrRequestRejected, out.ResultCode)
	}

	return &StatusResult{ResultCode: code, ResultDesc: out.ResultDesc}, nil
}

func (c *Client) post(ctx context.Context, path, token string, payload, out interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode mpesa request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", ErrGatewayUnavailable, resp.StatusCode)
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: token rejected", ErrAuthFailed)
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: status %d, body: %s", ErrRequestRejected, resp.StatusCode, truncate(string(body), 200))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: unparseable response", ErrRequestRejected)
	}
	return nil
}

// IsTransient reports whether the error should leave the payment retryable
func IsTransient(err error) bool {
	return errors.Is(err, ErrGatewayUnavailable)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
