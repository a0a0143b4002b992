package mpesa

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ErrMalformedCallback means the body is not a valid stkCallback envelope
var ErrMalformedCallback = errors.New("malformed mpesa callback")

// Callback is the parsed result of an STK push callback
type Callback struct {
	MerchantRequestID string
	CheckoutRequestID string
	ResultCode        int
	ResultDesc        string

	// Metadata, present only on success (ResultCode == 0)
	AmountCents     int64
	ReceiptNumber   string
	TransactionDate string
	PhoneNumber     string
}

// Success reports whether the customer completed the payment
func (c *Callback) Success() bool {
	return c.ResultCode == 0
}

type callbackEnvelope struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string          `json:"MerchantRequestID"`
			CheckoutRequestID string          `json:"CheckoutRequestID"`
			ResultCode        int             `json:"ResultCode"`
			ResultDesc        string          `json:"ResultDesc"`
			CallbackMetadata  *struct {
				Item []metadataItem `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

type metadataItem struct {
	Name  string          `json:"Name"`
	Value json.RawMessage `json:"Value"`
}

// ParseCallback decodes a Daraja stkCallback body. Metadata items carry
// mixed string and numeric values, so each one is decoded by name.
func ParseCallback(body []byte) (*Callback, error) {
	var env callbackEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCallback, err)
	}

	cb := env.Body.StkCallback
	if cb.CheckoutRequestID == "" {
		return nil, fmt.Errorf("%w: missing CheckoutRequestID", ErrMalformedCallback)
	}

	out := &Callback{
		MerchantRequestID: cb.MerchantRequestID,
		CheckoutRequestID: cb.CheckoutRequestID,
		ResultCode:        cb.ResultCode,
		ResultDesc:        cb.ResultDesc,
	}

	if cb.CallbackMetadata == nil {
		return out, nil
	}

	for _, item := range cb.CallbackMetadata.Item {
		switch item.Name {
		case "Amount":
			var amount float64
			if err := json.Unmarshal(item.Value, &amount); err == nil {
				out.AmountCents = int64(math.Round(amount * 100))
			}
		case "MpesaReceiptNumber":
			out.ReceiptNumber = itemString(item.Value)
		case "TransactionDate":
			out.TransactionDate = itemString(item.Value)
		case "PhoneNumber":
			out.PhoneNumber = itemString(item.Value)
		}
	}

	return out, nil
}

// itemString decodes a metadata value that Daraja sends as either a JSON
// string or a bare number
func itemString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return ""
}
