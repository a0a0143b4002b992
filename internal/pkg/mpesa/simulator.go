package mpesa

import (
	"context"
	"fmt"
	"sync"
)

// Simulator is an in-memory stand-in for the Daraja API, usable in tests
// and local development. Pushes are accepted and recorded; callbacks are
// built by the caller.
type Simulator struct {
	mu       sync.Mutex
	seq      int
	pushes   map[string]simulatedPush // by checkout request id
	failNext error
	reject   bool
}

type simulatedPush struct {
	Phone       string
	AmountCents int64
	Reference   string
	ResultCode  int
	Completed   bool
}

// NewSimulator creates an empty simulator
func NewSimulator() *Simulator {
	return &Simulator{pushes: make(map[string]simulatedPush)}
}

// FailNext makes the next gateway call return err
func (s *Simulator) FailNext(err error) {
	s.mu.Lock()
	s.failNext = err
	s.mu.Unlock()
}

// RejectPushes makes STKPush return a non-accepted result
func (s *Simulator) RejectPushes(reject bool) {
	s.mu.Lock()
	s.reject = reject
	s.mu.Unlock()
}

func (s *Simulator) STKPush(ctx context.Context, phone string, amountCents int64, reference, description string) (*PushResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return nil, err
	}
	if s.reject {
		return &PushResult{Accepted: false, Message: "Request rejected"}, nil
	}

	s.seq++
	checkoutID := fmt.Sprintf("ws_CO_%06d", s.seq)
	s.pushes[checkoutID] = simulatedPush{
		Phone:       phone,
		AmountCents: amountCents,
		Reference:   reference,
		ResultCode:  -1,
	}

	return &PushResult{
		CheckoutRequestID: checkoutID,
		MerchantRequestID: fmt.Sprintf("mr_%06d", s.seq),
		Accepted:          true,
		Message:           "Success. Request accepted for processing",
	}, nil
}

func (s *Simulator) QueryStatus(ctx context.Context, checkoutRequestID string) (*StatusResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return nil, err
	}

	push, ok := s.pushes[checkoutRequestID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown checkout request", ErrRequestRejected)
	}
	if !push.Completed {
		return &StatusResult{ResultCode: 4999, ResultDesc: "The transaction is being processed"}, nil
	}
	return &StatusResult{ResultCode: push.ResultCode, ResultDesc: "Simulated result"}, nil
}

// Complete marks a recorded push as finished with the given result code and
// returns a callback body the webhook handler can consume
func (s *Simulator) Complete(checkoutRequestID string, resultCode int, receipt string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	push, ok := s.pushes[checkoutRequestID]
	if !ok {
		return nil, false
	}
	push.Completed = true
	push.ResultCode = resultCode
	s.pushes[checkoutRequestID] = push

	if resultCode == 0 {
		body := fmt.Sprintf(`{"Body":{"stkCallback":{"MerchantRequestID":"mr_sim","CheckoutRequestID":%q,"ResultCode":0,"ResultDesc":"The service request is processed successfully.","CallbackMetadata":{"Item":[{"Name":"Amount","Value":%d.00},{"Name":"MpesaReceiptNumber","Value":%q},{"Name":"TransactionDate","Value":20250101120000},{"Name":"PhoneNumber","Value":%s}]}}}}`,
			checkoutRequestID, push.AmountCents/100, receipt, push.Phone)
		return []byte(body), true
	}

	body := fmt.Sprintf(`{"Body":{"stkCallback":{"MerchantRequestID":"mr_sim","CheckoutRequestID":%q,"ResultCode":%d,"ResultDesc":"Request cancelled by user"}}}`,
		checkoutRequestID, resultCode)
	return []byte(body), true
}
