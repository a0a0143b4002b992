package payment

import (
	"context"

	"github.com/starpro23/MjengoLink-Constructors/internal/pkg/mpesa"
)

// Gateway is the mobile-money boundary the orchestrator depends on. The
// Daraja client and the simulator both satisfy it.
type Gateway interface {
	STKPush(ctx context.Context, phone string, amountCents int64, reference, description string) (*mpesa.PushResult, error)
	QueryStatus(ctx context.Context, checkoutRequestID string) (*mpesa.StatusResult, error)
}

var (
	_ Gateway = (*mpesa.Client)(nil)
	_ Gateway = (*mpesa.Simulator)(nil)
)
