package payment

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/railmeal/internal/apperr"
)

// IntentService turns a checkout amount into a gateway order.
type IntentService struct {
	gateway  Gateway
	currency string
	receipts *ReceiptIssuer
	redactor *Redactor
}

// NewIntentService creates an IntentService charging in the given currency.
func NewIntentService(gateway Gateway, currency string, receipts *ReceiptIssuer, redactor *Redactor) *IntentService {
	return &IntentService{
		gateway:  gateway,
		currency: currency,
		receipts: receipts,
		redactor: redactor,
	}
}

// Currency returns the currency intents are created in.
func (s *IntentService) Currency() string {
	return s.currency
}

// Create asks the gateway for an order of the given major-unit amount. Gateway
// failures match apperr.ErrRemoteUnavailable and carry the upstream message
// with credentials removed.
func (s *IntentService) Create(ctx context.Context, amount decimal.Decimal) (*Intent, error) {
	minor, err := ToMinorUnits(amount)
	if err != nil {
		return nil, err
	}

	req := OrderRequest{
		Amount:   minor,
		Currency: s.currency,
		Receipt:  s.receipts.Next(),
	}

	intent, err := s.gateway.CreateOrder(ctx, req)
	if err != nil {
		msg := s.redactor.Redact(err.Error())
		zctx.From(ctx).Error("Payment gateway order failed",
			zap.String("receipt", req.Receipt),
			zap.Int64("amount", req.Amount),
			zap.String("error", msg),
		)
		return nil, apperr.RemoteMessage(msg)
	}
	if intent == nil || intent.GatewayOrderID == "" {
		return nil, apperr.RemoteMessage("payment gateway returned no order id")
	}

	zctx.From(ctx).Info("Payment intent created",
		zap.String("gateway_order_id", intent.GatewayOrderID),
		zap.String("receipt", intent.Receipt),
		zap.Int64("amount", intent.Amount),
	)
	return intent, nil
}

// IsInvalidAmount reports whether err is a validation failure of the amount.
func IsInvalidAmount(err error) bool {
	return errors.Is(err, ErrInvalidAmount)
}
