package bridge

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/haoqf/nightowl/internal/contracts"
)

// SanityLimits bound what a single batch may hand to the execution
// agent. Zero values disable the corresponding check.
type SanityLimits struct {
	MaxOrderLines       int
	MaxNotionalPerOrder decimal.Decimal
}

// CheckBatchSanity is the fat-finger gate, run before a batch reaches
// the outbox. An empty batch passes; an oversized one is refused whole,
// never trimmed.
func CheckBatchSanity(batch *contracts.OrderBatch, limits SanityLimits) error {
	if batch == nil {
		return &contracts.OrderSanityError{Reason: "NO_ORDERS", Detail: "nil batch"}
	}
	if len(batch.Instructions) == 0 {
		return nil
	}

	if limits.MaxOrderLines > 0 && len(batch.Instructions) > limits.MaxOrderLines {
		return &contracts.OrderSanityError{
			RunID:  batch.RunID,
			Reason: "TOO_MANY_LINES",
			Detail: fmt.Sprintf("lines=%d > %d", len(batch.Instructions), limits.MaxOrderLines),
		}
	}

	if limits.MaxNotionalPerOrder.IsPositive() {
		for _, ins := range batch.Instructions {
			notional := ins.Quantity.Mul(ins.ReferencePrice)
			if notional.GreaterThan(limits.MaxNotionalPerOrder) {
				return &contracts.OrderSanityError{
					RunID:  batch.RunID,
					Reason: "ORDER_TOO_LARGE",
					Detail: fmt.Sprintf("%s notional=%s > %s",
						ins.InstrumentCode, notional.String(), limits.MaxNotionalPerOrder.String()),
				}
			}
		}
	}

	return nil
}
