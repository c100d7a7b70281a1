package contracts

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide is the direction of an order instruction
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderInstruction is the derived intent handed to the execution agent.
// Immutable once written to the outbox.
type OrderInstruction struct {
	RunID          string          `json:"run_id"`
	InstrumentCode string          `json:"instrument_code"`
	Side           OrderSide       `json:"side"`
	Quantity       decimal.Decimal `json:"quantity"`
	ReferencePrice decimal.Decimal `json:"reference_price"`
	SequenceNo     int             `json:"sequence_no"` // monotonic within the batch, from 1
	ClientOrderID  string          `json:"client_order_id"`
}

// OrderBatch is one outbox publication, produced once per morning job
type OrderBatch struct {
	RunID        string             `json:"run_id"`
	TradeDate    string             `json:"trade_date"` // YYYYMMDD
	CreatedAt    time.Time          `json:"created_at"`
	Instructions []OrderInstruction `json:"instructions"`
}
