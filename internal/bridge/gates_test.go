package bridge

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haoqf/nightowl/internal/contracts"
)

func sanityBatch(runID string, lines int, qty, price int64) *contracts.OrderBatch {
	batch := &contracts.OrderBatch{RunID: runID, TradeDate: "20260828"}
	for i := 0; i < lines; i++ {
		batch.Instructions = append(batch.Instructions, contracts.OrderInstruction{
			RunID:          runID,
			InstrumentCode: "000001.SZ",
			Side:           contracts.OrderSideBuy,
			Quantity:       decimal.NewFromInt(qty),
			ReferencePrice: decimal.NewFromInt(price),
			SequenceNo:     i + 1,
		})
	}
	return batch
}

func TestCheckBatchSanity(t *testing.T) {
	limits := SanityLimits{
		MaxOrderLines:       3,
		MaxNotionalPerOrder: decimal.NewFromInt(500000),
	}

	assert.NoError(t, CheckBatchSanity(sanityBatch("R1", 3, 100, 50), limits))
	assert.NoError(t, CheckBatchSanity(sanityBatch("R1", 0, 0, 0), limits), "empty batch passes")

	var sanityErr *contracts.OrderSanityError

	err := CheckBatchSanity(sanityBatch("R1", 4, 100, 50), limits)
	require.ErrorAs(t, err, &sanityErr)
	assert.Equal(t, "TOO_MANY_LINES", sanityErr.Reason)

	// 100 shares at 6000 exceeds the 500k notional cap
	err = CheckBatchSanity(sanityBatch("R1", 1, 100, 6000), limits)
	require.ErrorAs(t, err, &sanityErr)
	assert.Equal(t, "ORDER_TOO_LARGE", sanityErr.Reason)
	assert.Equal(t, "R1", sanityErr.RunID)

	err = CheckBatchSanity(nil, limits)
	require.ErrorAs(t, err, &sanityErr)
	assert.Equal(t, "NO_ORDERS", sanityErr.Reason)
}

func TestCheckBatchSanityZeroLimitsDisabled(t *testing.T) {
	assert.NoError(t, CheckBatchSanity(sanityBatch("R1", 50, 1000, 9000), SanityLimits{}))
}
