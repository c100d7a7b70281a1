package bridge

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/haoqf/nightowl/internal/contracts"
)

var outboxHeader = []string{
	"client_order_id", "trade_date", "instrument_code", "side",
	"quantity", "reference_price", "run_id", "sequence_no",
}

// PublishBatch writes the batch to outbox/orders.csv atomically.
// Instructions are immutable once published; republishing before the
// agent consumes the file atomically replaces the whole batch.
func (b *Bridge) PublishBatch(batch *contracts.OrderBatch) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(outboxHeader); err != nil {
		return "", fmt.Errorf("encode outbox header: %w", err)
	}
	for _, ins := range batch.Instructions {
		record := []string{
			ins.ClientOrderID,
			batch.TradeDate,
			ins.InstrumentCode,
			string(ins.Side),
			ins.Quantity.String(),
			ins.ReferencePrice.String(),
			ins.RunID,
			strconv.Itoa(ins.SequenceNo),
		}
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("encode outbox row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("encode outbox: %w", err)
	}

	path := b.OutboxPath()
	err := b.withRetry("publish batch", func() error {
		return atomicWrite(path, buf.Bytes())
	})
	if err != nil {
		return "", err
	}

	b.logger.WithFields(map[string]interface{}{
		"run_id":       batch.RunID,
		"instructions": len(batch.Instructions),
		"path":         path,
	}).Info("Order batch published")

	return path, nil
}

// ReadBatch parses the currently published batch. Used by the loopback
// agent; returns os.ErrNotExist when no batch is published.
func (b *Bridge) ReadBatch() (*contracts.OrderBatch, error) {
	data, err := os.ReadFile(b.OutboxPath())
	if err != nil {
		return nil, err
	}

	r := csv.NewReader(bytes.NewReader(data))
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse outbox: %w", err)
	}
	if len(records) < 1 {
		return nil, fmt.Errorf("outbox file has no header")
	}

	col := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		col[name] = i
	}

	batch := &contracts.OrderBatch{}
	for _, rec := range records[1:] {
		get := func(name string) string {
			i, ok := col[name]
			if !ok || i >= len(rec) {
				return ""
			}
			return rec[i]
		}

		qty, err := decimal.NewFromString(get("quantity"))
		if err != nil {
			return nil, fmt.Errorf("bad quantity %q: %w", get("quantity"), err)
		}
		price, err := decimal.NewFromString(get("reference_price"))
		if err != nil {
			return nil, fmt.Errorf("bad reference_price %q: %w", get("reference_price"), err)
		}
		seq, err := strconv.Atoi(get("sequence_no"))
		if err != nil {
			return nil, fmt.Errorf("bad sequence_no %q: %w", get("sequence_no"), err)
		}

		batch.RunID = get("run_id")
		batch.TradeDate = get("trade_date")
		batch.Instructions = append(batch.Instructions, contracts.OrderInstruction{
			RunID:          get("run_id"),
			InstrumentCode: get("instrument_code"),
			Side:           contracts.OrderSide(get("side")),
			Quantity:       qty,
			ReferencePrice: price,
			SequenceNo:     seq,
			ClientOrderID:  get("client_order_id"),
		})
	}

	return batch, nil
}

// MarkProcessed renames the published batch to its processed marker,
// embedding the processing date and run ID. The agent calls this after
// consuming the batch; the rename is the terminal Processed transition.
func (b *Bridge) MarkProcessed(runID string) (string, error) {
	marker := filepath.Join(
		b.OutboxDir(),
		fmt.Sprintf("%s%s_%s.csv", processedPrefix, time.Now().Format("20060102"), runID),
	)

	if _, err := os.Stat(marker); err == nil {
		return "", &contracts.BridgeIntegrityError{RunID: runID, Marker: filepath.Base(marker)}
	}

	err := b.withRetry("mark processed", func() error {
		return os.Rename(b.OutboxPath(), marker)
	})
	if err != nil {
		return "", err
	}

	b.logger.WithFields(map[string]interface{}{
		"run_id": runID,
		"marker": filepath.Base(marker),
	}).Info("Order batch marked processed")

	return marker, nil
}

// ProcessedMarker returns the marker file name for the run, or "" when
// none exists. Marker existence, not content, signals consumption; the
// processing date in the name is the agent's, so matching is on run ID.
func (b *Bridge) ProcessedMarker(runID string) (string, error) {
	entries, err := os.ReadDir(b.OutboxDir())
	if err != nil {
		return "", fmt.Errorf("scan outbox: %w", err)
	}

	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, processedPrefix) && strings.Contains(name, runID) {
			return name, nil
		}
	}
	return "", nil
}

// HasPublishedBatch reports whether an unconsumed batch is waiting
func (b *Bridge) HasPublishedBatch() bool {
	_, err := os.Stat(b.OutboxPath())
	return err == nil
}
