package marketdata

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// CSVProvider reads daily bars from a delimited file with a header row.
// The whole file is scanned per call; bar files are rewritten daily and
// stay small enough that caching is not worth the staleness risk.
type CSVProvider struct {
	path string
}

// NewCSVProvider creates a provider for the given bars file
func NewCSVProvider(path string) *CSVProvider {
	return &CSVProvider{path: path}
}

// Bars returns all bars for the trade date
func (p *CSVProvider) Bars(ctx context.Context, tradeDate string) ([]Bar, error) {
	wanted := NormalizeTradeDate(tradeDate)
	if wanted == "" {
		return nil, fmt.Errorf("invalid trade date %q", tradeDate)
	}

	bars, err := p.readAll(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Bar, 0, 256)
	for _, b := range bars {
		if b.TradeDate == wanted {
			out = append(out, b)
		}
	}
	return out, nil
}

// LatestTradeDate returns the maximum trade date present in the file
func (p *CSVProvider) LatestTradeDate(ctx context.Context) (string, error) {
	bars, err := p.readAll(ctx)
	if err != nil {
		return "", err
	}

	latest := ""
	for _, b := range bars {
		if b.TradeDate > latest {
			latest = b.TradeDate
		}
	}
	if latest == "" {
		return "", fmt.Errorf("no bars in %s", p.path)
	}
	return latest, nil
}

func (p *CSVProvider) readAll(ctx context.Context) ([]Bar, error) {
	f, err := os.Open(p.path)
	if err != nil {
		return nil, fmt.Errorf("open bars file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read bars header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "\uFEFF"))] = i
	}

	var bars []Bar
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// A malformed row must not silently truncate the universe
			return nil, fmt.Errorf("read bars row: %w", err)
		}

		get := func(name string) string {
			i, ok := col[name]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		bar := Bar{
			InstrumentCode: get("ts_code"),
			Name:           get("name"),
			TradeDate:      NormalizeTradeDate(get("trade_date")),
			Open:           parseFloat(get("open")),
			High:           parseFloat(get("high")),
			Low:            parseFloat(get("low")),
			Close:          parseFloat(get("close")),
			PrevClose:      parseFloat(get("pre_close")),
			Volume:         parseFloat(get("vol")),
			Amount:         parseFloat(get("amount")),
			TurnoverRate:   parseFloat(get("turnover_rate")),
			TotalMV:        parseFloat(get("total_mv")),
		}

		if bar.InstrumentCode == "" || bar.TradeDate == "" {
			continue
		}
		bars = append(bars, bar)
	}

	return bars, nil
}

// parseFloat returns 0 for blank or unparseable cells; data quality
// checks on individual fields happen at scoring time.
func parseFloat(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// NormalizeTradeDate accepts YYYYMMDD, YYYY-MM-DD or YYYY/MM/DD and
// returns compact YYYYMMDD, or "" when the value is unusable.
func NormalizeTradeDate(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, "/", "")
	if len(s) != 8 {
		return ""
	}
	for _, ch := range s {
		if ch < '0' || ch > '9' {
			return ""
		}
	}
	return s
}
