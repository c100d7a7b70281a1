package marketdata

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeBarsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "daily_bars.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCSVProviderBars(t *testing.T) {
	path := writeBarsFile(t, `ts_code,name,trade_date,open,high,low,close,pre_close,vol,amount,turnover_rate,total_mv
000001.SZ,PingAn,2026-08-27,10.0,10.5,9.9,10.2,10.0,1000,10200,1.2,5e9
000001.SZ,PingAn,2026-08-28,10.2,10.8,10.1,10.6,10.2,1200,12720,1.5,5.2e9
600000.SH,PuFa,20260828,7.0,7.2,6.9,7.1,7.0,800,5680,0.8,3e9
`)

	p := NewCSVProvider(path)
	ctx := context.Background()

	bars, err := p.Bars(ctx, "20260828")
	require.NoError(t, err)
	require.Len(t, bars, 2)

	assert.Equal(t, "000001.SZ", bars[0].InstrumentCode)
	assert.Equal(t, "20260828", bars[0].TradeDate)
	assert.InDelta(t, 10.6, bars[0].Close, 1e-9)
	assert.InDelta(t, 10.2, bars[0].PrevClose, 1e-9)

	// Dashed date in the query must match too
	bars, err = p.Bars(ctx, "2026-08-28")
	require.NoError(t, err)
	assert.Len(t, bars, 2)

	latest, err := p.LatestTradeDate(ctx)
	require.NoError(t, err)
	assert.Equal(t, "20260828", latest)
}

func TestCSVProviderStripsHeaderBOM(t *testing.T) {
	// Exports from Excel lead with a UTF-8 BOM on the first header cell
	path := writeBarsFile(t, "\ufeff"+`ts_code,trade_date,close,pre_close
600519.SH,20260828,1500.0,1480.0
`)

	p := NewCSVProvider(path)
	bars, err := p.Bars(context.Background(), "20260828")
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, "600519.SH", bars[0].InstrumentCode)
}

func TestCSVProviderSkipsUnusableRows(t *testing.T) {
	path := writeBarsFile(t, `ts_code,trade_date,close,pre_close
,20260828,1.0,1.0
600000.SH,not-a-date,1.0,1.0
600519.SH,20260828,1500.0,1480.0
`)

	p := NewCSVProvider(path)
	bars, err := p.Bars(context.Background(), "20260828")
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, "600519.SH", bars[0].InstrumentCode)
}

func TestCSVProviderSurfacesMalformedRows(t *testing.T) {
	// A parse error mid-file must fail the read, not silently hand a
	// truncated universe to the caller.
	path := writeBarsFile(t, `ts_code,trade_date,close,pre_close
000001.SZ,20260828,10.6,10.2
600000.SH,2026"0828,7.1,7.0
600519.SH,20260828,1500.0,1480.0
`)

	p := NewCSVProvider(path)

	_, err := p.Bars(context.Background(), "20260828")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read bars row")

	_, err = p.LatestTradeDate(context.Background())
	require.Error(t, err)
}

func TestBarPctChange(t *testing.T) {
	b := Bar{Close: 11, PrevClose: 10}
	pct, ok := b.PctChange()
	require.True(t, ok)
	assert.InDelta(t, 10.0, pct, 1e-9)

	b = Bar{Close: 11, PrevClose: 0}
	_, ok = b.PctChange()
	assert.False(t, ok)
}

func TestNormalizeTradeDate(t *testing.T) {
	assert.Equal(t, "20260828", NormalizeTradeDate("2026-08-28"))
	assert.Equal(t, "20260828", NormalizeTradeDate("2026/08/28"))
	assert.Equal(t, "20260828", NormalizeTradeDate(" 20260828 "))
	assert.Equal(t, "", NormalizeTradeDate("2026.08.28"))
	assert.Equal(t, "", NormalizeTradeDate("garbage"))
	assert.Equal(t, "", NormalizeTradeDate(""))
}
