package nightjob

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/haoqf/nightowl/internal/contracts"
)

const latestExportName = "picks_latest.csv"

var exportHeader = []string{"run_id", "instrument_code", "rank_rule", "rank_final", "score", "regime_tag"}

// exportPicksCSV writes the per-run audit snapshot and refreshes the
// picks_latest.csv alias. Both writes go through a temp file and
// rename so a reader never observes a half-written export. Returns
// the per-run path.
func exportPicksCSV(dir, tradeDate, runID string, picks []contracts.Pick) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create audit dir: %w", err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeader); err != nil {
		return "", err
	}
	for _, p := range picks {
		row := []string{
			p.RunID,
			p.InstrumentCode,
			p.RankRule,
			strconv.Itoa(p.RankFinal),
			strconv.FormatFloat(p.Score, 'f', 6, 64),
			p.RegimeTag,
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}

	runPath := filepath.Join(dir, fmt.Sprintf("picks_%s_%s.csv", tradeDate, runID))
	if err := atomicWriteFile(runPath, buf.Bytes()); err != nil {
		return "", err
	}
	if err := atomicWriteFile(filepath.Join(dir, latestExportName), buf.Bytes()); err != nil {
		return "", err
	}
	return runPath, nil
}

func atomicWriteFile(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
