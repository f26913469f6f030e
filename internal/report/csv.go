package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/picker/internal/screener"
)

// utf8BOM makes spreadsheet tools detect the encoding of Chinese names.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var csvHeader = []string{
	"rank", "code", "name", "date", "close", "change_pct", "volume",
	"strategies", "strategy_count", "avg_score", "stop_loss", "take_profit",
}

// WriteCSV writes ranked picks as CSV, one row per pick, rank first.
func WriteCSV(w io.Writer, picks []screener.Pick) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return fmt.Errorf("write BOM: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, pick := range picks {
		if err := cw.Write(csvRow(i+1, pick)); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func csvRow(rank int, pick screener.Pick) []string {
	return []string{
		strconv.Itoa(rank),
		pick.InstrumentID,
		pick.Name,
		pick.Date.Format("2006-01-02"),
		strconv.FormatFloat(pick.Close, 'f', 2, 64),
		strconv.FormatFloat(pick.ChangePct, 'f', 2, 64),
		strconv.FormatFloat(pick.Volume, 'f', 0, 64),
		strings.Join(pick.MatchedStrategies, ","),
		strconv.Itoa(pick.StrategyCount),
		strconv.FormatFloat(pick.AvgScore, 'f', 1, 64),
		strconv.FormatFloat(pick.StopLoss, 'f', 2, 64),
		strconv.FormatFloat(pick.TakeProfit, 'f', 2, 64),
	}
}

// SaveCSV writes picks to dir/picks_YYYY-MM-DD.csv and returns the path.
// The directory is created if needed.
func SaveCSV(dir string, date time.Time, picks []screener.Pick) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("picks_%s.csv", date.Format("2006-01-02")))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create csv file: %w", err)
	}

	if err := WriteCSV(f, picks); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close csv file: %w", err)
	}

	return path, nil
}
