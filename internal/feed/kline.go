package feed

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/wonny/picker/internal/market"
)

// maxKlineLimit is the gateway's cap on bars per kline request.
const maxKlineLimit = 1000

// Klines is one instrument's fetched daily history.
type Klines struct {
	Code string
	Name string
	Bars []market.Bar
}

// FetchKlines fetches up to limit forward-adjusted daily bars for one
// instrument, oldest first.
func (c *Client) FetchKlines(ctx context.Context, code string, limit int) (*Klines, error) {
	if code == "" || limit <= 0 {
		return nil, fmt.Errorf("invalid code or limit")
	}
	if limit > maxKlineLimit {
		limit = maxKlineLimit
	}

	url := fmt.Sprintf(
		"%s/api/qt/stock/kline/get?secid=%s&fields1=f1,f2,f3,f4,f5,f6&fields2=f51,f52,f53,f54,f55,f56,f57&klt=101&fqt=1&lmt=%d",
		c.klineBase, SecID(code), limit,
	)

	body, err := c.fetchJSON(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch klines %s: %w", code, err)
	}

	klines, err := parseKlines(body, code)
	if err != nil {
		return nil, err
	}

	c.logger.WithFields(map[string]interface{}{
		"instrument_id": code,
		"count":         len(klines.Bars),
	}).Debug("Fetched klines")

	return klines, nil
}

// parseKlines extracts bars from a kline response. Each record is one
// comma-joined string: date,open,close,high,low,volume,amount.
func parseKlines(body []byte, code string) (*Klines, error) {
	data := gjson.GetBytes(body, "data")
	if !data.Exists() {
		return nil, &market.DataError{InstrumentID: code, Reason: "no data in kline response"}
	}

	records := data.Get("klines")
	if !records.Exists() || !records.IsArray() {
		return nil, &market.DataError{InstrumentID: code, Reason: "no klines in response"}
	}

	var bars []market.Bar
	for _, rec := range records.Array() {
		s := strings.TrimSpace(rec.String())
		if s == "" {
			continue
		}
		parts := strings.Split(s, ",")
		if len(parts) < 6 {
			continue
		}

		date, err := time.Parse("2006-01-02", parts[0])
		if err != nil {
			continue
		}

		open, _ := strconv.ParseFloat(parts[1], 64)
		closePrice, _ := strconv.ParseFloat(parts[2], 64)
		high, _ := strconv.ParseFloat(parts[3], 64)
		low, _ := strconv.ParseFloat(parts[4], 64)
		volume, _ := strconv.ParseFloat(parts[5], 64)
		var amount float64
		if len(parts) >= 7 {
			amount, _ = strconv.ParseFloat(parts[6], 64)
		}

		bars = append(bars, market.Bar{
			Date:   date,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closePrice,
			Volume: volume,
			Amount: amount,
		})
	}

	if len(bars) == 0 {
		return nil, &market.DataError{InstrumentID: code, Reason: "empty klines"}
	}

	return &Klines{
		Code: code,
		Name: data.Get("name").String(),
		Bars: bars,
	}, nil
}
