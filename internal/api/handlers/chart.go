package handlers

import (
	"bytes"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	chart "github.com/wcharczuk/go-chart/v2"

	"github.com/wonny/picker/internal/indicator"
	"github.com/wonny/picker/internal/market"
	"github.com/wonny/picker/internal/store"
	"github.com/wonny/picker/pkg/logger"
)

const (
	defaultChartDays = 120
	maxChartDays     = 500
)

// ChartHandler renders instrument price charts
type ChartHandler struct {
	repo   *store.Repository
	logger *logger.Logger
}

// NewChartHandler creates a new chart handler
func NewChartHandler(repo *store.Repository, log *logger.Logger) *ChartHandler {
	return &ChartHandler{
		repo:   repo,
		logger: log,
	}
}

// GetChart renders a PNG of the close price with its 20-day average.
// GET /api/v1/instruments/{id}/chart?days=120
func (h *ChartHandler) GetChart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)
	id := vars["id"]

	days := defaultChartDays
	if daysStr := r.URL.Query().Get("days"); daysStr != "" {
		if d, err := strconv.Atoi(daysStr); err == nil && d > 0 {
			days = d
		}
	}
	if days > maxChartDays {
		days = maxChartDays
	}

	inst, err := h.repo.GetInstrument(ctx, id)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get instrument")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve instrument")
		return
	}
	if inst == nil {
		respondError(w, http.StatusNotFound, "Instrument not found")
		return
	}

	bars, err := h.repo.BarsUpTo(ctx, id, time.Now().UTC(), days)
	if err != nil {
		h.logger.WithError(err).WithField("instrument_id", id).Error("Failed to get bars")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve price history")
		return
	}
	if len(bars) < 2 {
		respondError(w, http.StatusNotFound, "Not enough price history to chart")
		return
	}

	series, err := market.New(id, inst.Name, bars)
	if err != nil {
		h.logger.WithError(err).WithField("instrument_id", id).Error("Failed to build series")
		respondError(w, http.StatusInternalServerError, "Failed to build price series")
		return
	}

	buf, err := renderChart(series)
	if err != nil {
		h.logger.WithError(err).WithField("instrument_id", id).Error("Failed to render chart")
		respondError(w, http.StatusInternalServerError, "Failed to render chart")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Write(buf.Bytes())
}

// renderChart plots the close price with an MA20 overlay.
func renderChart(series *market.Series) (*bytes.Buffer, error) {
	n := series.Len()
	dates := make([]time.Time, n)
	for i := 0; i < n; i++ {
		dates[i] = series.At(i).Date
	}
	closes := series.Closes()

	graph := chart.Chart{
		Title:  fmt.Sprintf("%s %s", series.ID(), series.Name()),
		Width:  900,
		Height: 400,
		XAxis: chart.XAxis{
			Name:           "Date",
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name: "Price",
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Close",
				XValues: dates,
				YValues: closes,
			},
		},
	}

	set, _ := indicator.Compute(series)
	if ma, ok := set.Values("ma20"); ok {
		// The warmup positions are NaN and would break the value range.
		start := 0
		for start < len(ma) && math.IsNaN(ma[start]) {
			start++
		}
		if len(ma)-start >= 2 {
			graph.Series = append(graph.Series, chart.TimeSeries{
				Name:    "MA20",
				XValues: dates[start:],
				YValues: ma[start:],
				Style: chart.Style{
					StrokeColor:     chart.ColorBlue,
					StrokeDashArray: []float64{5.0, 5.0},
				},
			})
		}
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render chart: %w", err)
	}
	return &buf, nil
}
