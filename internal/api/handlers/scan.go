package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/wonny/picker/internal/pipeline"
	"github.com/wonny/picker/internal/strategyconfig"
	"github.com/wonny/picker/internal/ws"
	"github.com/wonny/picker/pkg/config"
	"github.com/wonny/picker/pkg/logger"
)

// ScanHandler triggers pipeline runs over HTTP
type ScanHandler struct {
	pipeline *pipeline.Pipeline
	snapshot *strategyconfig.Snapshot
	config   *config.Config
	hub      *ws.Hub
	logger   *logger.Logger

	mu      sync.Mutex
	running bool
}

// NewScanHandler creates a new scan handler. The snapshot may be nil
// when no strategy file is configured.
func NewScanHandler(p *pipeline.Pipeline, snap *strategyconfig.Snapshot, cfg *config.Config, hub *ws.Hub, log *logger.Logger) *ScanHandler {
	return &ScanHandler{
		pipeline: p,
		snapshot: snap,
		config:   cfg,
		hub:      hub,
		logger:   log,
	}
}

// ScanRequest represents a scan trigger request. All fields are optional.
type ScanRequest struct {
	Date     string `json:"date"`      // YYYY-MM-DD, default today
	SkipSync *bool  `json:"skip_sync"` // default true, the scheduler owns the nightly refresh
	Workers  int    `json:"workers"`
	MinBars  int    `json:"min_bars"`
}

// ScanResponse represents a completed scan trigger
type ScanResponse struct {
	Status    string `json:"status"`
	RunID     int64  `json:"run_id"`
	Date      string `json:"date"`
	Picks     int    `json:"picks"`
	Evaluated int    `json:"evaluated"`
	Skipped   int    `json:"skipped"`
	Failed    int    `json:"failed"`
	Duration  string `json:"duration"`
}

// Trigger runs the pipeline and responds with the run outcome. Progress
// streams to /ws/scan subscribers while the request is in flight. Only
// one scan runs at a time.
// POST /api/v1/scan
func (h *ScanHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	date, err := h.parseDate(req.Date)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid 'date' format (expected YYYY-MM-DD)")
		return
	}

	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		respondError(w, http.StatusConflict, "A scan is already running")
		return
	}
	h.running = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		h.running = false
		h.mu.Unlock()
	}()

	skipSync := true
	if req.SkipSync != nil {
		skipSync = *req.SkipSync
	}

	workers := req.Workers
	if workers <= 0 {
		workers = h.config.Scan.Workers
	}
	minBars := req.MinBars
	if minBars <= 0 {
		minBars = h.config.Scan.MinBars
	}

	dateStr := date.Format("2006-01-02")
	h.logger.WithFields(map[string]interface{}{
		"date":      dateStr,
		"skip_sync": skipSync,
	}).Info("Scan triggered via API")

	h.hub.Broadcast(ws.Event{Type: ws.EventScanStarted, Date: dateStr})

	result, err := h.pipeline.Run(ctx, pipeline.RunConfig{
		Date:        date,
		SkipSync:    skipSync,
		Workers:     workers,
		MinBars:     minBars,
		HistoryDays: h.config.Scan.HistoryDays,
		Snapshot:    h.snapshot,
		OnProgress: func(done, total int) {
			h.hub.Broadcast(ws.Event{
				Type:  ws.EventScanProgress,
				Date:  dateStr,
				Done:  done,
				Total: total,
			})
		},
	})
	if err != nil {
		h.hub.Broadcast(ws.Event{Type: ws.EventScanFailed, Date: dateStr, Error: err.Error()})
		h.logger.WithError(err).Error("Failed to run scan")
		respondError(w, http.StatusInternalServerError, "Scan failed")
		return
	}

	h.hub.Broadcast(ws.Event{
		Type:  ws.EventScanCompleted,
		Date:  dateStr,
		RunID: result.RunID,
		Picks: len(result.Scan.Picks),
	})

	respondJSON(w, http.StatusOK, ScanResponse{
		Status:    "success",
		RunID:     result.RunID,
		Date:      dateStr,
		Picks:     len(result.Scan.Picks),
		Evaluated: result.Scan.Evaluated,
		Skipped:   result.Scan.Skipped,
		Failed:    result.Scan.Failed,
		Duration:  result.Duration.String(),
	})
}

func (h *ScanHandler) parseDate(s string) (time.Time, error) {
	if s == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return time.Parse("2006-01-02", s)
}
