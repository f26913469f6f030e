package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/picker/internal/screener"
	"github.com/wonny/picker/internal/store"
	"github.com/wonny/picker/pkg/logger"
)

// PicksHandler serves persisted scan results
type PicksHandler struct {
	repo   *store.Repository
	logger *logger.Logger
}

// NewPicksHandler creates a new picks handler
func NewPicksHandler(repo *store.Repository, log *logger.Logger) *PicksHandler {
	return &PicksHandler{
		repo:   repo,
		logger: log,
	}
}

// RunResponse represents a scan run for API responses
type RunResponse struct {
	ID         int64  `json:"id"`
	Date       string `json:"date"`
	Status     string `json:"status"`
	Evaluated  int    `json:"evaluated"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
	PickCount  int    `json:"pick_count"`
	ConfigID   string `json:"config_id,omitempty"`
	ConfigHash string `json:"config_hash,omitempty"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at"`
}

// PickResponse represents one ranked pick for API responses
type PickResponse struct {
	Rank          int      `json:"rank"`
	Code          string   `json:"code"`
	Name          string   `json:"name"`
	Date          string   `json:"date"`
	Close         float64  `json:"close"`
	ChangePct     float64  `json:"change_pct"`
	Volume        float64  `json:"volume"`
	Strategies    []string `json:"strategies"`
	StrategyCount int      `json:"strategy_count"`
	AvgScore      float64  `json:"avg_score"`
	StopLoss      float64  `json:"stop_loss"`
	TakeProfit    float64  `json:"take_profit"`
}

// PicksResponse bundles a run with its ranked picks. Run is omitted for
// date-filtered queries, which address picks directly.
type PicksResponse struct {
	Run   *RunResponse   `json:"run,omitempty"`
	Date  string         `json:"date"`
	Picks []PickResponse `json:"picks"`
}

// GetLatest returns the picks of the latest run, or of one trading day.
// GET /api/v1/picks?date=2024-01-15&limit=10
func (h *PicksHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 {
			limit = n
		}
	}

	if dateStr := r.URL.Query().Get("date"); dateStr != "" {
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid 'date' format (expected YYYY-MM-DD)")
			return
		}

		picks, err := h.repo.PicksByDate(ctx, date)
		if err != nil {
			h.logger.WithError(err).Error("Failed to get picks by date")
			respondError(w, http.StatusInternalServerError, "Failed to retrieve picks")
			return
		}

		respondJSON(w, http.StatusOK, PicksResponse{
			Date:  dateStr,
			Picks: newPickResponses(picks, limit),
		})
		return
	}

	run, err := h.repo.LatestScanRun(ctx)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get latest scan run")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve latest run")
		return
	}
	if run == nil {
		respondError(w, http.StatusNotFound, "No scan runs yet")
		return
	}

	picks, err := h.repo.PicksByRun(ctx, run.ID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get picks")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve picks")
		return
	}

	respondJSON(w, http.StatusOK, PicksResponse{
		Run:   newRunResponse(run),
		Date:  run.RunDate.Format("2006-01-02"),
		Picks: newPickResponses(picks, limit),
	})
}

// ListRuns returns recent scan runs, newest first.
// GET /api/v1/runs?limit=20
func (h *PicksHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 {
			limit = n
		}
	}

	runs, err := h.repo.ListScanRuns(ctx, limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list scan runs")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve runs")
		return
	}

	result := make([]RunResponse, len(runs))
	for i := range runs {
		result[i] = *newRunResponse(&runs[i])
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"runs": result,
	})
}

// GetRun returns one scan run with its picks.
// GET /api/v1/runs/{id}
func (h *PicksHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)

	id, err := strconv.ParseInt(vars["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid run id")
		return
	}

	run, err := h.repo.GetScanRun(ctx, id)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get scan run")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve run")
		return
	}
	if run == nil {
		respondError(w, http.StatusNotFound, "Run not found")
		return
	}

	picks, err := h.repo.PicksByRun(ctx, run.ID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get picks")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve picks")
		return
	}

	respondJSON(w, http.StatusOK, PicksResponse{
		Run:   newRunResponse(run),
		Date:  run.RunDate.Format("2006-01-02"),
		Picks: newPickResponses(picks, 0),
	})
}

func newRunResponse(run *store.ScanRun) *RunResponse {
	return &RunResponse{
		ID:         run.ID,
		Date:       run.RunDate.Format("2006-01-02"),
		Status:     run.Status,
		Evaluated:  run.Evaluated,
		Skipped:    run.Skipped,
		Failed:     run.Failed,
		PickCount:  run.PickCount,
		ConfigID:   run.ConfigID,
		ConfigHash: run.ConfigHash,
		StartedAt:  run.StartedAt.Format(time.RFC3339),
		FinishedAt: run.FinishedAt.Format(time.RFC3339),
	}
}

func newPickResponses(picks []screener.Pick, limit int) []PickResponse {
	if limit > 0 && limit < len(picks) {
		picks = picks[:limit]
	}

	result := make([]PickResponse, len(picks))
	for i, p := range picks {
		result[i] = PickResponse{
			Rank:          i + 1,
			Code:          p.InstrumentID,
			Name:          p.Name,
			Date:          p.Date.Format("2006-01-02"),
			Close:         p.Close,
			ChangePct:     p.ChangePct,
			Volume:        p.Volume,
			Strategies:    p.MatchedStrategies,
			StrategyCount: p.StrategyCount,
			AvgScore:      p.AvgScore,
			StopLoss:      p.StopLoss,
			TakeProfit:    p.TakeProfit,
		}
	}
	return result
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
