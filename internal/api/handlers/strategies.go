package handlers

import (
	"net/http"

	"github.com/wonny/picker/internal/registry"
	"github.com/wonny/picker/pkg/logger"
)

// StrategyHandler exposes the configured strategy table
type StrategyHandler struct {
	registry *registry.Registry
	logger   *logger.Logger
}

// NewStrategyHandler creates a new strategy handler
func NewStrategyHandler(reg *registry.Registry, log *logger.Logger) *StrategyHandler {
	return &StrategyHandler{
		registry: reg,
		logger:   log,
	}
}

// List returns every registered strategy with its effective configuration.
// GET /api/v1/strategies
func (h *StrategyHandler) List(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"strategies": h.registry.Descriptors(),
	})
}
