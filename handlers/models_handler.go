package handlers

import (
	"net/http"

	"github.com/snapsolve/backend/middleware"
	"github.com/snapsolve/backend/services/tier"
	"github.com/snapsolve/backend/utils"
	"go.uber.org/zap"
)

// ModelsResponse lists the models the caller's tier may use along with
// the current usage position against the daily quota.
type ModelsResponse struct {
	Tier       string   `json:"tier"`
	Models     []string `json:"models"`
	DailyQuota int      `json:"daily_quota"`
	UsedToday  int      `json:"used_today"`
}

// ModelsHandler serves model availability for authenticated accounts
type ModelsHandler struct {
	logger *zap.Logger
}

// NewModelsHandler creates a new ModelsHandler
func NewModelsHandler(logger *zap.Logger) *ModelsHandler {
	return &ModelsHandler{logger: logger}
}

// HandleList handles GET /api/v1/models
func (h *ModelsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccountFromContext(r.Context())
	if account == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	caps := tier.CapabilitiesFor(account.Tier)
	_ = utils.WriteOK(w, ModelsResponse{
		Tier:       string(account.Tier),
		Models:     caps.AllowedModels,
		DailyQuota: caps.DailyQuota,
		UsedToday:  account.UsageToday(),
	})
}
