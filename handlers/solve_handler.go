package handlers

import (
	"net/http"

	"github.com/snapsolve/backend/middleware"
	"github.com/snapsolve/backend/utils"
	"go.uber.org/zap"
)

// SolveAcceptedResponse acknowledges an admitted solve request. The request
// has already passed the model grant and quota checks and its billed
// operation has been recorded; downstream workers pick it up from here.
type SolveAcceptedResponse struct {
	Accepted bool   `json:"accepted"`
	Model    string `json:"model"`
	Tier     string `json:"tier"`
}

// SolveHandler terminates the tier-gated solve route
type SolveHandler struct {
	logger *zap.Logger
}

// NewSolveHandler creates a new SolveHandler
func NewSolveHandler(logger *zap.Logger) *SolveHandler {
	return &SolveHandler{logger: logger}
}

// HandleSolve handles POST /api/v1/solve. It runs behind RequireAuth and
// RequireModel, so reaching it means the caller's tier grants the model and
// quota headroom existed when the operation was recorded.
func (h *SolveHandler) HandleSolve(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccountFromContext(r.Context())
	if account == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	model := middleware.RequestedModel(r)
	h.logger.Info("solve request admitted",
		zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
		zap.String("account_id", account.ID.String()),
		zap.String("model", model))

	_ = utils.WriteJSON(w, http.StatusAccepted, utils.SuccessResponse{
		Data: SolveAcceptedResponse{
			Accepted: true,
			Model:    model,
			Tier:     string(account.Tier),
		},
	})
}
