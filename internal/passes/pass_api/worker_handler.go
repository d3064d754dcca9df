package pass_api

import (
	"fmt"
	"net/http"

	passes "ms-passes/internal/passes/service"
	"ms-passes/internal/utils"
)

type RedeemRequest struct {
	PassCode string `json:"pass_code" form:"pass_code" validate:"required"`
}

// RedemptionResponse keeps the shape the gate scanners expect.
type RedemptionResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func newRedemptionResponse(result passes.RedemptionResult) RedemptionResponse {
	status := "error"
	if result.Allowed() {
		status = "success"
	}
	return RedemptionResponse{Status: status, Message: result.Message()}
}

func (h *Handler) WorkerDashboard(w http.ResponseWriter, r *http.Request) {
	events, err := h.PassService.ListEvents(r.Context())
	if err != nil {
		utils.WriteError(w, r, http.StatusInternalServerError, "Failed to list events", err.Error())
		return
	}
	utils.WriteSuccess(w, r, http.StatusOK, "Worker dashboard", events)
}

// Redeem validates a pass at the gate. Rejections are answered with 200 and status "error".
func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req RedeemRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.PassService.Redeem(r.Context(), req.PassCode)
	if err != nil {
		h.Logger.Error("REDEEM", fmt.Sprintf("Redemption of %s failed: %v", req.PassCode, err))
		utils.WriteJSON(w, r, http.StatusInternalServerError, RedemptionResponse{Status: "error", Message: "Redemption failed, try again"})
		return
	}
	utils.WriteJSON(w, r, http.StatusOK, newRedemptionResponse(result))
}

// Report lists {event, used, remaining} for every event.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	report, err := h.PassService.Report(r.Context())
	if err != nil {
		utils.WriteError(w, r, http.StatusInternalServerError, "Failed to build report", err.Error())
		return
	}
	utils.WriteJSON(w, r, http.StatusOK, report)
}
