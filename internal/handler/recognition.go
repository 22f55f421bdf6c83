package handler

import (
	"net/http"
	"strconv"

	"github.com/peerpoints/peerpoints/internal/middleware"
)

type giveRecognitionRequest struct {
	ToUserID string `json:"toUserId"`
	Coins    int    `json:"coins"`
	Message  string `json:"message"`
}

// GiveRecognition transfers coins from the caller to a peer.
func (h *Handler) GiveRecognition(w http.ResponseWriter, r *http.Request) {
	var req giveRecognitionRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if req.ToUserID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "toUserId is required")
		return
	}

	sess := middleware.SessionFromContext(r.Context())
	rec, err := h.recogSvc.Give(r.Context(), sess, req.ToUserID, req.Coins, req.Message)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, rec)
}

// RecentRecognitions lists the latest recognitions for the dashboard feed.
func (h *Handler) RecentRecognitions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	recs, err := h.recogSvc.Recent(r.Context(), limit)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"recognitions": recs})
}

// ListRewards returns the reward catalog.
func (h *Handler) ListRewards(w http.ResponseWriter, r *http.Request) {
	rewards, err := h.recogSvc.Rewards(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"rewards": rewards})
}

// RedeemReward spends the caller's points on a catalog reward.
func (h *Handler) RedeemReward(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())
	red, err := h.recogSvc.Redeem(r.Context(), sess, r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, red)
}
