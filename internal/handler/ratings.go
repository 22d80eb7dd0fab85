package handler

import (
	"encoding/json"
	"net/http"

	"github.com/team-balancer/internal/domain"
)

// CreateRating records a rating for a participant of a finished match
func (h *Handler) CreateRating(w http.ResponseWriter, r *http.Request) {
	var req domain.RatingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	rec, err := h.ratings.Create(r.Context(), req)
	if err != nil {
		h.writeDomainError(w, r, "create rating", err)
		return
	}
	h.writeCreated(w, rec)
}

// GetRating returns a single rating
func (h *Handler) GetRating(w http.ResponseWriter, r *http.Request) {
	ratingID, err := pathID(r, "ratingID")
	if err != nil {
		h.writeDomainError(w, r, "get rating", err)
		return
	}

	rec, err := h.ratings.Get(r.Context(), ratingID)
	if err != nil {
		h.writeDomainError(w, r, "get rating", err)
		return
	}
	h.writeSuccess(w, rec)
}

// DeleteRating removes a rating
func (h *Handler) DeleteRating(w http.ResponseWriter, r *http.Request) {
	ratingID, err := pathID(r, "ratingID")
	if err != nil {
		h.writeDomainError(w, r, "delete rating", err)
		return
	}

	if err := h.ratings.Delete(r.Context(), ratingID); err != nil {
		h.writeDomainError(w, r, "delete rating", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListMatchRatings returns the ratings given in a match
func (h *Handler) ListMatchRatings(w http.ResponseWriter, r *http.Request) {
	matchID, err := pathID(r, "matchID")
	if err != nil {
		h.writeDomainError(w, r, "list ratings", err)
		return
	}

	records, err := h.ratings.ListByMatch(r.Context(), matchID)
	if err != nil {
		h.writeDomainError(w, r, "list ratings", err)
		return
	}
	h.writeSuccess(w, records)
}

// GetMatchAverage returns the mean score given in a match
func (h *Handler) GetMatchAverage(w http.ResponseWriter, r *http.Request) {
	matchID, err := pathID(r, "matchID")
	if err != nil {
		h.writeDomainError(w, r, "average ratings", err)
		return
	}

	avg, err := h.ratings.AverageForMatch(r.Context(), matchID)
	if err != nil {
		h.writeDomainError(w, r, "average ratings", err)
		return
	}
	h.writeSuccess(w, map[string]interface{}{
		"match_id": matchID,
		"average":  avg,
	})
}

// GetUserSkill returns the current skill estimate of a user
func (h *Handler) GetUserSkill(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		h.writeDomainError(w, r, "get skill", err)
		return
	}

	est, err := h.ratings.Skill(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, r, "get skill", err)
		return
	}
	h.writeSuccess(w, est)
}
