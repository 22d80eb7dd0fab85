package handler

import (
	"net/http"
)

// GenerateTeams balances the confirmed roster of a match
func (h *Handler) GenerateTeams(w http.ResponseWriter, r *http.Request) {
	matchID, err := pathID(r, "matchID")
	if err != nil {
		h.writeDomainError(w, r, "generate teams", err)
		return
	}

	teams, err := h.teams.GenerateTeams(r.Context(), matchID)
	if err != nil {
		h.writeDomainError(w, r, "generate teams", err)
		return
	}

	if h.hub != nil {
		h.hub.BroadcastTeams(matchID, teams)
	}
	h.writeSuccess(w, teams)
}

// GetTeamsByMatch returns the current teams of a match
func (h *Handler) GetTeamsByMatch(w http.ResponseWriter, r *http.Request) {
	matchID, err := pathID(r, "matchID")
	if err != nil {
		h.writeDomainError(w, r, "get teams", err)
		return
	}

	teams, err := h.teams.GetTeams(r.Context(), matchID)
	if err != nil {
		h.writeDomainError(w, r, "get teams", err)
		return
	}
	h.writeSuccess(w, teams)
}

// GetTeam returns a single team
func (h *Handler) GetTeam(w http.ResponseWriter, r *http.Request) {
	teamID, err := pathID(r, "teamID")
	if err != nil {
		h.writeDomainError(w, r, "get team", err)
		return
	}

	team, err := h.teams.GetTeam(r.Context(), teamID)
	if err != nil {
		h.writeDomainError(w, r, "get team", err)
		return
	}
	h.writeSuccess(w, team)
}

// DeleteTeams removes all teams of a match
func (h *Handler) DeleteTeams(w http.ResponseWriter, r *http.Request) {
	matchID, err := pathID(r, "matchID")
	if err != nil {
		h.writeDomainError(w, r, "delete teams", err)
		return
	}

	if err := h.teams.DeleteTeams(r.Context(), matchID); err != nil {
		h.writeDomainError(w, r, "delete teams", err)
		return
	}

	if h.hub != nil {
		h.hub.BroadcastTeamsDeleted(matchID)
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetCapacity reports the remaining slots of a match and its capacity band
func (h *Handler) GetCapacity(w http.ResponseWriter, r *http.Request) {
	matchID, err := pathID(r, "matchID")
	if err != nil {
		h.writeDomainError(w, r, "get capacity", err)
		return
	}

	signal, err := h.capacity.Check(r.Context(), matchID)
	if err != nil {
		h.writeDomainError(w, r, "get capacity", err)
		return
	}
	h.writeSuccess(w, signal)
}
