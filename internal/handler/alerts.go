package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/team-balancer/internal/domain"
)

// CreateAlert stores an alert
func (h *Handler) CreateAlert(w http.ResponseWriter, r *http.Request) {
	var req domain.AlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	alert, err := h.alerts.Create(r.Context(), req)
	if err != nil {
		h.writeDomainError(w, r, "create alert", err)
		return
	}
	h.writeCreated(w, alert)
}

// ListUserAlerts returns the alerts of a user; ?unread=true keeps unread ones
func (h *Handler) ListUserAlerts(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		h.writeDomainError(w, r, "list alerts", err)
		return
	}

	unreadOnly := false
	if raw := r.URL.Query().Get("unread"); raw != "" {
		unreadOnly, err = strconv.ParseBool(raw)
		if err != nil {
			h.writeDomainError(w, r, "list alerts", domain.Validation("unread must be a boolean, got %q", raw))
			return
		}
	}

	var alerts []domain.Alert
	if unreadOnly {
		alerts, err = h.alerts.ListUnreadByUser(r.Context(), userID)
	} else {
		alerts, err = h.alerts.ListByUser(r.Context(), userID)
	}
	if err != nil {
		h.writeDomainError(w, r, "list alerts", err)
		return
	}
	h.writeSuccess(w, alerts)
}

// MarkAlertRead flags an alert as read
func (h *Handler) MarkAlertRead(w http.ResponseWriter, r *http.Request) {
	alertID, err := pathID(r, "alertID")
	if err != nil {
		h.writeDomainError(w, r, "mark alert read", err)
		return
	}

	alert, err := h.alerts.MarkRead(r.Context(), alertID)
	if err != nil {
		h.writeDomainError(w, r, "mark alert read", err)
		return
	}
	h.writeSuccess(w, alert)
}

// MarkAllAlertsRead flags every alert of a user as read
func (h *Handler) MarkAllAlertsRead(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		h.writeDomainError(w, r, "mark alerts read", err)
		return
	}

	updated, err := h.alerts.MarkAllRead(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, r, "mark alerts read", err)
		return
	}
	h.writeSuccess(w, map[string]int64{"updated": updated})
}

// DeleteAlert removes an alert
func (h *Handler) DeleteAlert(w http.ResponseWriter, r *http.Request) {
	alertID, err := pathID(r, "alertID")
	if err != nil {
		h.writeDomainError(w, r, "delete alert", err)
		return
	}

	if err := h.alerts.Delete(r.Context(), alertID); err != nil {
		h.writeDomainError(w, r, "delete alert", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PurgeAlerts removes alerts older than ?days, defaulting to the configured
// retention
func (h *Handler) PurgeAlerts(w http.ResponseWriter, r *http.Request) {
	days := h.retentionDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil {
			h.writeDomainError(w, r, "purge alerts", domain.Validation("days must be an integer, got %q", raw))
			return
		}
		days = d
	}

	removed, err := h.alerts.PurgeOlderThan(r.Context(), days)
	if err != nil {
		h.writeDomainError(w, r, "purge alerts", err)
		return
	}
	h.writeSuccess(w, map[string]interface{}{
		"older_than_days": days,
		"removed":         removed,
	})
}
