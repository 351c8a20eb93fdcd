package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"

	"github.com/fieldops/backend/internal/assign"
	"github.com/fieldops/backend/internal/db"
)

// @Summary List assignments
// @Tags assignments
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/assignments [get]
func (h *Handler) AssignmentsList(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	filter := db.AssignmentFilter{
		Status:   c.Query("status"),
		TeamID:   c.Query("team_id"),
		TicketID: c.Query("ticket_id"),
		Limit:    limit,
		Offset:   offset,
	}
	if from := c.Query("date_from"); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			filter.DateFrom = &t
		}
	}
	if to := c.Query("date_to"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			filter.DateTo = &t
		}
	}

	assignments, total, err := h.Store.ListAssignments(c.Request.Context(), filter)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list assignments", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"assignments": assignments, "total": total, "limit": limit, "offset": offset})
}

func (h *Handler) AssignmentDetails(c *gin.Context) {
	a, err := h.Store.GetAssignment(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Assignment not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to get assignment", err.Error())
		return
	}
	c.JSON(http.StatusOK, a)
}

type AssignmentStatusRequest struct {
	Status            string     `json:"status" validate:"required,oneof=accepted in-progress completed cancelled"`
	ActualArrivalTime *time.Time `json:"actual_arrival_time"`
	ActualDuration    *int       `json:"actual_duration"`
	CustomerRating    *float64   `json:"customer_rating" validate:"omitempty,gte=1,lte=5"`
}

// @Summary Update assignment status
// @Description Applies lifecycle timestamps and cascades to ticket and team.
// @Tags assignments
// @Accept json
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/assignments/{id}/status [patch]
func (h *Handler) AssignmentStatus(c *gin.Context) {
	var req AssignmentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	before, err := h.Store.GetAssignment(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Assignment not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to get assignment", err.Error())
		return
	}

	updated, err := h.Assign.UpdateAssignmentStatus(c.Request.Context(), before.ID, assign.StatusUpdate{
		Status:            req.Status,
		ActualArrivalTime: req.ActualArrivalTime,
		ActualDuration:    req.ActualDuration,
		CustomerRating:    req.CustomerRating,
	})
	if err != nil {
		h.writeAssignError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":       "Assignment status updated successfully",
		"assignment":    updated,
		"status_change": gin.H{"from": before.Status, "to": updated.Status},
	})
}

type RejectRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// @Summary Reject assignment
// @Description Frees the technician and reopens the ticket for reassignment.
// @Tags assignments
// @Accept json
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/assignments/{id}/reject [post]
func (h *Handler) AssignmentReject(c *gin.Context) {
	var req RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	a, err := h.Assign.Reject(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		h.writeAssignError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Assignment rejected", "assignment": a})
}

// @Summary Assignment analytics overview
// @Tags assignments
// @Produce json
// @Param timeframe query string false "window like 7d"
// @Success 200 {object} assign.Overview
// @Router /api/assignments/analytics/overview [get]
func (h *Handler) AssignmentAnalytics(c *gin.Context) {
	overview, err := h.Assign.Analytics(c.Request.Context(), c.DefaultQuery("timeframe", "7d"))
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to fetch analytics", err.Error())
		return
	}
	c.JSON(http.StatusOK, overview)
}

// @Summary Assignment performance report
// @Tags assignments
// @Produce json
// @Param timeframe query string false "window like 30d"
// @Param team_id query string false "Restrict to one team"
// @Success 200 {object} assign.PerformanceReport
// @Router /api/assignments/analytics/performance [get]
func (h *Handler) AssignmentPerformance(c *gin.Context) {
	report, err := h.Assign.Performance(c.Request.Context(), c.DefaultQuery("timeframe", "30d"), c.Query("team_id"))
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to fetch performance report", err.Error())
		return
	}
	c.JSON(http.StatusOK, report)
}
