package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fieldops/backend/internal/assign"
	"github.com/fieldops/backend/internal/db"
	"github.com/fieldops/backend/internal/geo"
	"github.com/fieldops/backend/internal/geocode"
	"github.com/fieldops/backend/internal/llm"
	"github.com/fieldops/backend/internal/models"
	"github.com/fieldops/backend/internal/realtime"
)

// @Summary List tickets
// @Tags tickets
// @Produce json
// @Param status query string false "Ticket status"
// @Param priority query string false "Priority"
// @Param category query string false "Category"
// @Param assigned_to query string false "Team ID"
// @Param search query string false "Free-text search"
// @Success 200 {object} map[string]any
// @Router /api/tickets [get]
func (h *Handler) TicketsList(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	filter := db.TicketFilter{
		Status:     c.Query("status"),
		Priority:   c.Query("priority"),
		Category:   c.Query("category"),
		AssignedTo: c.Query("assigned_to"),
		Search:     c.Query("search"),
		Limit:      limit,
		Offset:     offset,
	}
	tickets, total, err := h.Store.ListTickets(c.Request.Context(), filter)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list tickets", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"tickets": tickets, "total": total, "limit": limit, "offset": offset})
}

func (h *Handler) TicketDetails(c *gin.Context) {
	ticket, err := h.Store.GetTicket(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Ticket not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to get ticket", err.Error())
		return
	}
	c.JSON(http.StatusOK, ticket)
}

type CreateTicketRequest struct {
	Title             string          `json:"title" validate:"required"`
	Description       string          `json:"description" validate:"required"`
	Priority          string          `json:"priority" validate:"omitempty,oneof=low medium high urgent emergency"`
	Category          string          `json:"category" validate:"required"`
	Location          models.Location `json:"location" validate:"required"`
	Customer          models.Customer `json:"customer" validate:"required"`
	EstimatedDuration int             `json:"estimated_duration"`
	SkillsRequired    []string        `json:"skills_required"`
}

// @Summary Create ticket
// @Description Creates a ticket and attempts an automatic assignment.
// @Tags tickets
// @Accept json
// @Produce json
// @Success 201 {object} map[string]any
// @Failure 400 {object} map[string]any
// @Router /api/tickets [post]
func (h *Handler) TicketCreate(c *gin.Context) {
	var req CreateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}
	if req.Customer.Name == "" || req.Location.Address == "" {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "customer.name and location.address are required", nil)
		return
	}

	if req.Location.Latitude == 0 && req.Location.Longitude == 0 {
		h.backfillCoordinates(c, &req.Location)
	}
	if !geo.ValidCoordinates(req.Location.Latitude, req.Location.Longitude) {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid coordinates", nil)
		return
	}

	if req.Priority == "" {
		req.Priority = models.PriorityMedium
	}
	if req.EstimatedDuration <= 0 {
		req.EstimatedDuration = 60
	}
	if len(req.SkillsRequired) == 0 {
		req.SkillsRequired = []string{req.Category}
	}

	number, err := h.Store.NextTicketNumber(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to allocate ticket number", err.Error())
		return
	}

	now := time.Now().UTC()
	ticket := models.Ticket{
		ID:                uuid.NewString(),
		TicketNumber:      number,
		Title:             req.Title,
		Description:       req.Description,
		Priority:          req.Priority,
		Category:          req.Category,
		Status:            models.TicketOpen,
		Location:          req.Location,
		Customer:          req.Customer,
		EstimatedDuration: req.EstimatedDuration,
		SkillsRequired:    req.SkillsRequired,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := h.Store.InsertTicket(c.Request.Context(), ticket); err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to create ticket", err.Error())
		return
	}
	h.publish(c, realtime.Event{Type: realtime.EventTicketCreated, Payload: ticket})

	// Assignment is best effort on intake; the ticket stands either way.
	result, err := h.Assign.AutoAssign(c.Request.Context(), ticket.ID)
	if err != nil {
		h.Logger.Info().Err(err).Str("ticket_id", ticket.ID).Msg("auto-assign on create skipped")
		c.JSON(http.StatusCreated, gin.H{
			"ticket":  ticket,
			"message": "Ticket created but could not be auto-assigned",
		})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"ticket":     ticket,
		"assignment": result.Assignment,
		"message":    "Ticket created and auto-assigned",
	})
}

type UpdateTicketRequest struct {
	Title             *string          `json:"title"`
	Description       *string          `json:"description"`
	Priority          *string          `json:"priority" validate:"omitempty,oneof=low medium high urgent emergency"`
	Category          *string          `json:"category"`
	Location          *models.Location `json:"location"`
	Customer          *models.Customer `json:"customer"`
	EstimatedDuration *int             `json:"estimated_duration"`
	SkillsRequired    []string         `json:"skills_required"`
}

func (h *Handler) TicketUpdate(c *gin.Context) {
	ticket, err := h.Store.GetTicket(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Ticket not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to get ticket", err.Error())
		return
	}

	var req UpdateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	if req.Title != nil {
		ticket.Title = *req.Title
	}
	if req.Description != nil {
		ticket.Description = *req.Description
	}
	if req.Priority != nil {
		ticket.Priority = *req.Priority
	}
	if req.Category != nil {
		ticket.Category = *req.Category
	}
	if req.Location != nil {
		if !geo.ValidCoordinates(req.Location.Latitude, req.Location.Longitude) {
			writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid coordinates", nil)
			return
		}
		ticket.Location = *req.Location
	}
	if req.Customer != nil {
		ticket.Customer = *req.Customer
	}
	if req.EstimatedDuration != nil && *req.EstimatedDuration > 0 {
		ticket.EstimatedDuration = *req.EstimatedDuration
	}
	if len(req.SkillsRequired) > 0 {
		ticket.SkillsRequired = req.SkillsRequired
	}
	ticket.UpdatedAt = time.Now().UTC()

	if err := h.Store.UpdateTicket(c.Request.Context(), ticket); err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to update ticket", err.Error())
		return
	}
	c.JSON(http.StatusOK, ticket)
}

type AssignTicketRequest struct {
	TeamID         string `json:"team_id" validate:"required"`
	AssignmentType string `json:"assignment_type" validate:"omitempty,oneof=manual override"`
}

// @Summary Manually assign ticket
// @Tags tickets
// @Accept json
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/tickets/{id}/assign [post]
func (h *Handler) TicketAssign(c *gin.Context) {
	var req AssignTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}
	if req.AssignmentType == "" {
		req.AssignmentType = models.AssignManual
	}

	assignment, err := h.Assign.ManualAssign(c.Request.Context(), c.Param("id"), req.TeamID, req.AssignmentType)
	if err != nil {
		h.writeAssignError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Ticket assigned successfully", "assignment": assignment})
}

// @Summary Auto-assign ticket
// @Description Scores the eligible pool and commits the best candidate.
// @Tags tickets
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 409 {object} map[string]any
// @Router /api/tickets/{id}/auto-assign [post]
func (h *Handler) TicketAutoAssign(c *gin.Context) {
	result, err := h.Assign.AutoAssign(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeAssignError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":      "Ticket auto-assigned successfully",
		"assignment":   result.Assignment,
		"score":        result.Score,
		"reasoning":    result.Reasoning,
		"alternatives": result.Alternatives,
	})
}

type TicketStatusRequest struct {
	Status           string   `json:"status" validate:"required,oneof=open assigned in-progress completed cancelled on-hold"`
	ActualDuration   *int     `json:"actual_duration"`
	CustomerRating   *float64 `json:"customer_rating" validate:"omitempty,gte=1,lte=5"`
	CustomerFeedback string   `json:"customer_feedback"`
}

// @Summary Update ticket status
// @Description Cascades the transition to the active assignment and the technician.
// @Tags tickets
// @Accept json
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/tickets/{id}/status [patch]
func (h *Handler) TicketStatus(c *gin.Context) {
	var req TicketStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	before, err := h.Store.GetTicket(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Ticket not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to get ticket", err.Error())
		return
	}

	ticket, err := h.Assign.UpdateTicketStatus(c.Request.Context(), c.Param("id"), assign.StatusUpdate{
		Status:           req.Status,
		ActualDuration:   req.ActualDuration,
		CustomerRating:   req.CustomerRating,
		CustomerFeedback: req.CustomerFeedback,
	})
	if err != nil {
		h.writeAssignError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":       "Ticket status updated successfully",
		"ticket":        ticket,
		"status_change": gin.H{"from": before.Status, "to": ticket.Status},
	})
}

// @Summary Ticket analytics overview
// @Tags tickets
// @Produce json
// @Param timeframe query string false "window like 7d"
// @Success 200 {object} map[string]any
// @Router /api/tickets/analytics/overview [get]
func (h *Handler) TicketAnalytics(c *gin.Context) {
	since := assign.ParseTimeframe(c.DefaultQuery("timeframe", "7d"), 7, time.Now().UTC())
	counts, err := h.Store.TicketAnalytics(c.Request.Context(), since)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to fetch analytics", err.Error())
		return
	}
	completionRate := 0.0
	if counts.Total > 0 {
		completionRate = float64(counts.Completed) / float64(counts.Total) * 100
	}
	c.JSON(http.StatusOK, gin.H{
		"total_tickets":       counts.Total,
		"open_tickets":        counts.Open,
		"in_progress_tickets": counts.InProgress,
		"completed_tickets":   counts.Completed,
		"completion_rate":     completionRate,
		"avg_completion_time": counts.AvgCompletionTime,
		"priority_breakdown":  counts.ByPriority,
		"category_breakdown":  counts.ByCategory,
	})
}

type AssistanceRequest struct {
	Query  string `json:"query" validate:"required"`
	TeamID string `json:"team_id" validate:"required"`
}

// @Summary Ticket assistance
// @Description Answers a technician question in the context of one ticket.
// @Tags ai
// @Accept json
// @Produce json
// @Success 200 {object} llm.TeamAnswer
// @Router /api/tickets/{id}/assistance [post]
func (h *Handler) TicketAssistance(c *gin.Context) {
	var req AssistanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	ticket, err := h.Store.GetTicket(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Ticket not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to get ticket", err.Error())
		return
	}

	answer, err := h.LLM.ProcessTeamQuery(c.Request.Context(), req.Query, req.TeamID, llm.QueryContext{TicketID: ticket.ID})
	if err != nil {
		h.writeAssistantError(c, err)
		return
	}
	c.JSON(http.StatusOK, answer)
}

// @Summary Troubleshooting suggestions
// @Tags ai
// @Produce json
// @Success 200 {object} llm.TroubleshootResult
// @Router /api/tickets/{id}/troubleshooting [get]
func (h *Handler) TicketTroubleshooting(c *gin.Context) {
	result, err := h.LLM.Troubleshoot(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Ticket not found", nil)
			return
		}
		h.writeAssistantError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// backfillCoordinates fills lat/lon from the street address, best effort.
func (h *Handler) backfillCoordinates(c *gin.Context, loc *models.Location) {
	if h.Geocoder == nil {
		return
	}
	query := geocode.BuildLocationQuery(*loc)
	if query == "" {
		return
	}
	lat, lon, _, _, err := h.Geocoder.Geocode(c.Request.Context(), query)
	if err != nil {
		h.Logger.Warn().Err(err).Str("query", query).Msg("geocode ticket address")
		return
	}
	loc.Latitude = lat
	loc.Longitude = lon
}

func (h *Handler) writeAssignError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		writeError(c, http.StatusNotFound, "NOT_FOUND", "Resource not found", nil)
	case errors.Is(err, assign.ErrNoAvailableTeams):
		writeError(c, http.StatusConflict, "NO_AVAILABLE_TEAMS", "No available teams match this ticket", nil)
	case errors.Is(err, assign.ErrTicketNotAssignable):
		writeError(c, http.StatusConflict, "TICKET_NOT_ASSIGNABLE", "Ticket cannot be assigned in current status", nil)
	case errors.Is(err, assign.ErrTeamUnavailable):
		writeError(c, http.StatusConflict, "TEAM_UNAVAILABLE", "Team is not available for assignment", nil)
	case errors.Is(err, assign.ErrInvalidTransition):
		writeError(c, http.StatusBadRequest, "INVALID_TRANSITION", "Invalid status transition", err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Operation failed", err.Error())
	}
}

func (h *Handler) writeAssistantError(c *gin.Context, err error) {
	var rl llm.RateLimitError
	if errors.As(err, &rl) {
		if rl.RetryAfter > 0 {
			c.Header("Retry-After", strconv.Itoa(int(rl.RetryAfter.Seconds())))
		}
		writeError(c, http.StatusTooManyRequests, "RATE_LIMITED", "Assistant is rate limited", rl.Error())
		return
	}
	writeError(c, http.StatusBadGateway, "ASSISTANT_ERROR", "Assistant request failed", err.Error())
}
