package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fieldops/backend/internal/llm"
)

type AdminQueryRequest struct {
	Query       string            `json:"query" validate:"required"`
	ChatHistory []llm.ChatMessage `json:"chat_history"`
}

// @Summary Admin assistant query
// @Description Answers a dashboard question against a live system snapshot.
// @Tags ai
// @Accept json
// @Produce json
// @Success 200 {object} llm.AdminAnswer
// @Failure 429 {object} map[string]any
// @Router /api/ai/query [post]
func (h *Handler) AIQuery(c *gin.Context) {
	var req AdminQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	answer, err := h.LLM.ProcessAdminQuery(c.Request.Context(), req.Query, req.ChatHistory)
	if err != nil {
		h.writeAssistantError(c, err)
		return
	}
	c.JSON(http.StatusOK, answer)
}

type AITeamQueryRequest struct {
	Query    string `json:"query" validate:"required"`
	TeamID   string `json:"team_id" validate:"required"`
	TicketID string `json:"ticket_id"`
}

// @Summary Technician assistant query
// @Tags ai
// @Accept json
// @Produce json
// @Success 200 {object} llm.TeamAnswer
// @Router /api/ai/team-query [post]
func (h *Handler) AITeamQuery(c *gin.Context) {
	var req AITeamQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	answer, err := h.LLM.ProcessTeamQuery(c.Request.Context(), req.Query, req.TeamID, llm.QueryContext{TicketID: req.TicketID})
	if err != nil {
		h.writeAssistantError(c, err)
		return
	}
	c.JSON(http.StatusOK, answer)
}
