package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/fieldops/backend/internal/assign"
	"github.com/fieldops/backend/internal/db"
	"github.com/fieldops/backend/internal/geocode"
	"github.com/fieldops/backend/internal/llm"
	"github.com/fieldops/backend/internal/realtime"
)

type Handler struct {
	Store     *db.Store
	Assign    *assign.Service
	LLM       *llm.Service
	Geocoder  geocode.Geocoder
	Hub       *realtime.Hub
	Events    assign.EventSink
	Validator *validator.Validate
	Logger    zerolog.Logger
	AdminKey  string
}

func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		writeError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "ws_clients": h.clientCount()})
}

func (h *Handler) clientCount() int {
	if h.Hub == nil {
		return 0
	}
	return h.Hub.ClientCount()
}

func (h *Handler) publish(c *gin.Context, e realtime.Event) {
	if h.Events == nil {
		return
	}
	e.Time = time.Now().UTC()
	h.Events.Publish(c.Request.Context(), e)
}

func writeError(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}
