package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fieldops/backend/internal/assign"
	"github.com/fieldops/backend/internal/db"
	"github.com/fieldops/backend/internal/geo"
	"github.com/fieldops/backend/internal/llm"
	"github.com/fieldops/backend/internal/models"
	"github.com/fieldops/backend/internal/realtime"
)

// @Summary List field teams
// @Tags teams
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/teams [get]
func (h *Handler) TeamsList(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	filter := db.TeamFilter{
		Status:    c.Query("status"),
		Available: c.Query("available") == "true",
		Search:    c.Query("search"),
		Limit:     limit,
		Offset:    offset,
	}
	if skills := c.Query("skills"); skills != "" {
		filter.Skills = strings.Split(skills, ",")
	}

	teams, total, err := h.Store.ListTeams(c.Request.Context(), filter)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list teams", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"teams": teams, "total": total, "limit": limit, "offset": offset})
}

func (h *Handler) TeamDetails(c *gin.Context) {
	team, err := h.Store.GetTeam(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Team not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to get team", err.Error())
		return
	}
	c.JSON(http.StatusOK, team)
}

type CreateTeamRequest struct {
	Name            string               `json:"name" validate:"required"`
	Email           string               `json:"email" validate:"required,email"`
	Phone           string               `json:"phone" validate:"required"`
	Skills          []string             `json:"skills" validate:"required,min=1"`
	CurrentLocation models.TeamLocation  `json:"current_location" validate:"required"`
	HourlyRate      float64              `json:"hourly_rate" validate:"required,gt=0"`
	TravelCostPerKm float64              `json:"travel_cost_per_km"`
	WorkingHours    *models.WorkingHours `json:"working_hours"`
	Timezone        string               `json:"timezone"`
}

// @Summary Create field team
// @Tags teams
// @Accept json
// @Produce json
// @Success 201 {object} models.FieldTeam
// @Router /api/teams [post]
func (h *Handler) TeamCreate(c *gin.Context) {
	var req CreateTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}
	if !geo.ValidCoordinates(req.CurrentLocation.Latitude, req.CurrentLocation.Longitude) {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid coordinates", nil)
		return
	}

	if req.TravelCostPerKm <= 0 {
		req.TravelCostPerKm = 0.5
	}
	hours := models.WorkingHours{Start: "08:00", End: "17:00"}
	if req.WorkingHours != nil {
		hours = *req.WorkingHours
	}
	tz := req.Timezone
	if tz == "" {
		tz = "UTC"
	}

	now := time.Now().UTC()
	req.CurrentLocation.LastUpdated = now
	team := models.FieldTeam{
		ID:              uuid.NewString(),
		Name:            req.Name,
		Email:           req.Email,
		Phone:           req.Phone,
		Skills:          req.Skills,
		CurrentLocation: req.CurrentLocation,
		Availability: models.Availability{
			IsAvailable:  true,
			WorkingHours: hours,
			Timezone:     tz,
		},
		Cost: models.Cost{
			HourlyRate:      req.HourlyRate,
			TravelCostPerKm: req.TravelCostPerKm,
		},
		Status:    models.TeamActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.Store.InsertTeam(c.Request.Context(), team); err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to create team", err.Error())
		return
	}
	c.JSON(http.StatusCreated, team)
}

type UpdateTeamRequest struct {
	Name            *string              `json:"name"`
	Email           *string              `json:"email" validate:"omitempty,email"`
	Phone           *string              `json:"phone"`
	Skills          []string             `json:"skills"`
	CurrentLocation *models.TeamLocation `json:"current_location"`
	HourlyRate      *float64             `json:"hourly_rate" validate:"omitempty,gt=0"`
	TravelCostPerKm *float64             `json:"travel_cost_per_km" validate:"omitempty,gt=0"`
}

func (h *Handler) TeamUpdate(c *gin.Context) {
	team, err := h.Store.GetTeam(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Team not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to get team", err.Error())
		return
	}

	var req UpdateTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	if req.Name != nil {
		team.Name = *req.Name
	}
	if req.Email != nil {
		team.Email = *req.Email
	}
	if req.Phone != nil {
		team.Phone = *req.Phone
	}
	if len(req.Skills) > 0 {
		team.Skills = req.Skills
	}
	if req.CurrentLocation != nil {
		if !geo.ValidCoordinates(req.CurrentLocation.Latitude, req.CurrentLocation.Longitude) {
			writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid coordinates", nil)
			return
		}
		req.CurrentLocation.LastUpdated = time.Now().UTC()
		team.CurrentLocation = *req.CurrentLocation
	}
	if req.HourlyRate != nil {
		team.Cost.HourlyRate = *req.HourlyRate
	}
	if req.TravelCostPerKm != nil {
		team.Cost.TravelCostPerKm = *req.TravelCostPerKm
	}
	team.UpdatedAt = time.Now().UTC()

	if err := h.Store.UpdateTeam(c.Request.Context(), team); err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to update team", err.Error())
		return
	}
	c.JSON(http.StatusOK, team)
}

type TeamLocationRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address"`
}

// @Summary Update team location
// @Tags teams
// @Accept json
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/teams/{id}/location [patch]
func (h *Handler) TeamLocation(c *gin.Context) {
	var req TeamLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if !geo.ValidCoordinates(req.Latitude, req.Longitude) {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid coordinates", nil)
		return
	}

	team, err := h.Store.GetTeam(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Team not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to get team", err.Error())
		return
	}

	loc := models.TeamLocation{
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		Address:     req.Address,
		LastUpdated: time.Now().UTC(),
	}
	if loc.Address == "" && h.Geocoder != nil {
		// best effort; a failed lookup keeps the previous address
		if name, err := h.Geocoder.Reverse(c.Request.Context(), loc.Latitude, loc.Longitude); err == nil {
			loc.Address = name
		}
	}
	if loc.Address == "" {
		loc.Address = team.CurrentLocation.Address
	}
	if err := h.Store.UpdateTeamLocation(c.Request.Context(), team.ID, loc); err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to update location", err.Error())
		return
	}
	h.publish(c, realtime.Event{Type: realtime.EventTeamLocation, TeamID: team.ID, Payload: loc})
	c.JSON(http.StatusOK, gin.H{"message": "Location updated successfully", "location": loc})
}

type TeamAvailabilityRequest struct {
	IsAvailable  *bool                `json:"is_available"`
	WorkingHours *models.WorkingHours `json:"working_hours"`
	Timezone     *string              `json:"timezone"`
}

// @Summary Update team availability
// @Tags teams
// @Accept json
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/teams/{id}/availability [patch]
func (h *Handler) TeamAvailability(c *gin.Context) {
	var req TeamAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}

	team, err := h.Store.GetTeam(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Team not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to get team", err.Error())
		return
	}

	av := team.Availability
	if req.IsAvailable != nil {
		av.IsAvailable = *req.IsAvailable
	}
	if req.WorkingHours != nil {
		av.WorkingHours = *req.WorkingHours
	}
	if req.Timezone != nil {
		av.Timezone = *req.Timezone
	}
	if err := h.Store.UpdateTeamAvailability(c.Request.Context(), team.ID, av); err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to update availability", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Availability updated successfully", "availability": av})
}

type TeamStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active inactive busy offline"`
}

func (h *Handler) TeamStatus(c *gin.Context) {
	var req TeamStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	if err := h.Store.UpdateTeamStatus(c.Request.Context(), c.Param("id"), req.Status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Team not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to update status", err.Error())
		return
	}
	h.publish(c, realtime.Event{Type: realtime.EventTeamStatus, TeamID: c.Param("id"), Payload: gin.H{"status": req.Status}})
	c.JSON(http.StatusOK, gin.H{"message": "Status updated successfully", "status": req.Status})
}

// @Summary Team performance
// @Tags teams
// @Produce json
// @Param timeframe query string false "window like 30d"
// @Success 200 {object} map[string]any
// @Router /api/teams/{id}/performance [get]
func (h *Handler) TeamPerformance(c *gin.Context) {
	since := assign.ParseTimeframe(c.DefaultQuery("timeframe", "30d"), 30, time.Now().UTC())
	rollups, err := h.Store.ListAssignmentRollups(c.Request.Context(), since, c.Param("id"))
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to fetch performance data", err.Error())
		return
	}

	perf := gin.H{
		"total_assignments":       len(rollups),
		"completed_assignments":   0,
		"average_rating":          0.0,
		"average_completion_time": 0.0,
		"total_hours":             0.0,
		"efficiency":              0.0,
		"category_breakdown":      map[string]int{},
		"recent_activity":         []gin.H{},
	}

	var completed int
	var ratingSum, timeSum, effSum float64
	categories := map[string]int{}
	recent := []gin.H{}
	for i, r := range rollups {
		categories[r.Category]++
		if i < 10 {
			recent = append(recent, gin.H{
				"status":       r.Assignment.Status,
				"assigned_at":  r.Assignment.AssignedAt,
				"completed_at": r.Assignment.CompletedAt,
				"rating":       r.Assignment.Performance.CustomerRating,
			})
		}
		if r.Assignment.Status != models.AssignmentCompleted {
			continue
		}
		completed++
		if r.Assignment.Performance.CustomerRating != nil {
			ratingSum += *r.Assignment.Performance.CustomerRating
		}
		if r.Assignment.Performance.CompletionTime != nil {
			timeSum += float64(*r.Assignment.Performance.CompletionTime)
		}
		if r.Assignment.Performance.Efficiency != nil {
			effSum += *r.Assignment.Performance.Efficiency
		} else {
			effSum++
		}
	}
	perf["completed_assignments"] = completed
	if completed > 0 {
		perf["average_rating"] = ratingSum / float64(completed)
		perf["average_completion_time"] = timeSum / float64(completed)
		perf["total_hours"] = timeSum / 60
		perf["efficiency"] = effSum / float64(completed)
	}
	perf["category_breakdown"] = categories
	perf["recent_activity"] = recent
	c.JSON(http.StatusOK, perf)
}

// nearbyPoolCap bounds the available-team pool scanned per proximity query;
// fleets above this size only see the first page of available teams.
const nearbyPoolCap = 500

// @Summary Nearby teams
// @Tags teams
// @Produce json
// @Param lat query number true "Latitude"
// @Param lon query number true "Longitude"
// @Param radius query number false "Radius km, default 50"
// @Success 200 {object} map[string]any
// @Router /api/teams/nearby [get]
func (h *Handler) TeamsNearby(c *gin.Context) {
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lon, errLon := strconv.ParseFloat(c.Query("lon"), 64)
	if errLat != nil || errLon != nil || !geo.ValidCoordinates(lat, lon) {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid coordinates", nil)
		return
	}
	radius, err := strconv.ParseFloat(c.DefaultQuery("radius", "50"), 64)
	if err != nil || radius <= 0 {
		radius = 50
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if limit <= 0 {
		limit = 10
	}

	teams, _, err := h.Store.ListTeams(c.Request.Context(), db.TeamFilter{
		Status:    models.TeamActive,
		Available: true,
		Limit:     nearbyPoolCap,
	})
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to fetch teams", err.Error())
		return
	}

	nearby := geo.NearbyTeams(lat, lon, teams, radius)
	if len(nearby) > limit {
		nearby = nearby[:limit]
	}
	c.JSON(http.StatusOK, gin.H{
		"location":     gin.H{"latitude": lat, "longitude": lon},
		"radius":       radius,
		"nearby_teams": nearby,
	})
}

// @Summary Team journey
// @Description Orders the technician's open assignments into a travel plan.
// @Tags teams
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/teams/{id}/journey [get]
func (h *Handler) TeamJourney(c *gin.Context) {
	team, err := h.Store.GetTeam(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Team not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to get team", err.Error())
		return
	}

	var active []models.Assignment
	for _, status := range []string{models.AssignmentAssigned, models.AssignmentAccepted, models.AssignmentInProgress} {
		batch, _, err := h.Store.ListAssignments(c.Request.Context(), db.AssignmentFilter{TeamID: team.ID, Status: status})
		if err != nil {
			writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to fetch assignments", err.Error())
			return
		}
		active = append(active, batch...)
	}

	if len(active) == 0 {
		c.JSON(http.StatusOK, gin.H{
			"message":          "No current assignments",
			"current_location": team.CurrentLocation,
			"journey":          nil,
		})
		return
	}

	waypoints := make([]geo.Waypoint, 0, len(active))
	stops := make([]gin.H, 0, len(active))
	for _, a := range active {
		ticket, err := h.Store.GetTicket(c.Request.Context(), a.TicketID)
		if err != nil {
			continue
		}
		waypoints = append(waypoints, geo.Waypoint{
			ID:           ticket.ID,
			TicketNumber: ticket.TicketNumber,
			Latitude:     ticket.Location.Latitude,
			Longitude:    ticket.Location.Longitude,
		})
		stops = append(stops, gin.H{
			"ticket_number":          ticket.TicketNumber,
			"title":                  ticket.Title,
			"priority":               ticket.Priority,
			"status":                 a.Status,
			"estimated_arrival_time": a.EstimatedArrivalTime,
		})
	}

	journey := geo.PlanJourney(team.CurrentLocation.Latitude, team.CurrentLocation.Longitude, waypoints)
	c.JSON(http.StatusOK, gin.H{
		"current_location": team.CurrentLocation,
		"journey":          journey,
		"assignments":      stops,
	})
}

type TeamQueryRequest struct {
	Query    string `json:"query" validate:"required"`
	TicketID string `json:"ticket_id"`
}

// @Summary Team assistance
// @Tags ai
// @Accept json
// @Produce json
// @Success 200 {object} llm.TeamAnswer
// @Router /api/teams/{id}/assistance [post]
func (h *Handler) TeamAssistance(c *gin.Context) {
	var req TeamQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	answer, err := h.LLM.ProcessTeamQuery(c.Request.Context(), req.Query, c.Param("id"), llm.QueryContext{TicketID: req.TicketID})
	if err != nil {
		h.writeAssistantError(c, err)
		return
	}
	c.JSON(http.StatusOK, answer)
}

// @Summary Performance insights
// @Tags ai
// @Produce json
// @Success 200 {object} llm.InsightsResult
// @Router /api/teams/{id}/insights [get]
func (h *Handler) TeamInsights(c *gin.Context) {
	result, err := h.LLM.PerformanceInsights(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeAssistantError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
