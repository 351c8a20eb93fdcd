package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/fieldops/backend/internal/http/middleware"
)

func newTestHandler() *Handler {
	gin.SetMode(gin.TestMode)
	return &Handler{
		Validator: validator.New(),
		Logger:    zerolog.Nop(),
	}
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error envelope: %v (%s)", err, w.Body.String())
	}
	return resp.Error.Code
}

func TestTicketCreateRejectsMissingFields(t *testing.T) {
	h := newTestHandler()
	r := gin.New()
	r.POST("/api/tickets", h.TicketCreate)

	w := doJSON(t, r, http.MethodPost, "/api/tickets", gin.H{"title": "only a title"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if code := errorCode(t, w); code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %s", code)
	}
}

func TestTicketCreateRejectsBadCoordinates(t *testing.T) {
	h := newTestHandler()
	r := gin.New()
	r.POST("/api/tickets", h.TicketCreate)

	w := doJSON(t, r, http.MethodPost, "/api/tickets", gin.H{
		"title":       "Breaker fault",
		"description": "No power on the second floor",
		"category":    "electrical",
		"location": gin.H{
			"address":   "12 Jalan Ampang",
			"latitude":  200,
			"longitude": 101.7,
		},
		"customer": gin.H{"name": "Aminah", "email": "a@example.test", "phone": "+60-3-1234567"},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if code := errorCode(t, w); code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %s", code)
	}
}

func TestTicketAssignRequiresTeamID(t *testing.T) {
	h := newTestHandler()
	r := gin.New()
	r.POST("/api/tickets/:id/assign", h.TicketAssign)

	w := doJSON(t, r, http.MethodPost, "/api/tickets/t-1/assign", gin.H{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestTicketStatusRejectsUnknownStatus(t *testing.T) {
	h := newTestHandler()
	r := gin.New()
	r.PATCH("/api/tickets/:id/status", h.TicketStatus)

	w := doJSON(t, r, http.MethodPatch, "/api/tickets/t-1/status", gin.H{"status": "vanished"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestTeamCreateRejectsBadEmail(t *testing.T) {
	h := newTestHandler()
	r := gin.New()
	r.POST("/api/teams", h.TeamCreate)

	w := doJSON(t, r, http.MethodPost, "/api/teams", gin.H{
		"name":             "Crew 001",
		"email":            "not-an-email",
		"phone":            "+60-12-3456789",
		"skills":           []string{"electrical"},
		"current_location": gin.H{"latitude": 3.14, "longitude": 101.69},
		"hourly_rate":      45,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if code := errorCode(t, w); code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %s", code)
	}
}

func TestTeamsNearbyRejectsBadCoordinates(t *testing.T) {
	h := newTestHandler()
	r := gin.New()
	r.GET("/api/teams/nearby", h.TeamsNearby)

	req, _ := http.NewRequest(http.MethodGet, "/api/teams/nearby?lat=abc&lon=101.7", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestAssignmentStatusRejectsUnknownStatus(t *testing.T) {
	h := newTestHandler()
	r := gin.New()
	r.PATCH("/api/assignments/:id/status", h.AssignmentStatus)

	w := doJSON(t, r, http.MethodPatch, "/api/assignments/a-1/status", gin.H{"status": "teleported"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestAssignmentRejectRequiresReason(t *testing.T) {
	h := newTestHandler()
	r := gin.New()
	r.POST("/api/assignments/:id/reject", h.AssignmentReject)

	w := doJSON(t, r, http.MethodPost, "/api/assignments/a-1/reject", gin.H{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestAIQueryRequiresQuery(t *testing.T) {
	h := newTestHandler()
	r := gin.New()
	r.POST("/api/ai/query", h.AIQuery)

	w := doJSON(t, r, http.MethodPost, "/api/ai/query", gin.H{"chat_history": []gin.H{}})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestAdminKeyMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.AdminKey("secret"))
	r.GET("/guarded", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req, _ := http.NewRequest(http.MethodGet, "/guarded", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("missing key should be rejected, got %d", w.Code)
	}

	req, _ = http.NewRequest(http.MethodGet, "/guarded", nil)
	req.Header.Set("X-Admin-Key", "secret")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("valid key should pass, got %d", w.Code)
	}
}

func TestAdminKeyMiddlewareDisabledWhenUnset(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.AdminKey(""))
	r.GET("/guarded", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req, _ := http.NewRequest(http.MethodGet, "/guarded", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("unset key should disable the guard, got %d", w.Code)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RequestID())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Header().Get("X-Request-Id") == "" {
		t.Fatal("expected a generated request id header")
	}

	req, _ = http.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "req_known")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-Id"); got != "req_known" {
		t.Fatalf("expected the caller's request id to be echoed, got %s", got)
	}
}
