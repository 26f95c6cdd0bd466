package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/eduaid/eduaid-hub/internal/application/command"
	"github.com/eduaid/eduaid-hub/internal/application/query"
	"github.com/eduaid/eduaid-hub/internal/infrastructure/auth"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth handles GET /health.
func (s *Server) handleHealth(c *gin.Context) {
	status := s.deps.HealthChecker.Check(c.Request.Context())
	if !status.Healthy {
		writeJSON(c, http.StatusServiceUnavailable, status)
		return
	}
	writeJSON(c, http.StatusOK, status)
}

// ══════════════════════════════════════════════════════════════════════════════
// AUTH HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type verify2FARequest struct {
	Code      string `json:"code" binding:"required"`
	TempToken string `json:"tempToken" binding:"required"`
}

// handleLogin handles POST /api/v1/auth/login.
func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_input", "email and password are required")
		return
	}

	res, err := s.deps.Auth.Login(c.Request.Context(), auth.Credentials{Email: req.Email, Password: req.Password})
	if err != nil {
		s.handleError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}

// handleVerify2FA handles POST /api/v1/auth/2fa.
func (s *Server) handleVerify2FA(c *gin.Context) {
	var req verify2FARequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_input", "code and tempToken are required")
		return
	}

	token, err := s.deps.Auth.Verify2FA(c.Request.Context(), req.Code, req.TempToken)
	if err != nil {
		s.handleError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, auth.LoginResult{Token: token})
}

// handleLogout handles POST /api/v1/auth/logout.
// The learner's session is closed too, dropping its pending delayed notices.
func (s *Server) handleLogout(c *gin.Context) {
	if err := s.deps.Auth.Logout(c.Request.Context(), c.GetString(ctxKeyToken)); err != nil {
		s.handleError(c, err)
		return
	}
	closed := false
	if s.deps.Sessions != nil {
		closed = s.deps.Sessions.Close(userID(c))
	}
	writeJSON(c, http.StatusOK, gin.H{"loggedOut": true, "sessionClosed": closed})
}

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG
// ══════════════════════════════════════════════════════════════════════════════

// handleGetCatalog handles GET /api/v1/catalog.
func (s *Server) handleGetCatalog(c *gin.Context) {
	writeJSON(c, http.StatusOK, gin.H{
		"lessons":    s.deps.Catalog.Lessons(),
		"activities": s.deps.Catalog.Activities(),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// LESSON HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type lessonProgressRequest struct {
	// Percent is a pointer so that a missing field is told apart from 0.
	Percent *int `json:"percent" binding:"required"`
}

// handleStartLesson handles POST /api/v1/lessons/:id/start.
func (s *Server) handleStartLesson(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	res, err := s.deps.StartLesson.Handle(c.Request.Context(), command.StartLessonCommand{
		UserID:   userID(c),
		LessonID: int(id),
	})
	if err != nil {
		s.handleError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}

// handleUpdateLessonProgress handles PUT /api/v1/lessons/:id/progress.
func (s *Server) handleUpdateLessonProgress(c *gin.Context) {
	s.updateLessonProgress(c, false)
}

// handleSaveAndExitLesson handles POST /api/v1/lessons/:id/save-exit.
func (s *Server) handleSaveAndExitLesson(c *gin.Context) {
	s.updateLessonProgress(c, true)
}

func (s *Server) updateLessonProgress(c *gin.Context, exit bool) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req lessonProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_input", "percent is required")
		return
	}

	res, err := s.deps.UpdateLessonProgress.Handle(c.Request.Context(), command.UpdateLessonProgressCommand{
		UserID:   userID(c),
		LessonID: int(id),
		Percent:  *req.Percent,
		Exit:     exit,
	})
	if err != nil {
		s.handleError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}

// handleCompleteLesson handles POST /api/v1/lessons/:id/complete.
func (s *Server) handleCompleteLesson(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	res, err := s.deps.CompleteLesson.Handle(c.Request.Context(), command.CompleteLessonCommand{
		UserID:   userID(c),
		LessonID: int(id),
	})
	if err != nil {
		s.handleError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVITY HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type completeActivityRequest struct {
	Score    *int `json:"score" binding:"required"`
	MaxScore *int `json:"maxScore" binding:"required"`
}

// handleCompleteActivity handles POST /api/v1/activities/:id/complete.
func (s *Server) handleCompleteActivity(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req completeActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_input", "score and maxScore are required")
		return
	}

	res, err := s.deps.CompleteActivity.Handle(c.Request.Context(), command.CompleteActivityCommand{
		UserID:     userID(c),
		ActivityID: int(id),
		Score:      *req.Score,
		MaxScore:   *req.MaxScore,
	})
	if err != nil {
		s.handleError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}

// ══════════════════════════════════════════════════════════════════════════════
// READ MODELS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetDashboard handles GET /api/v1/dashboard.
func (s *Server) handleGetDashboard(c *gin.Context) {
	res, err := s.deps.GetDashboard.Handle(c.Request.Context(), query.GetDashboardQuery{UserID: userID(c)})
	if err != nil {
		s.handleError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}

// handleGetCalendar handles GET /api/v1/calendar?upcoming=true&limit=5.
func (s *Server) handleGetCalendar(c *gin.Context) {
	res, err := s.deps.GetCalendar.Handle(c.Request.Context(), query.GetCalendarQuery{
		UserID:       userID(c),
		UpcomingOnly: queryBool(c, "upcoming"),
		Limit:        queryInt(c, "limit", 0),
	})
	if err != nil {
		s.handleError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}

// handleGetProgress handles GET /api/v1/progress.
func (s *Server) handleGetProgress(c *gin.Context) {
	res, err := s.deps.GetProgress.Handle(c.Request.Context(), query.GetProgressQuery{UserID: userID(c)})
	if err != nil {
		s.handleError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetNotifications handles GET /api/v1/notifications?unread=true&page=1&page_size=20.
func (s *Server) handleGetNotifications(c *gin.Context) {
	res, err := s.deps.GetNotifications.Handle(c.Request.Context(), query.GetNotificationsQuery{
		UserID:     userID(c),
		UnreadOnly: queryBool(c, "unread"),
		Page:       queryInt(c, "page", 1),
		PageSize:   queryInt(c, "page_size", 20),
	})
	if err != nil {
		s.handleError(c, err)
		return
	}
	writeJSONWithMeta(c, http.StatusOK, res, &ResponseMeta{
		TotalCount: res.Total,
		Page:       res.Page,
		PageSize:   res.PageSize,
		HasMore:    res.Page*res.PageSize < res.Total,
	})
}

// handleMarkNotificationRead handles POST /api/v1/notifications/:id/read.
func (s *Server) handleMarkNotificationRead(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	s.markNotificationsRead(c, command.MarkNotificationsReadCommand{UserID: userID(c), NotificationID: id})
}

// handleMarkAllNotificationsRead handles POST /api/v1/notifications/read-all.
func (s *Server) handleMarkAllNotificationsRead(c *gin.Context) {
	s.markNotificationsRead(c, command.MarkNotificationsReadCommand{UserID: userID(c), All: true})
}

func (s *Server) markNotificationsRead(c *gin.Context, cmd command.MarkNotificationsReadCommand) {
	res, err := s.deps.MarkNotificationsRead.Handle(c.Request.Context(), cmd)
	if err != nil {
		s.handleError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPER FUNCTIONS
// ══════════════════════════════════════════════════════════════════════════════

// pathID parses the :id route parameter and writes a 400 when it is not a
// positive integer.
func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(c, http.StatusBadRequest, "invalid_id", "id must be a positive integer")
		return 0, false
	}
	return id, true
}

// queryInt gets an integer query parameter with a default value.
func queryInt(c *gin.Context, key string, defaultVal int) int {
	val := c.Query(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

// queryBool gets a boolean query parameter.
func queryBool(c *gin.Context, key string) bool {
	val := c.Query(key)
	return val == "true" || val == "1" || val == "yes"
}
