package study

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/eleven-am/focus-backend/internal/dto"
	"github.com/eleven-am/focus-backend/internal/shared"
	"github.com/labstack/echo/v4"
)

const (
	defaultDurationMinutes = 25
	maxDurationMinutes     = 480
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger.With("handler", "study"),
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/sessions", h.StartSession)
	g.GET("/sessions/:id", h.GetSession)
	g.POST("/sessions/:id/pause", h.PauseSession)
	g.POST("/sessions/:id/resume", h.ResumeSession)
	g.POST("/sessions/:id/end", h.EndSession)
	g.GET("/sessions/:id/timeline", h.GetTimeline)
	g.GET("/users/:user_id/sessions", h.ListHistory)
}

// @Summary      Start study session
// @Description  Opens a timed study session for a user
// @Tags         study
// @Accept       json
// @Produce      json
// @Param        request  body      dto.StartSessionRequest  true  "Session settings"
// @Success      201      {object}  dto.SessionResponse
// @Failure      400      {object}  shared.APIError
// @Failure      500      {object}  shared.APIError
// @Router       /study/sessions [post]
func (h *Handler) StartSession(c echo.Context) error {
	var req dto.StartSessionRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_request", "invalid request body")
	}

	if req.UserID == "" {
		return shared.NewAPIError("validation_failed", "invalid session settings").
			WithDetails([]dto.ValidationError{{Field: "user_id", Message: "user_id is required"}}).
			ToHTTP(http.StatusBadRequest)
	}
	if req.Duration == 0 {
		req.Duration = defaultDurationMinutes
	}
	if req.Duration < 0 || req.Duration > maxDurationMinutes {
		return shared.NewAPIError("validation_failed", "invalid session settings").
			WithDetails([]dto.ValidationError{{Field: "duration", Message: "duration must be between 1 and 480 minutes"}}).
			ToHTTP(http.StatusBadRequest)
	}

	sess, err := h.service.Start(c.Request().Context(), Settings{
		UserID:                 req.UserID,
		DurationMinutes:        req.Duration,
		Subject:                req.Subject,
		StudyMode:              req.StudyMode,
		Difficulty:             req.Difficulty,
		BreakPreference:        req.BreakPreference,
		DistractionSensitivity: req.DistractionSensitivity,
	})
	if err != nil {
		h.logger.Error("failed to start session", "error", err, "user_id", req.UserID)
		return shared.InternalError("start_failed", "failed to start session")
	}

	return c.JSON(http.StatusCreated, ToResponse(sess, time.Now()))
}

// @Summary      Get study session
// @Tags         study
// @Produce      json
// @Param        id   path      string  true  "Session ID"
// @Success      200  {object}  dto.SessionResponse
// @Failure      404  {object}  shared.APIError
// @Router       /study/sessions/{id} [get]
func (h *Handler) GetSession(c echo.Context) error {
	sess, err := h.service.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail("get", c.Param("id"), err)
	}
	return c.JSON(http.StatusOK, ToResponse(sess, time.Now()))
}

// @Summary      Pause study session
// @Tags         study
// @Produce      json
// @Param        id   path      string  true  "Session ID"
// @Success      200  {object}  dto.SessionResponse
// @Failure      404  {object}  shared.APIError
// @Failure      409  {object}  shared.APIError
// @Router       /study/sessions/{id}/pause [post]
func (h *Handler) PauseSession(c echo.Context) error {
	sess, err := h.service.Pause(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail("pause", c.Param("id"), err)
	}
	return c.JSON(http.StatusOK, ToResponse(sess, time.Now()))
}

// @Summary      Resume study session
// @Tags         study
// @Produce      json
// @Param        id   path      string  true  "Session ID"
// @Success      200  {object}  dto.SessionResponse
// @Failure      404  {object}  shared.APIError
// @Failure      409  {object}  shared.APIError
// @Router       /study/sessions/{id}/resume [post]
func (h *Handler) ResumeSession(c echo.Context) error {
	sess, err := h.service.Resume(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail("resume", c.Param("id"), err)
	}
	return c.JSON(http.StatusOK, ToResponse(sess, time.Now()))
}

// @Summary      End study session
// @Description  Ends the session, archives its summary and drops its frame timeline
// @Tags         study
// @Accept       json
// @Produce      json
// @Param        id       path      string                 true   "Session ID"
// @Param        request  body      dto.EndSessionRequest  false  "Completion flag"
// @Success      200      {object}  dto.SessionResponse
// @Failure      404      {object}  shared.APIError
// @Failure      409      {object}  shared.APIError
// @Router       /study/sessions/{id}/end [post]
func (h *Handler) EndSession(c echo.Context) error {
	var req dto.EndSessionRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return shared.BadRequest("invalid_request", "invalid request body")
		}
	}

	sess, err := h.service.End(c.Request().Context(), c.Param("id"), req.Completed)
	if err != nil {
		return h.fail("end", c.Param("id"), err)
	}
	return c.JSON(http.StatusOK, ToResponse(sess, time.Now()))
}

// @Summary      Get session timeline
// @Description  Returns stored frame analysis results, oldest first
// @Tags         study
// @Produce      json
// @Param        id     path      string  true   "Session ID"
// @Param        start  query     int     false  "Start timestamp (ms)"
// @Param        end    query     int     false  "End timestamp (ms)"
// @Param        limit  query     int     false  "Max results" default(100)
// @Success      200    {object}  dto.TimelineResponse
// @Failure      400    {object}  shared.APIError
// @Failure      404    {object}  shared.APIError
// @Router       /study/sessions/{id}/timeline [get]
func (h *Handler) GetTimeline(c echo.Context) error {
	id := c.Param("id")
	start, err := queryInt64(c, "start")
	if err != nil {
		return shared.BadRequest("invalid_start", "start must be a millisecond timestamp")
	}
	end, err := queryInt64(c, "end")
	if err != nil {
		return shared.BadRequest("invalid_end", "end must be a millisecond timestamp")
	}
	limit := 100
	if v := c.QueryParam("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil && l > 0 && l <= 1000 {
			limit = l
		}
	}

	results, err := h.service.Timeline(c.Request().Context(), id, start, end, limit)
	if err != nil {
		return h.fail("timeline", id, err)
	}

	return c.JSON(http.StatusOK, dto.TimelineResponse{
		SessionID: id,
		Count:     len(results),
		Results:   results,
	})
}

// @Summary      List session history
// @Tags         study
// @Produce      json
// @Param        user_id  path      string  true   "User ID"
// @Param        limit    query     int     false  "Max sessions" default(20)
// @Success      200      {object}  dto.HistoryResponse
// @Failure      500      {object}  shared.APIError
// @Router       /study/users/{user_id}/sessions [get]
func (h *Handler) ListHistory(c echo.Context) error {
	userID := c.Param("user_id")
	limit := 20
	if v := c.QueryParam("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}

	records, err := h.service.History(c.Request().Context(), userID, limit)
	if err != nil {
		h.logger.Error("failed to list history", "error", err, "user_id", userID)
		return shared.InternalError("list_failed", "failed to list sessions")
	}

	resp := dto.HistoryResponse{
		UserID:        userID,
		Sessions:      make([]dto.HistoryEntry, len(records)),
		TotalSessions: len(records),
	}
	var total int
	for i, r := range records {
		resp.Sessions[i] = recordToEntry(r)
		total += r.FocusScore
	}
	if len(records) > 0 {
		resp.AverageFocus = total / len(records)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) fail(op, id string, err error) error {
	httpErr := shared.FromError(err, "session")
	if httpErr.Code >= http.StatusInternalServerError {
		h.logger.Error("session operation failed", "op", op, "session_id", id, "error", err)
	}
	return httpErr
}

func queryInt64(c echo.Context, name string) (int64, error) {
	v := c.QueryParam(name)
	if v == "" {
		return 0, nil
	}
	return strconv.ParseInt(v, 10, 64)
}

func ToResponse(s *Session, now time.Time) dto.SessionResponse {
	pauses := make([]dto.PauseResponse, len(s.Pauses))
	for i, p := range s.Pauses {
		pauses[i] = dto.PauseResponse{StartedAt: p.StartedAt, EndedAt: p.EndedAt}
	}
	events := make([]dto.EventResponse, len(s.Events))
	for i, e := range s.Events {
		events[i] = dto.EventResponse{Type: e.Type, Message: e.Message, Timestamp: e.Timestamp}
	}

	score := s.FocusScore()
	resp := dto.SessionResponse{
		ID:                     s.ID,
		UserID:                 s.UserID,
		Subject:                s.Subject,
		StudyMode:              s.StudyMode,
		Difficulty:             s.Difficulty,
		BreakPreference:        s.BreakPreference,
		DistractionSensitivity: s.DistractionSensitivity,
		DurationMinutes:        s.DurationMinutes,
		Status:                 string(s.Status),
		StartedAt:              s.StartedAt,
		EndedAt:                s.EndedAt,
		Completed:              s.Completed,
		ActiveSeconds:          int64(s.ActiveDuration(now).Seconds()),
		PausedSeconds:          int64(s.TotalPaused(now).Seconds()),
		FocusScore:             score,
		ScoreStatus:            ScoreStatus(score),
		Pauses:                 pauses,
		Events:                 events,
		Stats: dto.StatsResponse{
			FramesAnalyzed:      s.Stats.FramesAnalyzed,
			FacesMissing:        s.Stats.FacesMissing,
			LookingAway:         s.Stats.LookingAway,
			Slouching:           s.Stats.Slouching,
			Tired:               s.Stats.Tired,
			NeedsHelp:           s.Stats.NeedsHelp,
			EmotionsDetected:    s.Stats.EmotionsDetected,
			DistractionWarnings: s.Stats.DistractionWarnings,
			PostureWarnings:     s.Stats.PostureWarnings,
			HelpRequests:        s.Stats.HelpRequests,
			BreakSuggestions:    s.Stats.BreakSuggestions,
		},
	}
	if s.Status == StatusEnded {
		resp.Recommendations = s.Recommendations()
	}
	return resp
}

func recordToEntry(r Record) dto.HistoryEntry {
	return dto.HistoryEntry{
		ID:                  r.ID,
		Subject:             r.Subject,
		StudyMode:           r.StudyMode,
		Difficulty:          r.Difficulty,
		PlannedMinutes:      r.PlannedMinutes,
		ActiveSeconds:       r.ActiveSeconds,
		PauseCount:          r.PauseCount,
		Completed:           r.Completed,
		FocusScore:          r.FocusScore,
		ScoreStatus:         ScoreStatus(r.FocusScore),
		DistractionWarnings: r.DistractionWarnings,
		PostureWarnings:     r.PostureWarnings,
		EmotionsDetected:    r.EmotionsDetected.V,
		StartedAt:           r.StartedAt,
		EndedAt:             r.EndedAt,
	}
}
