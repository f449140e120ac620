package dto

import (
	"time"

	"github.com/eleven-am/focus-backend/internal/vision"
)

type StartSessionRequest struct {
	UserID                 string `json:"user_id"`
	Duration               int    `json:"duration"`
	Subject                string `json:"subject"`
	StudyMode              string `json:"study_mode"`
	Difficulty             string `json:"difficulty"`
	BreakPreference        string `json:"break_preference"`
	DistractionSensitivity string `json:"distraction_sensitivity"`
}

type EndSessionRequest struct {
	Completed bool `json:"completed"`
}

type PauseResponse struct {
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

type EventResponse struct {
	Type      string    `json:"type"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type StatsResponse struct {
	FramesAnalyzed      int64            `json:"frames_analyzed"`
	FacesMissing        int64            `json:"faces_missing"`
	LookingAway         int64            `json:"looking_away"`
	Slouching           int64            `json:"slouching"`
	Tired               int64            `json:"tired"`
	NeedsHelp           int64            `json:"needs_help"`
	EmotionsDetected    map[string]int64 `json:"emotions_detected"`
	DistractionWarnings int64            `json:"distraction_warnings"`
	PostureWarnings     int64            `json:"posture_warnings"`
	HelpRequests        int64            `json:"help_requests"`
	BreakSuggestions    int64            `json:"break_suggestions"`
}

type SessionResponse struct {
	ID                     string          `json:"id"`
	UserID                 string          `json:"user_id"`
	Subject                string          `json:"subject"`
	StudyMode              string          `json:"study_mode"`
	Difficulty             string          `json:"difficulty"`
	BreakPreference        string          `json:"break_preference"`
	DistractionSensitivity string          `json:"distraction_sensitivity"`
	DurationMinutes        int             `json:"duration_minutes"`
	Status                 string          `json:"status"`
	StartedAt              time.Time       `json:"started_at"`
	EndedAt                *time.Time      `json:"ended_at,omitempty"`
	Completed              bool            `json:"completed"`
	ActiveSeconds          int64           `json:"active_seconds"`
	PausedSeconds          int64           `json:"paused_seconds"`
	FocusScore             int             `json:"focus_score"`
	ScoreStatus            string          `json:"score_status"`
	Recommendations        []string        `json:"recommendations,omitempty"`
	Pauses                 []PauseResponse `json:"pauses"`
	Events                 []EventResponse `json:"events"`
	Stats                  StatsResponse   `json:"stats"`
}

type TimelineResponse struct {
	SessionID string                `json:"session_id"`
	Count     int                   `json:"count"`
	Results   []*vision.TimedResult `json:"results"`
}

type HistoryEntry struct {
	ID                  string           `json:"id"`
	Subject             string           `json:"subject"`
	StudyMode           string           `json:"study_mode"`
	Difficulty          string           `json:"difficulty"`
	PlannedMinutes      int              `json:"planned_minutes"`
	ActiveSeconds       int64            `json:"active_seconds"`
	PauseCount          int              `json:"pause_count"`
	Completed           bool             `json:"completed"`
	FocusScore          int              `json:"focus_score"`
	ScoreStatus         string           `json:"score_status"`
	DistractionWarnings int64            `json:"distraction_warnings"`
	PostureWarnings     int64            `json:"posture_warnings"`
	EmotionsDetected    map[string]int64 `json:"emotions_detected"`
	StartedAt           time.Time        `json:"started_at"`
	EndedAt             time.Time        `json:"ended_at"`
}

type HistoryResponse struct {
	UserID        string         `json:"user_id"`
	Sessions      []HistoryEntry `json:"sessions"`
	AverageFocus  int            `json:"average_focus"`
	TotalSessions int            `json:"total_sessions"`
}
