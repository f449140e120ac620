package study

import (
	"fmt"
	"math"
	"time"

	"github.com/eleven-am/focus-backend/internal/shared"
	"github.com/eleven-am/focus-backend/internal/vision"
)

type Status string

const (
	StatusActive Status = "active"
	StatusPaused Status = "paused"
	StatusEnded  Status = "ended"
)

const maxEvents = 500

const (
	EventStarted       = "session_started"
	EventPaused        = "session_paused"
	EventResumed       = "session_resumed"
	EventEnded         = "session_ended"
	EventHelpRequested = "help_requested"
	EventSuggestion    = "suggestion"
)

type Pause struct {
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

type Event struct {
	Type      string    `json:"type"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type Stats struct {
	FramesAnalyzed      int64            `json:"frames_analyzed"`
	FacesMissing        int64            `json:"faces_missing"`
	LookingAway         int64            `json:"looking_away"`
	Slouching           int64            `json:"slouching"`
	Tired               int64            `json:"tired"`
	NeedsHelp           int64            `json:"needs_help"`
	DistractionTotal    float64          `json:"distraction_total"`
	EmotionsDetected    map[string]int64 `json:"emotions_detected"`
	DistractionWarnings int64            `json:"distraction_warnings"`
	PostureWarnings     int64            `json:"posture_warnings"`
	HelpRequests        int64            `json:"help_requests"`
	BreakSuggestions    int64            `json:"break_suggestions"`
}

type Settings struct {
	UserID                 string `json:"user_id"`
	DurationMinutes        int    `json:"duration_minutes"`
	Subject                string `json:"subject"`
	StudyMode              string `json:"study_mode"`
	Difficulty             string `json:"difficulty"`
	BreakPreference        string `json:"break_preference"`
	DistractionSensitivity string `json:"distraction_sensitivity"`
}

type Session struct {
	ID string `json:"id"`
	Settings
	Status         Status     `json:"status"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
	Completed      bool       `json:"completed"`
	Pauses         []Pause    `json:"pauses"`
	Events         []Event    `json:"events"`
	Stats          Stats      `json:"stats"`
	LastSuggestion string     `json:"last_suggestion,omitempty"`
}

func NewSession(settings Settings, now time.Time) *Session {
	s := &Session{
		ID:        shared.NewID("ss_"),
		Settings:  settings,
		Status:    StatusActive,
		StartedAt: now,
		Pauses:    []Pause{},
		Events:    []Event{},
		Stats:     Stats{EmotionsDetected: map[string]int64{}},
	}
	s.addEvent(EventStarted, "", now)
	return s
}

func (s *Session) RedisKey() string {
	return sessionKey(s.ID)
}

func sessionKey(id string) string {
	return "study:" + id
}

func (s *Session) addEvent(kind, message string, at time.Time) {
	s.Events = append(s.Events, Event{Type: kind, Message: message, Timestamp: at})
	if over := len(s.Events) - maxEvents; over > 0 {
		s.Events = append([]Event(nil), s.Events[over:]...)
	}
}

func (s *Session) Pause(now time.Time) error {
	if s.Status != StatusActive {
		return fmt.Errorf("cannot pause a %s session: %w", s.Status, shared.ErrInvalidState)
	}
	s.Status = StatusPaused
	s.Pauses = append(s.Pauses, Pause{StartedAt: now})
	s.addEvent(EventPaused, "", now)
	return nil
}

func (s *Session) Resume(now time.Time) error {
	if s.Status != StatusPaused {
		return fmt.Errorf("cannot resume a %s session: %w", s.Status, shared.ErrInvalidState)
	}
	s.Status = StatusActive
	s.closeOpenPause(now)
	s.addEvent(EventResumed, "", now)
	return nil
}

func (s *Session) End(completed bool, now time.Time) error {
	if s.Status == StatusEnded {
		return fmt.Errorf("session already ended: %w", shared.ErrInvalidState)
	}
	s.closeOpenPause(now)
	s.Status = StatusEnded
	s.EndedAt = &now
	s.Completed = completed
	s.addEvent(EventEnded, "", now)
	return nil
}

func (s *Session) closeOpenPause(now time.Time) {
	if n := len(s.Pauses); n > 0 && s.Pauses[n-1].EndedAt == nil {
		s.Pauses[n-1].EndedAt = &now
	}
}

// RecordAnalysis folds one frame result into the counters. Frames that arrive
// while the session is not active are ignored and false is returned.
func (s *Session) RecordAnalysis(r vision.AnalysisResult, now time.Time) bool {
	if s.Status != StatusActive {
		return false
	}

	st := &s.Stats
	if st.EmotionsDetected == nil {
		st.EmotionsDetected = map[string]int64{}
	}
	st.FramesAnalyzed++
	st.DistractionTotal += r.DistractionLevel
	if !r.FaceDetected {
		st.FacesMissing++
	}
	if r.LookingAway {
		st.LookingAway++
	}
	if r.Posture == vision.PostureSlouching {
		st.Slouching++
	}
	if r.IsTired {
		st.Tired++
	}
	if r.NeedsHelp {
		st.NeedsHelp++
	}
	if r.Emotion != nil {
		st.EmotionsDetected[string(*r.Emotion)]++
	}

	suggestion := ""
	if r.Suggestion != nil {
		suggestion = *r.Suggestion
	}
	if suggestion != "" && suggestion != s.LastSuggestion {
		switch suggestion {
		case vision.SuggestionTired:
			st.BreakSuggestions++
		case vision.SuggestionHelp:
			st.HelpRequests++
		case vision.SuggestionSitUp:
			st.PostureWarnings++
		case vision.SuggestionRefocus, vision.SuggestionNudge:
			st.DistractionWarnings++
		}
		s.addEvent(EventSuggestion, suggestion, now)
	}
	s.LastSuggestion = suggestion
	return true
}

func (s *Session) RequestHelp(now time.Time) {
	s.Stats.HelpRequests++
	s.addEvent(EventHelpRequested, "", now)
}

func (s *Session) FocusScore() int {
	if s.Stats.FramesAnalyzed == 0 {
		return 100
	}
	avg := s.Stats.DistractionTotal / float64(s.Stats.FramesAnalyzed)
	score := math.Round(100 * (1 - avg))
	return int(math.Max(0, math.Min(100, score)))
}

func (s *Session) TotalPaused(now time.Time) time.Duration {
	var total time.Duration
	for _, p := range s.Pauses {
		end := now
		if p.EndedAt != nil {
			end = *p.EndedAt
		}
		if end.After(p.StartedAt) {
			total += end.Sub(p.StartedAt)
		}
	}
	return total
}

func (s *Session) ActiveDuration(now time.Time) time.Duration {
	end := now
	if s.EndedAt != nil {
		end = *s.EndedAt
	}
	d := end.Sub(s.StartedAt) - s.TotalPaused(end)
	if d < 0 {
		return 0
	}
	return d
}

func ScoreStatus(score int) string {
	switch {
	case score >= 90:
		return "Excellent"
	case score >= 80:
		return "Great"
	case score >= 70:
		return "Good"
	case score >= 60:
		return "Fair"
	default:
		return "Needs Improvement"
	}
}

const (
	RecommendOutstanding = "Outstanding focus! Keep up the excellent work."
	RecommendShorter     = "Consider shorter study sessions with more frequent breaks to maintain focus."
	RecommendQuieter     = "Try studying in a quieter environment to reduce distractions."
	RecommendPosture     = "Remember to maintain good posture. Consider using a chair with proper back support."
	RecommendComplete    = "Try to complete your full planned study session for better learning retention."
	RecommendPomodoro    = "You paused frequently. Try the Pomodoro technique with scheduled breaks."
	RecommendKeepGoing   = "Great session! Continue with your current study routine."
)

func (s *Session) Recommendations() []string {
	var out []string
	score := s.FocusScore()
	switch {
	case score >= 90:
		out = append(out, RecommendOutstanding)
	case score < 60:
		out = append(out, RecommendShorter)
	}
	if s.Stats.DistractionWarnings > 5 {
		out = append(out, RecommendQuieter)
	}
	if s.Stats.PostureWarnings > 3 {
		out = append(out, RecommendPosture)
	}
	if s.Status == StatusEnded && !s.Completed {
		out = append(out, RecommendComplete)
	}
	if len(s.Pauses) > 6 {
		out = append(out, RecommendPomodoro)
	}
	if len(out) == 0 {
		out = append(out, RecommendKeepGoing)
	}
	return out
}
