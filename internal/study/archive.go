package study

import (
	"context"
	"time"

	"github.com/eleven-am/focus-backend/internal/shared"
	"gorm.io/gorm"
)

type Record struct {
	ID                  string                        `gorm:"primaryKey" json:"id"`
	UserID              string                        `gorm:"index;not null" json:"user_id"`
	Subject             string                        `json:"subject"`
	StudyMode           string                        `json:"study_mode"`
	Difficulty          string                        `json:"difficulty"`
	PlannedMinutes      int                           `json:"planned_minutes"`
	ActiveSeconds       int64                         `json:"active_seconds"`
	PausedSeconds       int64                         `json:"paused_seconds"`
	PauseCount          int                           `json:"pause_count"`
	Completed           bool                          `json:"completed"`
	FocusScore          int                           `json:"focus_score"`
	FramesAnalyzed      int64                         `json:"frames_analyzed"`
	DistractionWarnings int64                         `json:"distraction_warnings"`
	PostureWarnings     int64                         `json:"posture_warnings"`
	HelpRequests        int64                         `json:"help_requests"`
	BreakSuggestions    int64                         `json:"break_suggestions"`
	EmotionsDetected    shared.JSON[map[string]int64] `gorm:"type:text" json:"emotions_detected"`
	StartedAt           time.Time                     `gorm:"index" json:"started_at"`
	EndedAt             time.Time                     `json:"ended_at"`
	CreatedAt           time.Time                     `json:"created_at"`
}

func (Record) TableName() string {
	return "study_sessions"
}

func NewRecord(s *Session) *Record {
	end := s.StartedAt
	if s.EndedAt != nil {
		end = *s.EndedAt
	}
	return &Record{
		ID:                  s.ID,
		UserID:              s.UserID,
		Subject:             s.Subject,
		StudyMode:           s.StudyMode,
		Difficulty:          s.Difficulty,
		PlannedMinutes:      s.DurationMinutes,
		ActiveSeconds:       int64(s.ActiveDuration(end).Seconds()),
		PausedSeconds:       int64(s.TotalPaused(end).Seconds()),
		PauseCount:          len(s.Pauses),
		Completed:           s.Completed,
		FocusScore:          s.FocusScore(),
		FramesAnalyzed:      s.Stats.FramesAnalyzed,
		DistractionWarnings: s.Stats.DistractionWarnings,
		PostureWarnings:     s.Stats.PostureWarnings,
		HelpRequests:        s.Stats.HelpRequests,
		BreakSuggestions:    s.Stats.BreakSuggestions,
		EmotionsDetected:    shared.NewJSON(s.Stats.EmotionsDetected),
		StartedAt:           s.StartedAt,
		EndedAt:             end,
	}
}

type Archive struct {
	db *gorm.DB
}

func NewArchive(db *gorm.DB) *Archive {
	return &Archive{db: db}
}

func (a *Archive) Migrate() error {
	return a.db.AutoMigrate(&Record{})
}

func (a *Archive) Save(ctx context.Context, r *Record) error {
	return a.db.WithContext(ctx).Save(r).Error
}

func (a *Archive) ListByUser(ctx context.Context, userID string, limit int) ([]Record, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	var records []Record
	err := a.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("started_at DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}
