package study

import (
	"context"
	"log/slog"
	"time"

	"github.com/eleven-am/focus-backend/internal/vision"
)

// Timeline is the per-session result history kept next to the session.
type Timeline interface {
	GetRange(ctx context.Context, sessionID string, start, end int64, limit int) ([]*vision.TimedResult, error)
	DeleteResults(ctx context.Context, sessionID string) error
}

type Service struct {
	store    *Store
	archive  *Archive
	timeline Timeline
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(store *Store, archive *Archive, timeline Timeline, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		archive:  archive,
		timeline: timeline,
		logger:   logger.With("component", "study-service"),
		now:      time.Now,
	}
}

func (s *Service) Start(ctx context.Context, settings Settings) (*Session, error) {
	sess := NewSession(settings, s.now())
	if err := s.store.Create(ctx, sess); err != nil {
		return nil, err
	}
	s.logger.Info("study session started", "session_id", sess.ID, "user_id", sess.UserID, "subject", sess.Subject)
	return sess, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Session, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) Pause(ctx context.Context, id string) (*Session, error) {
	return s.store.Mutate(ctx, id, func(sess *Session) error {
		return sess.Pause(s.now())
	})
}

func (s *Service) Resume(ctx context.Context, id string) (*Session, error) {
	return s.store.Mutate(ctx, id, func(sess *Session) error {
		return sess.Resume(s.now())
	})
}

// End closes the session, archives its summary and drops the frame timeline.
// Archive and timeline failures are logged; the session itself stays ended.
func (s *Service) End(ctx context.Context, id string, completed bool) (*Session, error) {
	sess, err := s.store.Mutate(ctx, id, func(sess *Session) error {
		return sess.End(completed, s.now())
	})
	if err != nil {
		return nil, err
	}

	if s.archive != nil {
		if err := s.archive.Save(ctx, NewRecord(sess)); err != nil {
			s.logger.Error("failed to archive session", "session_id", id, "error", err)
		}
	}
	if s.timeline != nil {
		if err := s.timeline.DeleteResults(ctx, id); err != nil {
			s.logger.Warn("failed to delete timeline", "session_id", id, "error", err)
		}
	}

	s.logger.Info("study session ended",
		"session_id", id,
		"completed", completed,
		"focus_score", sess.FocusScore(),
		"frames", sess.Stats.FramesAnalyzed,
	)
	return sess, nil
}

// RecordAnalysis folds a frame result into the session. It reports whether the
// frame was counted; paused and ended sessions ignore frames.
func (s *Service) RecordAnalysis(ctx context.Context, id string, result vision.AnalysisResult) (bool, error) {
	var counted bool
	_, err := s.store.Mutate(ctx, id, func(sess *Session) error {
		counted = sess.RecordAnalysis(result, s.now())
		if !counted {
			return errUnchanged
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return counted, nil
}

func (s *Service) RequestHelp(ctx context.Context, id string) error {
	_, err := s.store.Mutate(ctx, id, func(sess *Session) error {
		sess.RequestHelp(s.now())
		return nil
	})
	return err
}

func (s *Service) Timeline(ctx context.Context, id string, start, end int64, limit int) ([]*vision.TimedResult, error) {
	if _, err := s.store.Get(ctx, id); err != nil {
		return nil, err
	}
	if s.timeline == nil {
		return []*vision.TimedResult{}, nil
	}
	return s.timeline.GetRange(ctx, id, start, end, limit)
}

func (s *Service) History(ctx context.Context, userID string, limit int) ([]Record, error) {
	return s.archive.ListByUser(ctx, userID, limit)
}
