package vision

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Analyzer runs the face, pose and emotion detectors over one frame and fuses
// their outputs. The detectors are not reentrant, so Analyze is serialized.
type Analyzer struct {
	factory DetectorFactory
	logger  *slog.Logger

	mu        sync.Mutex
	detectors *Detectors
	closed    bool

	// Mirrors of detectors != nil and closed, readable without mu.
	ready       atomic.Bool
	closedState atomic.Bool

	stats analyzerCounters
}

type analyzerCounters struct {
	frames         atomic.Int64
	faceFailures   atomic.Int64
	poseFailures   atomic.Int64
	emotionFailure atomic.Int64
	totalLatencyMs atomic.Int64
	lastFrameAt    atomic.Int64
}

type Stats struct {
	FramesAnalyzed  int64   `json:"frames_analyzed"`
	FaceFailures    int64   `json:"face_failures"`
	PoseFailures    int64   `json:"pose_failures"`
	EmotionFailures int64   `json:"emotion_failures"`
	AvgLatencyMs    float64 `json:"avg_latency_ms"`
	LastFrameAt     int64   `json:"last_frame_at,omitempty"`
	Ready           bool    `json:"ready"`
	Closed          bool    `json:"closed"`
}

func NewAnalyzer(factory DetectorFactory, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		factory: factory,
		logger:  logger.With("component", "frame-analyzer"),
	}
}

// Analyze produces one result for a decoded frame. Missing or failing detectors
// degrade their stage; the only errors are an unusable frame, a closed analyzer
// or detectors that could not be opened.
func (a *Analyzer) Analyze(ctx context.Context, frame image.Image) (AnalysisResult, error) {
	if !validFrame(frame) {
		return AnalysisResult{}, ErrInvalidFrame
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	detectors, err := a.openLocked()
	if err != nil {
		return AnalysisResult{}, err
	}

	start := time.Now()
	rgb := toRGB(frame)

	obs := Observations{
		Face:    a.faceStage(ctx, detectors.Face, rgb),
		Posture: a.postureStage(ctx, detectors.Pose, rgb),
		Emotion: a.emotionStage(ctx, detectors.Emotion, frame),
	}
	result := Fuse(obs)

	a.stats.frames.Add(1)
	a.stats.totalLatencyMs.Add(time.Since(start).Milliseconds())
	a.stats.lastFrameAt.Store(time.Now().UnixMilli())

	return result, nil
}

func (a *Analyzer) openLocked() (*Detectors, error) {
	if a.closed {
		return nil, ErrAnalyzerClosed
	}
	if a.detectors != nil {
		return a.detectors, nil
	}
	if a.factory == nil {
		return nil, fmt.Errorf("open detectors: no detector factory")
	}

	detectors, err := a.factory()
	if err != nil {
		return nil, fmt.Errorf("open detectors: %w", err)
	}
	if detectors == nil {
		detectors = &Detectors{}
	}
	a.detectors = detectors
	a.ready.Store(true)
	a.logger.Info("vision detectors initialized")
	return detectors, nil
}

func (a *Analyzer) faceStage(ctx context.Context, d FaceLandmarker, rgb *image.RGBA) (stage Stage[FaceObservation]) {
	if d == nil {
		return Unknown[FaceObservation]()
	}
	defer a.recoverStage("face", &a.stats.faceFailures, func() { stage = Unknown[FaceObservation]() })

	faces, err := d.DetectFaces(ctx, rgb)
	if err != nil {
		a.stageFailed("face", &a.stats.faceFailures, err)
		return Unknown[FaceObservation]()
	}
	if len(faces) == 0 {
		return Unknown[FaceObservation]()
	}

	face := faces[0]
	if len(face) <= FaceNoseTip {
		a.stageFailed("face", &a.stats.faceFailures, fmt.Errorf("face mesh has %d landmarks", len(face)))
		return Unknown[FaceObservation]()
	}
	// Landmarks are already normalized by frame width.
	noseX := face[FaceNoseTip].X
	if math.IsNaN(noseX) || math.IsInf(noseX, 0) {
		a.stageFailed("face", &a.stats.faceFailures, fmt.Errorf("nose landmark x is %v", noseX))
		return Unknown[FaceObservation]()
	}
	return Known(FaceObservation{LookingAway: isLookingAway(noseX)})
}

func (a *Analyzer) postureStage(ctx context.Context, d PoseEstimator, rgb *image.RGBA) (stage Stage[Posture]) {
	if d == nil {
		return Unknown[Posture]()
	}
	defer a.recoverStage("pose", &a.stats.poseFailures, func() { stage = Unknown[Posture]() })

	pose, found, err := d.EstimatePose(ctx, rgb)
	if err != nil {
		a.stageFailed("pose", &a.stats.poseFailures, err)
		return Unknown[Posture]()
	}
	if !found {
		return Unknown[Posture]()
	}
	return classifyPosture(pose)
}

func (a *Analyzer) emotionStage(ctx context.Context, d EmotionClassifier, frame image.Image) (stage Stage[EmotionReading]) {
	if d == nil {
		return Unknown[EmotionReading]()
	}
	defer a.recoverStage("emotion", &a.stats.emotionFailure, func() { stage = Unknown[EmotionReading]() })

	faces, err := d.ClassifyEmotions(ctx, frame)
	if err != nil {
		a.stageFailed("emotion", &a.stats.emotionFailure, err)
		return Unknown[EmotionReading]()
	}
	if len(faces) == 0 {
		return Unknown[EmotionReading]()
	}
	return readEmotions(faces[0])
}

func (a *Analyzer) stageFailed(stage string, counter *atomic.Int64, err error) {
	counter.Add(1)
	a.logger.Warn("detector stage failed", "stage", stage, "error", err)
}

func (a *Analyzer) recoverStage(stage string, counter *atomic.Int64, fallback func()) {
	if r := recover(); r != nil {
		a.stageFailed(stage, counter, fmt.Errorf("panic: %v", r))
		fallback()
	}
}

// Close releases the detectors. Calling it again is a no-op.
func (a *Analyzer) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true
	a.closedState.Store(true)
	a.ready.Store(false)

	if a.detectors == nil {
		return nil
	}
	err := a.detectors.Close()
	a.detectors = nil
	a.logger.Info("vision detectors released")
	return err
}

func (a *Analyzer) Stats() Stats {
	frames := a.stats.frames.Load()
	s := Stats{
		FramesAnalyzed:  frames,
		FaceFailures:    a.stats.faceFailures.Load(),
		PoseFailures:    a.stats.poseFailures.Load(),
		EmotionFailures: a.stats.emotionFailure.Load(),
		LastFrameAt:     a.stats.lastFrameAt.Load(),
		Ready:           a.ready.Load(),
		Closed:          a.closedState.Load(),
	}
	if frames > 0 {
		s.AvgLatencyMs = float64(a.stats.totalLatencyMs.Load()) / float64(frames)
	}
	return s
}
