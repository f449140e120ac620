package vision

import (
	"errors"
	"time"
)

var (
	ErrInvalidFrame   = errors.New("invalid frame")
	ErrAnalyzerClosed = errors.New("analyzer closed")
)

type Config struct {
	SidecarURL string
	Timeout    time.Duration
	ResultTTL  time.Duration

	MinDetectionConfidence float64
	MinTrackingConfidence  float64
}

type Posture string

const (
	PostureGood      Posture = "good"
	PostureSlouching Posture = "slouching"
	PostureUnknown   Posture = "unknown"
)

type Emotion string

const (
	EmotionAngry    Emotion = "angry"
	EmotionDisgust  Emotion = "disgust"
	EmotionFear     Emotion = "fear"
	EmotionHappy    Emotion = "happy"
	EmotionSad      Emotion = "sad"
	EmotionSurprise Emotion = "surprise"
	EmotionNeutral  Emotion = "neutral"
)

// emotionOrder is the classifier's label order; argmax ties go to the earlier label.
var emotionOrder = []Emotion{
	EmotionAngry,
	EmotionDisgust,
	EmotionFear,
	EmotionHappy,
	EmotionSad,
	EmotionSurprise,
	EmotionNeutral,
}

// Landmark coordinates are normalized to [0,1] of the frame, y grows downward.
type Landmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility,omitempty"`
}

type FaceLandmarks []Landmark

type PoseLandmarks []Landmark

// EmotionScores is one face's probability distribution over emotion labels.
type EmotionScores map[Emotion]float64

// AnalysisResult is the per-frame attentiveness signal. Build it with Fuse; the
// distraction level and suggestion are derived, never assigned.
type AnalysisResult struct {
	FaceDetected      bool     `json:"face_detected"`
	Emotion           *Emotion `json:"emotion"`
	EmotionConfidence float64  `json:"emotion_confidence"`
	Posture           Posture  `json:"posture"`
	LookingAway       bool     `json:"looking_away"`
	DistractionLevel  float64  `json:"distraction_level"`
	NeedsHelp         bool     `json:"needs_help"`
	IsTired           bool     `json:"is_tired"`
	Suggestion        *string  `json:"suggestion"`
}

// TimedResult is an AnalysisResult as kept in a session timeline.
type TimedResult struct {
	SessionID string         `json:"session_id"`
	Timestamp int64          `json:"timestamp"`
	Result    AnalysisResult `json:"result"`
}
