package vision

import "math"

// Empirical tuning values. Keep them as-is.
const (
	GazeLowerBound = 0.2
	GazeUpperBound = 0.8

	SlouchMargin = 0.1

	HelpEmotionThreshold = 0.4
	TiredNeutralMin      = 0.6
	TiredHappyMax        = 0.2

	LookingAwayWeight = 0.4
	SlouchingWeight   = 0.2
	NoFaceWeight      = 0.4

	GenericNudgeThreshold = 0.6
)

const (
	SuggestionTired   = "You look tired. Time for a break?"
	SuggestionHelp    = "You seem stuck. Need help?"
	SuggestionRefocus = "Stay focused! Keep your eyes on your work."
	SuggestionSitUp   = "Sit up straight for better focus!"
	SuggestionNudge   = "You're getting distracted. Refocus on your goal."
)

var helpEmotions = []Emotion{EmotionSad, EmotionAngry, EmotionFear}

// Stage is the outcome of one detector stage: a value, or unknown.
type Stage[T any] struct {
	Value T
	Known bool
}

func Known[T any](v T) Stage[T] {
	return Stage[T]{Value: v, Known: true}
}

func Unknown[T any]() Stage[T] {
	return Stage[T]{}
}

// FaceObservation only exists when a face was found, so looking away cannot be
// reported without a face.
type FaceObservation struct {
	LookingAway bool
}

type EmotionReading struct {
	Dominant   Emotion
	Confidence float64
	NeedsHelp  bool
	IsTired    bool
}

type Observations struct {
	Face    Stage[FaceObservation]
	Posture Stage[Posture]
	Emotion Stage[EmotionReading]
}

// Fuse turns stage observations into a result. It is the only place the
// distraction level and the suggestion are computed.
func Fuse(obs Observations) AnalysisResult {
	result := AnalysisResult{
		FaceDetected: obs.Face.Known,
		LookingAway:  obs.Face.Known && obs.Face.Value.LookingAway,
		Posture:      PostureUnknown,
	}

	if obs.Posture.Known && obs.Posture.Value != "" {
		result.Posture = obs.Posture.Value
	}

	if obs.Emotion.Known {
		emotion := obs.Emotion.Value.Dominant
		result.Emotion = &emotion
		result.EmotionConfidence = obs.Emotion.Value.Confidence
		result.NeedsHelp = obs.Emotion.Value.NeedsHelp
		result.IsTired = obs.Emotion.Value.IsTired
	}

	result.DistractionLevel = distractionLevel(result.LookingAway, result.Posture, result.FaceDetected)
	if s, ok := suggestionFor(result); ok {
		result.Suggestion = &s
	}
	return result
}

func distractionLevel(lookingAway bool, posture Posture, faceDetected bool) float64 {
	level := 0.0
	if lookingAway {
		level += LookingAwayWeight
	}
	if posture == PostureSlouching {
		level += SlouchingWeight
	}
	if !faceDetected {
		level += NoFaceWeight
	}
	return clamp01(level)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(v, 1))
}

func suggestionFor(r AnalysisResult) (string, bool) {
	switch {
	case r.IsTired:
		return SuggestionTired, true
	case r.NeedsHelp:
		return SuggestionHelp, true
	case r.LookingAway:
		return SuggestionRefocus, true
	case r.Posture == PostureSlouching:
		return SuggestionSitUp, true
	case r.DistractionLevel > GenericNudgeThreshold:
		return SuggestionNudge, true
	}
	return "", false
}

// isLookingAway is a coarse yaw proxy: the nose tip sitting in the outer fifth
// of either side of the frame.
func isLookingAway(noseX float64) bool {
	return noseX < GazeLowerBound || noseX > GazeUpperBound
}

func classifyPosture(pose PoseLandmarks) Stage[Posture] {
	if len(pose) <= maxPoseIndex {
		return Unknown[Posture]()
	}

	leftShoulder, rightShoulder := pose[PoseLeftShoulder], pose[PoseRightShoulder]
	leftEar, rightEar := pose[PoseLeftEar], pose[PoseRightEar]

	avgShoulderY := (leftShoulder.Y + rightShoulder.Y) / 2
	avgEarY := (leftEar.Y + rightEar.Y) / 2
	if math.IsNaN(avgShoulderY) || math.IsNaN(avgEarY) {
		return Unknown[Posture]()
	}

	if avgEarY > avgShoulderY+SlouchMargin {
		return Known(PostureSlouching)
	}
	return Known(PostureGood)
}

func readEmotions(scores EmotionScores) Stage[EmotionReading] {
	if len(scores) == 0 {
		return Unknown[EmotionReading]()
	}
	for _, p := range scores {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return Unknown[EmotionReading]()
		}
	}

	dominant, confidence, found := Emotion(""), 0.0, false
	for _, label := range emotionOrder {
		p, ok := scores[label]
		if ok && (!found || p > confidence) {
			dominant, confidence, found = label, p, true
		}
	}
	for _, label := range sortedExtraLabels(scores) {
		if p := scores[label]; !found || p > confidence {
			dominant, confidence, found = label, p, true
		}
	}

	reading := EmotionReading{
		Dominant:   dominant,
		Confidence: clamp01(confidence),
		IsTired:    scores[EmotionNeutral] > TiredNeutralMin && scores[EmotionHappy] < TiredHappyMax,
	}
	for _, label := range helpEmotions {
		if scores[label] > HelpEmotionThreshold {
			reading.NeedsHelp = true
			break
		}
	}
	return Known(reading)
}
