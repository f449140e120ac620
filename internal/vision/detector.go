package vision

import (
	"context"
	"errors"
	"image"
	"sort"
)

// Landmark indices in the face mesh and pose topologies.
const (
	FaceNoseTip = 1

	PoseLeftEar       = 7
	PoseRightEar      = 8
	PoseLeftShoulder  = 11
	PoseRightShoulder = 12

	maxPoseIndex = PoseRightShoulder
)

// FaceLandmarker finds face meshes in an RGB frame. At most one face is tracked.
type FaceLandmarker interface {
	DetectFaces(ctx context.Context, frame *image.RGBA) ([]FaceLandmarks, error)
	Close() error
}

// PoseEstimator finds body landmarks in an RGB frame. The bool is false when no
// pose was found.
type PoseEstimator interface {
	EstimatePose(ctx context.Context, frame *image.RGBA) (PoseLandmarks, bool, error)
	Close() error
}

// EmotionClassifier returns one distribution per detected face. It runs its own
// face detection over the full frame.
type EmotionClassifier interface {
	ClassifyEmotions(ctx context.Context, frame image.Image) ([]EmotionScores, error)
	Close() error
}

type Detectors struct {
	Face    FaceLandmarker
	Pose    PoseEstimator
	Emotion EmotionClassifier
}

// DetectorFactory opens detector handles. The analyzer calls it once, on the
// first frame.
type DetectorFactory func() (*Detectors, error)

func (d *Detectors) Close() error {
	var errs []error
	if d.Face != nil {
		errs = append(errs, d.Face.Close())
	}
	if d.Pose != nil {
		errs = append(errs, d.Pose.Close())
	}
	if d.Emotion != nil {
		errs = append(errs, d.Emotion.Close())
	}
	return errors.Join(errs...)
}

func sortedExtraLabels(scores EmotionScores) []Emotion {
	var extra []Emotion
	for label := range scores {
		if !isKnownEmotion(label) {
			extra = append(extra, label)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return extra
}

func isKnownEmotion(label Emotion) bool {
	for _, known := range emotionOrder {
		if label == known {
			return true
		}
	}
	return false
}
