package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"time"
)

// SidecarClient talks to the Python inference sidecar that hosts the face
// mesh, pose and emotion models. One client serves all three detector roles.
type SidecarClient struct {
	httpClient *http.Client
	baseURL    string

	minDetectionConfidence float64
	minTrackingConfidence  float64
}

var (
	_ FaceLandmarker    = (*SidecarClient)(nil)
	_ PoseEstimator     = (*SidecarClient)(nil)
	_ EmotionClassifier = (*SidecarClient)(nil)
)

func NewSidecarClient(cfg Config) *SidecarClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	detection := cfg.MinDetectionConfidence
	if detection == 0 {
		detection = 0.5
	}
	tracking := cfg.MinTrackingConfidence
	if tracking == 0 {
		tracking = 0.5
	}

	return &SidecarClient{
		httpClient:             &http.Client{Timeout: timeout},
		baseURL:                cfg.SidecarURL,
		minDetectionConfidence: detection,
		minTrackingConfidence:  tracking,
	}
}

// NewSidecarDetectors returns a factory that wires one sidecar client into all
// three detector slots.
func NewSidecarDetectors(cfg Config) DetectorFactory {
	return func() (*Detectors, error) {
		if cfg.SidecarURL == "" {
			return nil, fmt.Errorf("vision sidecar url not configured")
		}
		client := NewSidecarClient(cfg)
		return &Detectors{Face: client, Pose: client, Emotion: client}, nil
	}
}

type sidecarRequest struct {
	Image   string         `json:"image"`
	Width   int            `json:"width"`
	Height  int            `json:"height"`
	Options map[string]any `json:"options,omitempty"`
}

type faceMeshResponse struct {
	Faces []FaceLandmarks `json:"faces"`
}

type poseResponse struct {
	Landmarks PoseLandmarks `json:"landmarks"`
}

type emotionResponse struct {
	Faces []struct {
		Box      []int         `json:"box"`
		Emotions EmotionScores `json:"emotions"`
	} `json:"faces"`
}

func (c *SidecarClient) DetectFaces(ctx context.Context, frame *image.RGBA) ([]FaceLandmarks, error) {
	var resp faceMeshResponse
	err := c.post(ctx, "/v1/face-mesh", frame, map[string]any{
		"max_num_faces":            1,
		"refine_landmarks":         true,
		"min_detection_confidence": c.minDetectionConfidence,
		"min_tracking_confidence":  c.minTrackingConfidence,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Faces, nil
}

func (c *SidecarClient) EstimatePose(ctx context.Context, frame *image.RGBA) (PoseLandmarks, bool, error) {
	var resp poseResponse
	err := c.post(ctx, "/v1/pose", frame, map[string]any{
		"model_complexity":         1,
		"min_detection_confidence": c.minDetectionConfidence,
		"min_tracking_confidence":  c.minTrackingConfidence,
	}, &resp)
	if err != nil {
		return nil, false, err
	}
	return resp.Landmarks, len(resp.Landmarks) > 0, nil
}

func (c *SidecarClient) ClassifyEmotions(ctx context.Context, frame image.Image) ([]EmotionScores, error) {
	var resp emotionResponse
	if err := c.post(ctx, "/v1/emotion", frame, map[string]any{"mtcnn": true}, &resp); err != nil {
		return nil, err
	}

	scores := make([]EmotionScores, 0, len(resp.Faces))
	for _, f := range resp.Faces {
		if len(f.Emotions) > 0 {
			scores = append(scores, f.Emotions)
		}
	}
	return scores, nil
}

func (c *SidecarClient) post(ctx context.Context, path string, frame image.Image, options map[string]any, out any) error {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: 80}); err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}

	bounds := frame.Bounds()
	body, err := json.Marshal(sidecarRequest{
		Image:   base64.StdEncoding.EncodeToString(buf.Bytes()),
		Width:   bounds.Dx(),
		Height:  bounds.Dy(),
		Options: options,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sidecar request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sidecar %s returned status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *SidecarClient) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// Close drops pooled connections. It is safe to call once per detector role.
func (c *SidecarClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
