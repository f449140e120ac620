package vision

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewSidecarClient_Defaults(t *testing.T) {
	c := NewSidecarClient(Config{SidecarURL: "http://localhost:8500"})
	if c.baseURL != "http://localhost:8500" {
		t.Errorf("unexpected baseURL %s", c.baseURL)
	}
	if c.httpClient.Timeout != 5*time.Second {
		t.Errorf("expected default timeout 5s, got %v", c.httpClient.Timeout)
	}
	if c.minDetectionConfidence != 0.5 || c.minTrackingConfidence != 0.5 {
		t.Errorf("expected default confidences 0.5, got %v/%v", c.minDetectionConfidence, c.minTrackingConfidence)
	}
}

func TestNewSidecarClient_CustomTimeout(t *testing.T) {
	c := NewSidecarClient(Config{SidecarURL: "http://x", Timeout: 750 * time.Millisecond})
	if c.httpClient.Timeout != 750*time.Millisecond {
		t.Errorf("expected 750ms, got %v", c.httpClient.Timeout)
	}
}

func TestNewSidecarDetectors(t *testing.T) {
	if _, err := NewSidecarDetectors(Config{})(); err == nil {
		t.Error("expected error without sidecar url")
	}

	d, err := NewSidecarDetectors(Config{SidecarURL: "http://x"})()
	if err != nil {
		t.Fatalf("factory failed: %v", err)
	}
	if d.Face == nil || d.Pose == nil || d.Emotion == nil {
		t.Error("all detector roles should be filled")
	}
	if err := d.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func newSidecarServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}

		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Error("expected Content-Type application/json")
		}

		var req sidecarRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
			return
		}
		if _, err := base64.StdEncoding.DecodeString(req.Image); err != nil {
			t.Errorf("image is not base64: %v", err)
		}
		if req.Width != 16 || req.Height != 8 {
			t.Errorf("expected 16x8, got %dx%d", req.Width, req.Height)
		}

		switch r.URL.Path {
		case "/v1/face-mesh":
			if req.Options["max_num_faces"] != float64(1) {
				t.Errorf("expected max_num_faces 1, got %v", req.Options["max_num_faces"])
			}
			json.NewEncoder(w).Encode(map[string]any{
				"faces": [][]map[string]float64{{{"x": 0.4, "y": 0.4}, {"x": 0.5, "y": 0.5}}},
			})
		case "/v1/pose":
			json.NewEncoder(w).Encode(map[string]any{
				"landmarks": []map[string]float64{{"x": 0.1, "y": 0.2, "visibility": 0.9}},
			})
		case "/v1/emotion":
			json.NewEncoder(w).Encode(map[string]any{
				"faces": []map[string]any{
					{"box": []int{1, 2, 3, 4}, "emotions": map[string]float64{"happy": 0.8, "neutral": 0.2}},
					{"box": []int{0, 0, 1, 1}, "emotions": map[string]float64{}},
				},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestSidecarClient_DetectFaces(t *testing.T) {
	server := newSidecarServer(t)
	defer server.Close()

	c := NewSidecarClient(Config{SidecarURL: server.URL})
	faces, err := c.DetectFaces(context.Background(), image.NewRGBA(image.Rect(0, 0, 16, 8)))
	if err != nil {
		t.Fatalf("DetectFaces failed: %v", err)
	}
	if len(faces) != 1 || len(faces[0]) != 2 {
		t.Fatalf("unexpected faces %v", faces)
	}
	if faces[0][FaceNoseTip].X != 0.5 {
		t.Errorf("expected nose x 0.5, got %v", faces[0][FaceNoseTip].X)
	}
}

func TestSidecarClient_EstimatePose(t *testing.T) {
	server := newSidecarServer(t)
	defer server.Close()

	c := NewSidecarClient(Config{SidecarURL: server.URL})
	pose, found, err := c.EstimatePose(context.Background(), image.NewRGBA(image.Rect(0, 0, 16, 8)))
	if err != nil {
		t.Fatalf("EstimatePose failed: %v", err)
	}
	if !found || len(pose) != 1 {
		t.Fatalf("unexpected pose %v (found=%v)", pose, found)
	}
	if pose[0].Visibility != 0.9 {
		t.Errorf("expected visibility 0.9, got %v", pose[0].Visibility)
	}
}

func TestSidecarClient_ClassifyEmotions(t *testing.T) {
	server := newSidecarServer(t)
	defer server.Close()

	c := NewSidecarClient(Config{SidecarURL: server.URL})
	scores, err := c.ClassifyEmotions(context.Background(), image.NewRGBA(image.Rect(0, 0, 16, 8)))
	if err != nil {
		t.Fatalf("ClassifyEmotions failed: %v", err)
	}
	if len(scores) != 1 {
		t.Fatalf("expected empty distributions to be skipped, got %d", len(scores))
	}
	if scores[0][EmotionHappy] != 0.8 {
		t.Errorf("expected happy 0.8, got %v", scores[0][EmotionHappy])
	}
}

func TestSidecarClient_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewSidecarClient(Config{SidecarURL: server.URL})
	if _, err := c.DetectFaces(context.Background(), image.NewRGBA(image.Rect(0, 0, 16, 8))); err == nil {
		t.Error("expected error on 500")
	}
	if c.IsAvailable(context.Background()) {
		t.Error("sidecar should not be available")
	}
}

func TestSidecarClient_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	c := NewSidecarClient(Config{SidecarURL: server.URL})
	if _, _, err := c.EstimatePose(context.Background(), image.NewRGBA(image.Rect(0, 0, 16, 8))); err == nil {
		t.Error("expected decode error")
	}
}

func TestSidecarClient_IsAvailable(t *testing.T) {
	server := newSidecarServer(t)
	defer server.Close()

	c := NewSidecarClient(Config{SidecarURL: server.URL})
	if !c.IsAvailable(context.Background()) {
		t.Error("sidecar should be available")
	}

	down := NewSidecarClient(Config{SidecarURL: "http://127.0.0.1:1"})
	if down.IsAvailable(context.Background()) {
		t.Error("unreachable sidecar should not be available")
	}
}

func TestAnalyzer_WithSidecar(t *testing.T) {
	server := newSidecarServer(t)
	defer server.Close()

	a := NewAnalyzer(NewSidecarDetectors(Config{SidecarURL: server.URL}), nil)
	defer a.Close()

	r, err := a.Analyze(context.Background(), image.NewRGBA(image.Rect(0, 0, 16, 8)))
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if !r.FaceDetected || r.LookingAway {
		t.Errorf("expected centered face, got %+v", r)
	}
	if r.Posture != PostureUnknown {
		t.Errorf("single landmark pose should be unknown, got %s", r.Posture)
	}
	if r.Emotion == nil || *r.Emotion != EmotionHappy {
		t.Errorf("expected happy, got %v", r.Emotion)
	}
}
