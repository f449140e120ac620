package stream

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eleven-am/focus-backend/internal/shared"
	"github.com/eleven-am/focus-backend/internal/vision"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

type FrameAnalyzer interface {
	Analyze(ctx context.Context, frame image.Image) (vision.AnalysisResult, error)
}

type ResultSink interface {
	StoreResult(ctx context.Context, r *vision.TimedResult) error
}

// SessionRecorder is the study-session side of the socket.
type SessionRecorder interface {
	RecordAnalysis(ctx context.Context, sessionID string, result vision.AnalysisResult) (bool, error)
	RequestHelp(ctx context.Context, sessionID string) error
}

type Config struct {
	FrameRate   float64
	FrameBurst  int
	MaxFrameAge time.Duration
}

func (c Config) withDefaults() Config {
	if c.FrameRate <= 0 {
		c.FrameRate = 5
	}
	if c.FrameBurst <= 0 {
		c.FrameBurst = 2
	}
	if c.MaxFrameAge <= 0 {
		c.MaxFrameAge = 2 * time.Second
	}
	return c
}

type Stats struct {
	ActiveConnections int64 `json:"active_connections"`
	FramesReceived    int64 `json:"frames_received"`
	FramesRateLimited int64 `json:"frames_rate_limited"`
	FramesOverwritten int64 `json:"frames_overwritten"`
	FramesStale       int64 `json:"frames_stale"`
	FramesAnalyzed    int64 `json:"frames_analyzed"`
	FrameErrors       int64 `json:"frame_errors"`
}

type Handler struct {
	analyzer FrameAnalyzer
	decoder  *vision.FrameDecoder
	results  ResultSink
	sessions SessionRecorder
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time

	active      atomic.Int64
	received    atomic.Int64
	rateLimited atomic.Int64
	overwritten atomic.Int64
	stale       atomic.Int64
	analyzed    atomic.Int64
	frameErrors atomic.Int64
}

func NewHandler(analyzer FrameAnalyzer, decoder *vision.FrameDecoder, results ResultSink, sessions SessionRecorder, cfg Config, logger *slog.Logger) *Handler {
	if decoder == nil {
		decoder = vision.NewFrameDecoder(0)
	}
	return &Handler{
		analyzer: analyzer,
		decoder:  decoder,
		results:  results,
		sessions: sessions,
		cfg:      cfg.withDefaults(),
		logger:   logger.With("handler", "stream"),
		now:      time.Now,
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/ws", h.ServeWS)
}

func (h *Handler) Stats() Stats {
	return Stats{
		ActiveConnections: h.active.Load(),
		FramesReceived:    h.received.Load(),
		FramesRateLimited: h.rateLimited.Load(),
		FramesOverwritten: h.overwritten.Load(),
		FramesStale:       h.stale.Load(),
		FramesAnalyzed:    h.analyzed.Load(),
		FrameErrors:       h.frameErrors.Load(),
	}
}

func (h *Handler) ServeWS(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return err
	}

	cn := newConn(ws, uuid.NewString(), c.QueryParam("session_id"), h.logger)
	h.active.Add(1)
	defer h.active.Add(-1)
	cn.logger.Info("client connected")

	ctx, cancel := context.WithCancel(context.Background())
	slot := newFrameSlot()
	limiter := rate.NewLimiter(rate.Limit(h.cfg.FrameRate), h.cfg.FrameBurst)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		cn.writePump()
	}()
	go func() {
		defer wg.Done()
		h.processFrames(ctx, cn, slot)
	}()

	cn.SendData(TypeConnectionResponse, ConnectionResponse{
		Status:       "connected",
		ConnectionID: cn.id,
		SessionID:    cn.sessionID,
	})

	cn.readPump(func(msg *Message) {
		h.dispatch(ctx, cn, slot, limiter, msg)
	})

	slot.Close()
	cancel()
	wg.Wait()
	cn.logger.Info("client disconnected", "frames_overwritten", slot.Dropped())
	return nil
}

func (h *Handler) dispatch(ctx context.Context, cn *conn, slot *frameSlot, limiter *rate.Limiter, msg *Message) {
	switch msg.Type {
	case TypeVideoFrame:
		var frame VideoFrame
		if err := json.Unmarshal(msg.Data, &frame); err != nil {
			cn.SendData(TypeAnalysisError, ErrorPayload{Error: "invalid video_frame payload"})
			return
		}
		h.received.Add(1)
		if !limiter.Allow() {
			h.rateLimited.Add(1)
			return
		}
		if frame.SessionID == "" {
			frame.SessionID = cn.sessionID
		}
		if slot.Put(&pendingFrame{VideoFrame: frame, receivedAt: h.now()}) {
			h.overwritten.Add(1)
		}

	case TypeRequestHelp:
		var req HelpRequest
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &req); err != nil {
				cn.SendData(TypeAnalysisError, ErrorPayload{Error: "invalid request_help payload"})
				return
			}
		}
		if req.SessionID == "" {
			req.SessionID = cn.sessionID
		}
		h.handleHelp(ctx, cn, req.SessionID)

	default:
		cn.logger.Debug("unknown message type", "type", msg.Type)
		cn.SendData(TypeAnalysisError, ErrorPayload{Error: "unknown message type: " + string(msg.Type)})
	}
}

func (h *Handler) handleHelp(ctx context.Context, cn *conn, sessionID string) {
	if sessionID != "" && h.sessions != nil {
		if err := h.sessions.RequestHelp(ctx, sessionID); err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				cn.SendData(TypeAnalysisError, ErrorPayload{Error: errSessionNotFound, SessionID: sessionID})
				return
			}
			cn.logger.Warn("failed to record help request", "error", err)
		}
	}
	cn.SendData(TypeHelpResponse, HelpResponse{Message: helpAcknowledged, SessionID: sessionID})
}

// processFrames is the single consumer of the connection's slot, which keeps
// results for a session in arrival order.
func (h *Handler) processFrames(ctx context.Context, cn *conn, slot *frameSlot) {
	for {
		frame, ok := slot.Next()
		if !ok {
			return
		}
		if h.now().Sub(frame.receivedAt) > h.cfg.MaxFrameAge {
			h.stale.Add(1)
			continue
		}
		h.processFrame(ctx, cn, frame)
	}
}

func (h *Handler) processFrame(ctx context.Context, cn *conn, frame *pendingFrame) {
	ts := frame.Timestamp
	if ts == 0 {
		ts = frame.receivedAt.UnixMilli()
	}
	fail := func(msg string) {
		h.frameErrors.Add(1)
		cn.SendData(TypeAnalysisError, ErrorPayload{Error: msg, SessionID: frame.SessionID, Timestamp: ts})
	}

	img, err := h.decoder.DecodeDataURL(frame.Frame)
	if err != nil {
		fail(err.Error())
		return
	}

	result, err := h.analyzer.Analyze(ctx, img)
	if err != nil {
		cn.logger.Warn("frame analysis failed", "error", err)
		fail(err.Error())
		return
	}
	h.analyzed.Add(1)

	if frame.SessionID != "" {
		// Only frames counted into an active session join its timeline, so an
		// ended session's timeline stays deleted.
		keep := true
		if h.sessions != nil {
			counted, err := h.sessions.RecordAnalysis(ctx, frame.SessionID, result)
			if err != nil {
				if errors.Is(err, shared.ErrNotFound) {
					fail(errSessionNotFound)
					return
				}
				cn.logger.Warn("failed to record analysis", "error", err)
			}
			keep = counted
		}
		if keep && h.results != nil {
			timed := &vision.TimedResult{SessionID: frame.SessionID, Timestamp: ts, Result: result}
			if err := h.results.StoreResult(ctx, timed); err != nil {
				cn.logger.Warn("failed to store result", "error", err)
			}
		}
	}

	cn.SendData(TypeAnalysisResult, AnalysisPayload{
		SessionID:      frame.SessionID,
		Timestamp:      ts,
		AnalysisResult: result,
	})
}
