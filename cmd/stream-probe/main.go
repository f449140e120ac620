package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eleven-am/focus-backend/internal/stream"
	"github.com/gorilla/websocket"
)

// stream-probe starts a study session and streams one image file to the
// analysis socket, printing every message the server sends back.
func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: stream-probe <image.jpg>")
	}
	frame, err := os.ReadFile(os.Args[1])
	if err != nil {
		log.Fatal("read image:", err)
	}
	dataURL := "data:" + http.DetectContentType(frame) + ";base64," + base64.StdEncoding.EncodeToString(frame)

	base := os.Getenv("FOCUS_URL")
	if base == "" {
		base = "http://localhost:8080"
	}

	sessionID, err := startSession(base)
	if err != nil {
		log.Fatal("start session:", err)
	}
	fmt.Printf("[PROBE] Session %s\n", sessionID)

	u, _ := url.Parse(base)
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = "/api/v1/stream/ws"
	u.RawQuery = url.Values{"session_id": {sessionID}}.Encode()

	conn, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		if resp != nil {
			body, _ := io.ReadAll(resp.Body)
			fmt.Printf("[PROBE] Dial failed: %v, status=%d, body=%s\n", err, resp.StatusCode, string(body))
		}
		log.Fatal("dial:", err)
	}
	defer conn.Close()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		fmt.Println("[PROBE] Shutting down...")
		conn.Close()
		os.Exit(0)
	}()

	go func() {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for t := range ticker.C {
			data, _ := json.Marshal(stream.VideoFrame{SessionID: sessionID, Frame: dataURL, Timestamp: t.UnixMilli()})
			if err := conn.WriteJSON(stream.Message{Type: stream.TypeVideoFrame, Data: data}); err != nil {
				fmt.Printf("[PROBE] Write error: %v\n", err)
				return
			}
		}
	}()

	for {
		var msg stream.Message
		if err := conn.ReadJSON(&msg); err != nil {
			fmt.Printf("[PROBE] Read error: %v\n", err)
			return
		}
		fmt.Printf("[PROBE] %s %s\n", msg.Type, string(msg.Data))
	}
}

func startSession(base string) (string, error) {
	body := bytes.NewBufferString(`{"user_id":"probe","duration":5,"subject":"probe"}`)
	resp, err := http.Post(base+"/api/v1/study/sessions", "application/json", body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.ID, nil
}
