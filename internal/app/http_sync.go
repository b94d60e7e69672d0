package app

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"teamsync/api/internal/relay"
)

const (
	frameWriteTimeout   = 10 * time.Second
	defaultMaxBodyBytes = 1 << 20
)

// handleSync serves the relay: GET opens an event stream for a room, POST
// publishes the raw request body to it. OPTIONS is answered by the
// middleware.
func (s *HTTPServer) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		writeText(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	session, err := s.service.SessionFromToken(r.Context(), syncToken(r))
	if err != nil {
		logAuthFailure(r, err)
		writeText(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	room := strings.TrimSpace(r.URL.Query().Get("room"))
	if room == "" {
		room = relay.DefaultRoom
	}

	if r.Method == http.MethodPost {
		s.publish(w, r, session, room)
		return
	}
	s.subscribe(w, r, session, room)
}

func (s *HTTPServer) subscribe(w http.ResponseWriter, r *http.Request, session Session, room string) {
	uid := strings.TrimSpace(r.URL.Query().Get("uid"))
	if uid == "" {
		uid = uuid.NewString()
	}

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache, no-transform")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	header.Set("Access-Control-Allow-Origin", s.corsOrigin)

	sub := s.service.Subscribe(room, uid)
	defer s.service.Unsubscribe(sub)

	rc := http.NewResponseController(w)
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		log.Printf("[sync] stream unsupported uid=%s room=%s: %v", uid, room, err)
		return
	}
	log.Printf("[sync] subscribed uid=%s room=%s sub=%s", uid, room, session.Subject)

	heartbeat := time.NewTicker(s.service.HeartbeatInterval())
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			log.Printf("[sync] disconnected uid=%s room=%s", uid, room)
			return
		case <-sub.Done():
			return
		case frame := <-sub.Frames():
			if err := writeFrame(w, rc, frame); err != nil {
				log.Printf("[sync] write failed uid=%s room=%s: %v", uid, room, err)
				return
			}
		case <-heartbeat.C:
			if err := writeFrame(w, rc, relay.PingFrame(s.service.Now())); err != nil {
				log.Printf("[sync] heartbeat failed uid=%s room=%s: %v", uid, room, err)
				return
			}
		}
	}
}

func (s *HTTPServer) publish(w http.ResponseWriter, r *http.Request, session Session, room string) {
	limit := s.service.cfg.MaxBodyBytes
	if limit <= 0 {
		limit = defaultMaxBodyBytes
	}
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		log.Printf("[sync] publish read room=%s sub=%s: %v", room, session.Subject, err)
		writeText(w, http.StatusInternalServerError, "error")
		return
	}
	delivered := s.service.Publish(room, payload)
	if uid := r.URL.Query().Get("uid"); uid != "" {
		log.Printf("[sync] publish room=%s uid=%s bytes=%d delivered=%d", room, uid, len(payload), delivered)
	}
	writeText(w, http.StatusOK, "ok")
}

func writeFrame(w http.ResponseWriter, rc *http.ResponseController, frame []byte) error {
	if err := rc.SetWriteDeadline(time.Now().Add(frameWriteTimeout)); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return err
	}
	return rc.Flush()
}

// syncToken reads the bearer token from the Authorization header, falling
// back to the token query parameter for clients that cannot set headers.
func syncToken(r *http.Request) string {
	if token := bearerToken(r); token != "" {
		return token
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}
