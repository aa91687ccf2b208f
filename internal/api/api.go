// Package api provides the HTTP and websocket API for a running
// interview-anonymizer instance.
//
// Endpoints:
//
//	GET  /status     - health, uptime, metrics snapshot
//	GET  /history    - recorded answers, newest first (?limit=N)
//	POST /anonymize  - one-shot transcript anonymization {"transcript":"..."}
//	GET  /capture    - websocket bridge for streaming speech capture
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"interview-anonymizer/internal/anonymizer"
	"interview-anonymizer/internal/capture"
	"interview-anonymizer/internal/config"
	"interview-anonymizer/internal/history"
	"interview-anonymizer/internal/logger"
	"interview-anonymizer/internal/metrics"
	"interview-anonymizer/internal/session"
)

// Server is the API server. It owns no session state itself; everything
// stateful lives in the orchestrator and the store.
type Server struct {
	cfg       *config.Config
	startTime time.Time
	orch      *session.Orchestrator
	anon      *anonymizer.Anonymizer
	store     history.Store
	metrics   *metrics.Metrics // nil = no metrics
	log       *logger.Logger
	token     string // bearer token for auth; empty = no auth
	upgrader  websocket.Upgrader
}

// New creates an API server.
func New(cfg *config.Config, orch *session.Orchestrator, anon *anonymizer.Anonymizer,
	store history.Store, m *metrics.Metrics, log *logger.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		startTime: time.Now(),
		orch:      orch,
		anon:      anon,
		store:     store,
		metrics:   m,
		log:       log,
		token:     cfg.APIToken,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
	if s.token != "" {
		log.Info("api", "bearer token authentication enabled")
	}
	return s
}

// Handler returns the HTTP handler for the API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/history", s.handleHistory)
	mux.HandleFunc("/anonymize", s.handleAnonymize)
	mux.HandleFunc("/capture", s.handleCapture)
	return s.authMiddleware(mux)
}

// authMiddleware checks for a valid Bearer token if one is configured.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token == "" {
			next.ServeHTTP(w, r)
			return
		}
		auth := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(auth, prefix) ||
			subtle.ConstantTimeCompare([]byte(strings.TrimSpace(auth[len(prefix):])), []byte(s.token)) != 1 {
			s.log.Warnf("api", "unauthorized access attempt from %s to %s", r.RemoteAddr, r.URL.Path)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	type response struct {
		Status  string `json:"status"`
		Uptime  string `json:"uptime"`
		APIPort int    `json:"apiPort"`
		Session string `json:"sessionState"`
		LLM     struct {
			Endpoint   string `json:"endpoint"`
			Model      string `json:"model"`
			Classifier bool   `json:"classifierEnabled"`
		} `json:"llm"`
		Metrics *metrics.Snapshot `json:"metrics,omitempty"`
	}

	resp := response{
		Status:  "running",
		Uptime:  time.Since(s.startTime).Round(time.Second).String(),
		APIPort: s.cfg.APIPort,
		Session: s.orch.State().String(),
	}
	resp.LLM.Endpoint = s.cfg.LLMEndpoint
	resp.LLM.Model = s.cfg.LLMModel
	resp.LLM.Classifier = s.cfg.UseLLMClassifier
	if s.metrics != nil {
		snap := s.metrics.Snapshot()
		resp.Metrics = &snap
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	recs, err := s.store.List(r.Context(), limit)
	if err != nil {
		s.log.Errorf("api", "history list: %v", err)
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": recs, "count": len(recs)})
}

func (s *Server) handleAnonymize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req struct {
		Transcript string `json:"transcript"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Transcript == "" {
		http.Error(w, "invalid request: need {\"transcript\":\"...\"}", http.StatusBadRequest)
		return
	}

	res, err := s.anon.Anonymize(r.Context(), req.Transcript)
	if err != nil {
		if errors.Is(err, anonymizer.ErrClassifierUnavailable) {
			http.Error(w, "classifier unavailable", http.StatusServiceUnavailable)
			return
		}
		s.log.Errorf("api", "anonymize: %v", err)
		http.Error(w, "anonymization failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// captureFrame is one websocket message in either direction.
type captureFrame struct {
	Event string `json:"event"` // client: start|segment|stop|error  server: question|record|error

	// start
	Role  string `json:"role,omitempty"`
	Input string `json:"input,omitempty"` // "voice" (default) or "text"

	// segment
	Text  string `json:"text,omitempty"`
	Final bool   `json:"final,omitempty"`
	Index int    `json:"index,omitempty"`

	// error (client: recognition error kind; server: message)
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message,omitempty"`

	// server replies
	Question string                   `json:"question,omitempty"`
	Record   *history.InterviewRecord `json:"record,omitempty"`
	Degraded bool                     `json:"degraded,omitempty"`
}

// handleCapture bridges a websocket connection onto the orchestrator's
// capture session. The client streams recognition events; the server
// answers with question and record frames. Events on one connection are
// handled sequentially, which gives the capture session its required
// arrival order.
func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnf("api", "websocket upgrade from %s: %v", r.RemoteAddr, err)
		return
	}
	defer conn.Close() //nolint:errcheck

	ctx := r.Context()
	for {
		var frame captureFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Warnf("api", "capture connection from %s: %v", r.RemoteAddr, err)
			}
			return
		}
		if err := s.handleCaptureFrame(ctx, conn, &frame); err != nil {
			return
		}
	}
}

// handleCaptureFrame processes one client frame. A non-nil return tears
// down the connection; protocol-level problems are reported in error
// frames and keep the connection open.
func (s *Server) handleCaptureFrame(ctx context.Context, conn *websocket.Conn, frame *captureFrame) error {
	switch frame.Event {
	case "start":
		input := history.InputVoice
		if frame.Input == string(history.InputText) {
			input = history.InputText
		}
		role := frame.Role
		if role == "" {
			role = s.cfg.DefaultRole
		}
		q, err := s.orch.StartSession(ctx, role, input)
		if err != nil {
			return s.sendError(conn, err)
		}
		if err := s.orch.Capture().Start(); err != nil {
			return s.sendError(conn, err)
		}
		return conn.WriteJSON(captureFrame{Event: "question", Question: q})

	case "segment":
		if err := s.orch.Capture().OnSegment(frame.Text, frame.Final, frame.Index); err != nil {
			return s.sendError(conn, err)
		}
		return nil

	case "stop":
		text, err := s.orch.Capture().Stop()
		if err != nil {
			return s.sendError(conn, err)
		}
		rec, err := s.orch.SubmitAnswer(ctx, text)
		if rec == nil {
			// The capture session already consumed the finalized text;
			// echo it back so the client can resubmit.
			return conn.WriteJSON(captureFrame{Event: "error", Message: err.Error(), Text: text})
		}
		if err != nil {
			// Degraded or unpersisted records still reach the client.
			s.log.Warnf("api", "submit answer: %v", err)
		}
		if err := conn.WriteJSON(captureFrame{Event: "record", Record: rec, Degraded: rec.Degraded}); err != nil {
			return err
		}
		if q := s.orch.CurrentQuestion(); q != "" {
			return conn.WriteJSON(captureFrame{Event: "question", Question: q})
		}
		return nil

	case "error":
		if err := s.orch.Capture().OnError(capture.ErrorKind(frame.Kind)); err != nil {
			return s.sendError(conn, err)
		}
		return nil
	}

	return s.sendError(conn, fmt.Errorf("unknown event %q", frame.Event))
}

// sendError reports err to the client without closing the connection.
func (s *Server) sendError(conn *websocket.Conn, err error) error {
	return conn.WriteJSON(captureFrame{Event: "error", Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) // headers already sent, nothing to report
}

// ListenAndServe starts the API server.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.BindAddress, s.cfg.APIPort)
	s.log.Infof("api", "listening on %s", addr)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}
