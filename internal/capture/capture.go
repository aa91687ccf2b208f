// Package capture implements the recording lifecycle for one answer:
// the Idle → Recording → Finalizing → Idle state machine fed by speech
// engine segment events.
//
// The machine never touches a microphone itself. A capture engine (browser
// speech API bridged over a websocket, a local speech-to-text process, a
// test script) delivers (text, isFinal, resultIndex) events in arrival
// order; the machine accumulates final segments and tracks the latest
// interim one. Interim text is display-only: if recording stops before the
// engine finalizes it, it is discarded, not guessed into the answer.
package capture

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// State is the capture lifecycle state.
type State int

// Capture lifecycle states.
const (
	StateIdle State = iota
	StateRecording
	StateFinalizing
)

// String implements fmt.Stringer for log lines.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateFinalizing:
		return "finalizing"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ErrorKind classifies capture engine failures.
type ErrorKind string

// Engine error kinds. KindAborted is the expected result of the caller
// stopping capture and is never surfaced to the user.
const (
	KindAborted      ErrorKind = "aborted"
	KindDeviceDenied ErrorKind = "not-allowed"
	KindNoSpeech     ErrorKind = "no-speech"
	KindNetwork      ErrorKind = "network"
)

// Error is a user-visible capture failure.
type Error struct {
	Kind ErrorKind
}

func (e *Error) Error() string { return fmt.Sprintf("capture error: %s", e.Kind) }

// State machine misuse errors.
var (
	ErrNotIdle      = errors.New("capture already in progress")
	ErrNotRecording = errors.New("capture is not recording")
	ErrOutOfOrder   = errors.New("segment result index regressed")
)

// Session is the capture state machine for one answer attempt.
// Events must be applied in arrival order; the engine's result index is
// checked to enforce that. Safe for concurrent use, though engines are
// expected to deliver events from a single goroutine.
type Session struct {
	mu sync.Mutex

	state      State
	finalText  strings.Builder
	interim    string
	lastIndex  int
	sawSegment bool
}

// NewSession returns an idle capture session.
func NewSession() *Session {
	return &Session{state: StateIdle}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Interim returns the latest non-final segment, for live display.
func (s *Session) Interim() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interim
}

// Start begins recording. Valid only from Idle. Accumulated text from any
// previous recording is cleared; each attempt starts from nothing.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return fmt.Errorf("%w: state %s", ErrNotIdle, s.state)
	}
	s.state = StateRecording
	s.finalText.Reset()
	s.interim = ""
	s.lastIndex = 0
	s.sawSegment = false
	return nil
}

// OnSegment applies one engine segment event. Valid only while Recording.
//
// Final segments append to the accumulated answer in arrival order, never
// reordered or deduplicated. A non-final segment fully replaces the pending
// interim text. resultIndex must be monotonically non-decreasing within one
// recording; a regression is an engine bug and is rejected.
func (s *Session) OnSegment(text string, isFinal bool, resultIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRecording {
		return fmt.Errorf("%w: state %s", ErrNotRecording, s.state)
	}
	if s.sawSegment && resultIndex < s.lastIndex {
		return fmt.Errorf("%w: %d after %d", ErrOutOfOrder, resultIndex, s.lastIndex)
	}
	s.lastIndex = resultIndex
	s.sawSegment = true

	if isFinal {
		s.finalText.WriteString(text)
		s.interim = ""
	} else {
		s.interim = text
	}
	return nil
}

// Stop finalizes the recording and returns the answer: all final segments
// in arrival order, trimmed of leading and trailing whitespace. Interim
// text that never finalized is discarded. Valid only while Recording.
func (s *Session) Stop() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRecording {
		return "", fmt.Errorf("%w: state %s", ErrNotRecording, s.state)
	}
	s.state = StateFinalizing
	answer := strings.TrimSpace(s.finalText.String())
	s.interim = ""
	s.state = StateIdle
	return answer, nil
}

// OnError aborts an in-flight recording. The session returns to Idle and
// all accumulated text is dropped. An "aborted" kind is the expected result
// of Stop() racing the engine teardown: it is swallowed and returns nil.
// Every other kind is returned for the caller to surface.
func (s *Session) OnError(kind ErrorKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRecording {
		return nil
	}
	s.state = StateIdle
	s.finalText.Reset()
	s.interim = ""
	if kind == KindAborted {
		return nil
	}
	return &Error{Kind: kind}
}

// Abort cancels any in-flight recording without surfacing an error.
// No-op when idle.
func (s *Session) Abort() {
	_ = s.OnError(KindAborted)
}

// SubmitText is the text-input path: it skips Recording and Finalizing and
// treats a submit action as an immediate finalize. Valid only from Idle.
func (s *Session) SubmitText(text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return "", fmt.Errorf("%w: state %s", ErrNotIdle, s.state)
	}
	return strings.TrimSpace(text), nil
}
