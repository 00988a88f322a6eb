package importer

import (
	"sync"

	"github.com/clinica/import-service/internal/types"
)

// State is a phase of an upload session
type State string

const (
	StateIdle       State = "idle"
	StateParsing    State = "parsing"
	StateSubmitting State = "submitting"
	StateFinalizing State = "finalizing"
)

// Snapshot is a copy of the session state safe to hand to other goroutines
type Snapshot struct {
	State    State              `json:"state"`
	Filename string             `json:"filename,omitempty"`
	Progress int                `json:"progress"`
	Result   *types.BatchResult `json:"result,omitempty"`
}

// Session tracks one upload at a time: Idle -> Parsing -> Submitting ->
// Finalizing -> Idle. The last result stays readable until Reset or the
// next upload.
type Session struct {
	mu       sync.Mutex
	state    State
	filename string
	progress int
	result   *types.BatchResult
}

// NewSession returns an idle session
func NewSession() *Session {
	return &Session{state: StateIdle}
}

// Begin claims the session for an upload
func (s *Session) Begin(filename string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return ErrBusy
	}
	s.state = StateParsing
	s.filename = filename
	s.progress = 0
	s.result = nil
	return nil
}

// Busy reports whether an upload is in progress
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != StateIdle
}

// Reset returns to Idle and forgets the last upload
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateIdle
	s.filename = ""
	s.progress = 0
	s.result = nil
}

// Snapshot returns the current state
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		State:    s.state,
		Filename: s.filename,
		Progress: s.progress,
	}
	if s.result != nil {
		cp := *s.result
		cp.Errors = append([]string(nil), s.result.Errors...)
		cp.Notes = append([]string(nil), s.result.Notes...)
		snap.Result = &cp
	}
	return snap
}

func (s *Session) enter(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

func (s *Session) setProgress(p int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = p
}

// finish stores the result and returns to Idle
func (s *Session) finish(result *types.BatchResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateIdle
	s.result = result
}
