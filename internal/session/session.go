// Package session implements the resumable streaming session: it drains
// captured audio into a time-limited recognizer connection, rotates the
// connection before the limit cuts it off, and resends a bounded window of
// trailing unfinalized audio so transcription continues seamlessly across the
// restart boundary.
package session

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// Session holds the state of one resumable stream spanning any number of
// physical connections. Fields are shared between the sending side and the
// per-connection receive goroutine and are guarded by mu.
type Session struct {
	cfg Config

	mu    sync.Mutex
	state State

	// startTime is the wall-clock instant the current connection opened
	startTime time.Time
	// restarts counts completed rotations
	restarts int

	// newStream is true from a rotate until the overlap payload is sent
	newStream bool
	// overlapCount is the number of trailing chunks armed for resend
	overlapCount int
	// bridgingOffset is the duration of audio resent on the current
	// connection; reported offsets are shifted by it for display
	bridgingOffset time.Duration

	// audioInput holds the fresh chunks sent on the current connection, in
	// order, excluding the resent overlap
	audioInput [][]byte
	// lastAudioInput holds the previous connection's fresh chunks; the
	// overlap resend is a suffix of it
	lastAudioInput [][]byte

	// resultEndTime is the offset of the most recent result, relative to
	// the current connection's first byte of audio
	resultEndTime time.Duration
	// isFinalEndTime is the offset of the last final result on the current
	// connection; zero when nothing has been finalized yet
	isFinalEndTime time.Duration

	// now is replaceable for deterministic tests
	now func() time.Time
}

// New creates a session in the idle state
func New(cfg Config) *Session {
	return &Session{
		cfg:   cfg,
		state: StateIdle,
		now:   time.Now,
	}
}

// State returns the current lifecycle state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Transition moves the session to a new state, rejecting illegal changes
func (s *Session) Transition(to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, allowed := range validTransitions[s.state] {
		if allowed == to {
			s.state = to
			return nil
		}
	}
	return fmt.Errorf("invalid session transition %s -> %s", s.state, to)
}

// BeginConnection marks the start of a physical connection: the elapsed-time
// clock restarts and the session enters the streaming state.
func (s *Session) BeginConnection() error {
	s.mu.Lock()
	s.startTime = s.now()
	s.mu.Unlock()
	return s.Transition(StateStreaming)
}

// TimeLimitReached reports whether the current connection has outlived the
// configured per-connection limit
func (s *Session) TimeLimitReached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now().Sub(s.startTime) >= s.cfg.StreamingLimit
}

// AppendChunks records chunks as sent on the current connection
func (s *Session) AppendChunks(chunks [][]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audioInput = append(s.audioInput, chunks...)
}

// RecordResult notes a response offset from the receive side. Final results
// advance the finalized boundary used by the next rotate's overlap math.
func (s *Session) RecordResult(endOffset time.Duration, isFinal bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resultEndTime = endOffset
	if isFinal {
		s.isFinalEndTime = endOffset
	}
}

// CorrectedTime reconstructs the display offset of a per-connection result
// offset across restarts: the resent overlap is subtracted and one full
// streaming limit is added for every completed rotation.
func (s *Session) CorrectedTime(endOffset time.Duration) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return endOffset - s.bridgingOffset + time.Duration(s.restarts)*s.cfg.StreamingLimit
}

// Rotate retires the current connection's state and arms the next one. The
// trailing unfinalized audio — everything sent after the last final result,
// clamped to the overlap window and snapped to whole chunks — becomes the
// overlap payload of the next connection. It returns the retired connection's
// fresh chunks for recording.
func (s *Session) Rotate() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	finished := s.audioInput

	// Offsets reported by the service count from the connection's first
	// byte, which includes the resent overlap.
	totalSent := s.bridgingOffset + time.Duration(len(s.audioInput))*s.cfg.ChunkDuration
	unfinalized := totalSent - s.isFinalEndTime
	if unfinalized < 0 {
		unfinalized = 0
	}
	if unfinalized > s.cfg.MaxOverlap {
		unfinalized = s.cfg.MaxOverlap
	}

	n := int(math.Round(float64(unfinalized) / float64(s.cfg.ChunkDuration)))
	if maxChunks := int(s.cfg.MaxOverlap / s.cfg.ChunkDuration); n > maxChunks {
		n = maxChunks
	}

	source := s.audioInput
	if len(source) == 0 {
		// The connection sent nothing fresh (it died during the overlap
		// resend, or rotated immediately); keep the previous connection's
		// chunks as the resend source instead of dropping them
		source = s.lastAudioInput
	}
	if n > len(source) {
		n = len(source)
	}

	s.lastAudioInput = source
	s.audioInput = nil
	s.overlapCount = n
	s.bridgingOffset = time.Duration(n) * s.cfg.ChunkDuration
	s.resultEndTime = 0
	s.isFinalEndTime = 0
	s.newStream = true
	s.restarts++

	return finished
}

// OverlapChunks returns a copy of the armed overlap payload, or nil when the
// session is not at a fresh-connection boundary. The chunks are a suffix of
// the previous connection's audio; they are never re-dequeued from the
// buffer.
func (s *Session) OverlapChunks() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.newStream || s.overlapCount == 0 {
		return nil
	}
	tail := s.lastAudioInput[len(s.lastAudioInput)-s.overlapCount:]
	out := make([][]byte, len(tail))
	copy(out, tail)
	return out
}

// MarkOverlapSent clears the fresh-connection flag once the overlap payload
// is on the wire
func (s *Session) MarkOverlapSent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.newStream = false
}

// TakeAudio removes and returns the current connection's fresh chunks
// without arming a new connection; used when the session closes for good.
func (s *Session) TakeAudio() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	chunks := s.audioInput
	s.audioInput = nil
	return chunks
}

// LastCorrectedResult returns the corrected display offset of the most
// recent recognizer result; zero before any result arrives
func (s *Session) LastCorrectedResult() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resultEndTime == 0 && s.restarts == 0 {
		return 0
	}
	return s.resultEndTime - s.bridgingOffset + time.Duration(s.restarts)*s.cfg.StreamingLimit
}

// Restarts returns the number of completed rotations
func (s *Session) Restarts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restarts
}

// BridgingOffset returns the duration of audio resent on the current
// connection
func (s *Session) BridgingOffset() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bridgingOffset
}
