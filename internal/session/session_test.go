package session

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/sorvik/glossa/pkg/logger"
)

func testConfig() Config {
	return Config{
		ChunkDuration:  100 * time.Millisecond,
		StreamingLimit: 10 * time.Second,
		MaxOverlap:     time.Second,
	}
}

// mkChunk builds a recognizable chunk: four bytes of the given tag
func mkChunk(tag byte) []byte {
	return []byte{tag, tag, tag, tag}
}

func mkChunks(n int) [][]byte {
	out := make([][]byte, n)
	for i := range out {
		out[i] = mkChunk(byte(i + 1))
	}
	return out
}

func concat(chunks [][]byte) []byte {
	var out []byte
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "console"})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	return log
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}

func TestStateTransitions(t *testing.T) {
	tests := []struct {
		from, to State
		ok       bool
	}{
		{StateIdle, StateStreaming, true},
		{StateIdle, StateClosed, true},
		{StateIdle, StateRestarting, false},
		{StateStreaming, StateRestarting, true},
		{StateStreaming, StateClosed, true},
		{StateStreaming, StateIdle, false},
		{StateRestarting, StateStreaming, true},
		{StateRestarting, StateClosed, true},
		{StateRestarting, StateIdle, false},
		{StateClosed, StateStreaming, false},
		{StateClosed, StateIdle, false},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"_to_"+tt.to.String(), func(t *testing.T) {
			s := New(testConfig())
			s.state = tt.from
			err := s.Transition(tt.to)
			if tt.ok && err != nil {
				t.Errorf("expected transition to succeed, got %v", err)
			}
			if !tt.ok && err == nil {
				t.Error("expected transition to be rejected")
			}
			if tt.ok && s.State() != tt.to {
				t.Errorf("expected state %s, got %s", tt.to, s.State())
			}
			if !tt.ok && s.State() != tt.from {
				t.Errorf("rejected transition changed state to %s", s.State())
			}
		})
	}
}

func TestRotateOverlapMath(t *testing.T) {
	tests := []struct {
		name         string
		chunks       int
		finalEnd     time.Duration
		maxOverlap   time.Duration
		wantChunks   int
		wantBridging time.Duration
	}{
		{
			name:         "nothing finalized, all audio under window",
			chunks:       5,
			finalEnd:     0,
			maxOverlap:   time.Second,
			wantChunks:   5,
			wantBridging: 500 * time.Millisecond,
		},
		{
			name:         "partially finalized",
			chunks:       5,
			finalEnd:     300 * time.Millisecond,
			maxOverlap:   time.Second,
			wantChunks:   2,
			wantBridging: 200 * time.Millisecond,
		},
		{
			name:         "fully finalized",
			chunks:       5,
			finalEnd:     500 * time.Millisecond,
			maxOverlap:   time.Second,
			wantChunks:   0,
			wantBridging: 0,
		},
		{
			name:         "final boundary beyond sent audio clamps to zero",
			chunks:       5,
			finalEnd:     700 * time.Millisecond,
			maxOverlap:   time.Second,
			wantChunks:   0,
			wantBridging: 0,
		},
		{
			name:         "unfinalized span clamped to window",
			chunks:       30,
			finalEnd:     0,
			maxOverlap:   time.Second,
			wantChunks:   10,
			wantBridging: time.Second,
		},
		{
			name:         "whole-chunk snap cannot exceed window",
			chunks:       5,
			finalEnd:     0,
			maxOverlap:   250 * time.Millisecond,
			wantChunks:   2,
			wantBridging: 200 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.MaxOverlap = tt.maxOverlap
			s := New(cfg)
			s.state = StateStreaming

			chunks := mkChunks(tt.chunks)
			s.AppendChunks(chunks)
			if tt.finalEnd > 0 {
				s.RecordResult(tt.finalEnd, true)
			}

			finished := s.Rotate()
			if len(finished) != tt.chunks {
				t.Errorf("expected %d finished chunks, got %d", tt.chunks, len(finished))
			}
			if s.BridgingOffset() != tt.wantBridging {
				t.Errorf("expected bridging offset %v, got %v", tt.wantBridging, s.BridgingOffset())
			}
			if s.BridgingOffset() < 0 || s.BridgingOffset() > tt.maxOverlap {
				t.Errorf("bridging offset %v outside [0, %v]", s.BridgingOffset(), tt.maxOverlap)
			}

			overlap := s.OverlapChunks()
			if len(overlap) != tt.wantChunks {
				t.Fatalf("expected %d overlap chunks, got %d", tt.wantChunks, len(overlap))
			}
			// The overlap is exactly the trailing chunks of the finished
			// connection
			suffix := chunks[len(chunks)-tt.wantChunks:]
			if !bytes.Equal(concat(overlap), concat(suffix)) {
				t.Errorf("overlap is not the trailing suffix of the previous audio")
			}
		})
	}
}

func TestRotateResetsPerConnectionTracking(t *testing.T) {
	s := New(testConfig())
	s.state = StateStreaming

	s.AppendChunks(mkChunks(5))
	s.RecordResult(400*time.Millisecond, false)
	s.RecordResult(300*time.Millisecond, true)

	s.Rotate()

	if s.Restarts() != 1 {
		t.Errorf("expected 1 restart, got %d", s.Restarts())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resultEndTime != 0 || s.isFinalEndTime != 0 {
		t.Errorf("result tracking not reset: resultEnd=%v finalEnd=%v", s.resultEndTime, s.isFinalEndTime)
	}
	if s.bridgingOffset != 200*time.Millisecond {
		t.Errorf("expected 200ms of unfinalized audio armed, got %v", s.bridgingOffset)
	}
	if !s.newStream {
		t.Error("expected newStream to be armed after rotate")
	}
	if len(s.audioInput) != 0 {
		t.Errorf("expected empty audioInput after rotate, got %d chunks", len(s.audioInput))
	}
	if len(s.lastAudioInput) != 5 {
		t.Errorf("expected previous audio retained, got %d chunks", len(s.lastAudioInput))
	}
}

func TestRotateWithoutFreshAudioKeepsResendSource(t *testing.T) {
	s := New(testConfig())
	s.state = StateStreaming

	chunks := mkChunks(5)
	s.AppendChunks(chunks)
	s.Rotate()

	firstOverlap := s.OverlapChunks()
	if len(firstOverlap) != 5 {
		t.Fatalf("expected 5 overlap chunks, got %d", len(firstOverlap))
	}

	// The next connection dies before sending anything fresh; the armed
	// overlap must survive the second rotate
	s.Rotate()

	secondOverlap := s.OverlapChunks()
	if !bytes.Equal(concat(firstOverlap), concat(secondOverlap)) {
		t.Errorf("overlap lost across a rotate with no fresh audio")
	}
	if s.Restarts() != 2 {
		t.Errorf("expected 2 restarts, got %d", s.Restarts())
	}
}

func TestOverlapChunksAreACopy(t *testing.T) {
	s := New(testConfig())
	s.state = StateStreaming
	s.AppendChunks(mkChunks(3))
	s.Rotate()

	overlap := s.OverlapChunks()
	overlap[0] = mkChunk(0xFF)

	again := s.OverlapChunks()
	if bytes.Equal(again[0], mkChunk(0xFF)) {
		t.Error("mutating the returned overlap affected the session's copy")
	}
}

func TestOverlapChunksOnlyAtConnectionBoundary(t *testing.T) {
	s := New(testConfig())
	s.state = StateStreaming
	s.AppendChunks(mkChunks(3))
	s.Rotate()

	if got := s.OverlapChunks(); len(got) == 0 {
		t.Fatal("expected overlap chunks right after rotate")
	}
	s.MarkOverlapSent()
	if got := s.OverlapChunks(); got != nil {
		t.Errorf("expected no overlap after it was sent, got %d chunks", len(got))
	}
}

func TestCorrectedTimeAcrossRestarts(t *testing.T) {
	s := New(testConfig())
	s.state = StateStreaming

	// First connection: no bridging, no completed rotations
	if got := s.CorrectedTime(1500 * time.Millisecond); got != 1500*time.Millisecond {
		t.Errorf("expected 1500ms, got %v", got)
	}

	// Rotate with 200ms of trailing unfinalized audio
	s.AppendChunks(mkChunks(5))
	s.RecordResult(300*time.Millisecond, true)
	s.Rotate()

	// Second connection: offsets shift back by the resent overlap and
	// forward by one full streaming limit
	want := 300*time.Millisecond - 200*time.Millisecond + 10*time.Second
	if got := s.CorrectedTime(300 * time.Millisecond); got != want {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestTimeLimitReached(t *testing.T) {
	clock := newFakeClock()
	s := New(testConfig())
	s.now = clock.Now

	if err := s.BeginConnection(); err != nil {
		t.Fatalf("BeginConnection failed: %v", err)
	}
	if s.TimeLimitReached() {
		t.Error("limit reported immediately after connection start")
	}
	clock.Advance(9 * time.Second)
	if s.TimeLimitReached() {
		t.Error("limit reported before it elapsed")
	}
	clock.Advance(time.Second)
	if !s.TimeLimitReached() {
		t.Error("limit not reported after it elapsed")
	}
}

func TestTakeAudioDoesNotArmOverlap(t *testing.T) {
	s := New(testConfig())
	s.state = StateStreaming
	s.AppendChunks(mkChunks(3))

	taken := s.TakeAudio()
	if len(taken) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(taken))
	}
	if s.Restarts() != 0 {
		t.Errorf("TakeAudio must not count as a rotation, restarts=%d", s.Restarts())
	}
	if got := s.OverlapChunks(); got != nil {
		t.Errorf("TakeAudio must not arm an overlap, got %d chunks", len(got))
	}
}
