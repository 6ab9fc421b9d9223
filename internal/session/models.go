package session

import (
	"context"
	"fmt"
	"time"

	"github.com/sorvik/glossa/internal/recognizer"
)

// State is the lifecycle phase of the streaming session
type State int

const (
	// StateIdle means no connection has been opened yet
	StateIdle State = iota
	// StateStreaming means a connection is open and forwarding audio
	StateStreaming
	// StateRestarting means the current connection is being retired at the
	// time limit and a replacement is being armed
	StateRestarting
	// StateClosed is terminal
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateRestarting:
		return "restarting"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// validTransitions is the single source of truth for legal state changes
var validTransitions = map[State][]State{
	StateIdle:       {StateStreaming, StateClosed},
	StateStreaming:  {StateRestarting, StateClosed},
	StateRestarting: {StateStreaming, StateClosed},
	StateClosed:     {},
}

// Stream is one physical connection to the recognizer. A restart retires the
// old Stream and dials a fresh one, so implementations never span restarts.
type Stream interface {
	// SendAudio transmits one binary frame of raw audio
	SendAudio(payload []byte) error
	// Receive blocks for the next recognizer response; it returns an error
	// once the connection is closed or fails
	Receive() (*recognizer.Response, error)
	// Close shuts the connection down; it must be safe to call multiple
	// times and must unblock a pending Receive
	Close() error
}

// Dialer opens recognizer connections
type Dialer interface {
	Dial(ctx context.Context) (Stream, error)
}

// DialerFunc adapts a plain function to the Dialer interface
type DialerFunc func(ctx context.Context) (Stream, error)

// Dial implements Dialer
func (f DialerFunc) Dial(ctx context.Context) (Stream, error) {
	return f(ctx)
}

// Recorder persists one closed connection's audio. Implementations must not
// block for long and must never fail the streaming path; errors are theirs to
// log and swallow.
type Recorder interface {
	SaveConnection(chunks [][]byte, ordinal int)
}

// Config carries the timing parameters of the resumable session
type Config struct {
	// ChunkDuration is the nominal duration of one audio chunk
	ChunkDuration time.Duration
	// StreamingLimit is the maximum lifetime of one connection
	StreamingLimit time.Duration
	// MaxOverlap bounds the trailing audio resent after a restart
	MaxOverlap time.Duration
}

// Status is a point-in-time snapshot of the session for reporting
type Status struct {
	State            string  `json:"state"`
	Restarts         int     `json:"restarts"`
	BridgingOffsetMs int64   `json:"bridging_offset_ms"`
	BufferedChunks   int     `json:"buffered_chunks"`
	UptimeSeconds    float64 `json:"uptime_seconds"`
	LastResultMs     int64   `json:"last_result_ms"`
}
