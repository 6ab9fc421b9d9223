// Package display renders caption events produced by the streaming session.
// Sinks are fan-out targets: a console renderer for local use and a WebSocket
// hub adapter for web clients.
package display

import "time"

// Kind classifies a caption event
type Kind string

const (
	// KindInterim is a provisional transcript that may still be revised
	KindInterim Kind = "interim"
	// KindFinal is a transcript the recognizer will not revise further
	KindFinal Kind = "final"
	// KindTranslation carries the translated form of a final transcript
	KindTranslation Kind = "translation"
	// KindLifecycle marks session events such as a connection rotation
	KindLifecycle Kind = "lifecycle"
)

// Event is one caption update flowing out of the pipeline
type Event struct {
	Kind Kind
	Text string
	// CorrectedTime is the audio offset reconstructed across connection
	// restarts, relative to the start of capture
	CorrectedTime time.Duration
	// Stability is the recognizer's revision-likelihood score for interims
	Stability float64
	// Restart is the ordinal of the connection the event arrived on
	Restart   int
	Timestamp time.Time
}

// Sink receives caption events. Publish must not block the caller; slow
// consumers drop rather than stall the streaming path.
type Sink interface {
	Publish(Event)
}

type multiSink []Sink

func (m multiSink) Publish(ev Event) {
	for _, s := range m {
		s.Publish(ev)
	}
}

// Multi fans one event stream out to several sinks
func Multi(sinks ...Sink) Sink {
	out := make(multiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}
