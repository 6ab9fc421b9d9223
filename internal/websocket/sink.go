package websocket

import (
	"github.com/sorvik/glossa/internal/display"
)

// CaptionSink publishes display events to every connected WebSocket client.
type CaptionSink struct {
	server *Server
}

// NewCaptionSink wraps a hub as a display sink.
func NewCaptionSink(server *Server) *CaptionSink {
	return &CaptionSink{server: server}
}

// Publish implements display.Sink. It never blocks: Broadcast drops
// messages once the hub queue is full.
func (s *CaptionSink) Publish(ev display.Event) {
	data := map[string]any{
		"text":              ev.Text,
		"corrected_time_ms": ev.CorrectedTime.Milliseconds(),
		"restart":           ev.Restart,
		"timestamp":         ev.Timestamp,
	}

	var messageType string
	switch ev.Kind {
	case display.KindInterim:
		messageType = MessageTypeInterim
		data["stability"] = ev.Stability
	case display.KindFinal:
		messageType = MessageTypeFinal
	case display.KindTranslation:
		messageType = MessageTypeTranslation
	case display.KindLifecycle:
		messageType = MessageTypeLifecycle
	default:
		return
	}

	s.server.Broadcast(&Message{Type: messageType, Data: data})
}
