package session

import (
	"strings"
	"time"

	"github.com/sorvik/glossa/internal/display"
	"github.com/sorvik/glossa/internal/recognizer"
	"github.com/sorvik/glossa/pkg/logger"
)

// TranslationDispatcher receives each finalized transcript exactly once, in
// finalization order
type TranslationDispatcher interface {
	Dispatch(text string, correctedTime time.Duration, restart int)
}

// Consumer processes the recognizer's responses for one connection at a
// time. Only the first result entry of a response is authoritative; later
// entries are ignored. Finals advance the session's finalized boundary and
// are handed to the translation dispatcher; interims are surfaced to the
// display sinks only.
type Consumer struct {
	session    *Session
	dispatcher TranslationDispatcher
	sink       display.Sink
	logger     *logger.Logger
}

// NewConsumer wires a consumer to the session it reports into
func NewConsumer(sess *Session, dispatcher TranslationDispatcher, sink display.Sink, log *logger.Logger) *Consumer {
	if sink == nil {
		sink = display.Multi()
	}
	return &Consumer{
		session:    sess,
		dispatcher: dispatcher,
		sink:       sink,
		logger:     log.Named("consumer"),
	}
}

// Consume reads responses until the stream closes or fails. The sender side
// closes the stream at rotate time; a response fully read before that close
// is always processed before Consume returns.
func (c *Consumer) Consume(stream Stream) {
	for {
		resp, err := stream.Receive()
		if err != nil {
			c.logger.Debug("Receive loop ended", logger.Error(err))
			return
		}
		c.handle(stream, resp)
	}
}

func (c *Consumer) handle(stream Stream, resp *recognizer.Response) {
	if resp.Type == recognizer.MessageTypeError {
		// Service-side failure: close the connection so the sender takes
		// the rotate path
		c.logger.Warn("Recognizer reported an error", logger.String("error", resp.Error))
		stream.Close()
		return
	}
	if len(resp.Results) == 0 {
		c.logger.Debug("Discarding response with no results")
		return
	}

	result := resp.Results[0]
	if len(result.Alternatives) == 0 {
		c.logger.Debug("Discarding result with no alternatives")
		return
	}
	transcript := result.Alternatives[0].Transcript
	if strings.TrimSpace(transcript) == "" {
		c.logger.Debug("Discarding result with empty transcript")
		return
	}

	endOffset := time.Duration(result.ResultEndMs) * time.Millisecond
	c.session.RecordResult(endOffset, result.IsFinal)
	corrected := c.session.CorrectedTime(endOffset)
	restart := c.session.Restarts()

	if result.IsFinal {
		c.sink.Publish(display.Event{
			Kind:          display.KindFinal,
			Text:          transcript,
			CorrectedTime: corrected,
			Restart:       restart,
			Timestamp:     time.Now(),
		})
		if c.dispatcher != nil {
			c.dispatcher.Dispatch(transcript, corrected, restart)
		}
		return
	}

	c.sink.Publish(display.Event{
		Kind:          display.KindInterim,
		Text:          transcript,
		CorrectedTime: corrected,
		Stability:     result.Stability,
		Restart:       restart,
		Timestamp:     time.Now(),
	})
}
