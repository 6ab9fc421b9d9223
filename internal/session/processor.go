package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sorvik/glossa/internal/audio"
	"github.com/sorvik/glossa/internal/display"
	"github.com/sorvik/glossa/pkg/logger"
)

// Processor owns the streaming pipeline: it starts the audio supplier,
// drains the chunk buffer into time-limited recognizer connections, rotates
// connections at the limit with the overlap resend, and runs the response
// consumer for each connection on its own goroutine.
type Processor struct {
	cfg        Config
	session    *Session
	consumer   *Consumer
	buffer     *audio.ChunkBuffer
	supplier   audio.Supplier
	dialer     Dialer
	recorder   Recorder
	sink       display.Sink
	logger     *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	done   chan struct{}

	mu        sync.Mutex
	started   bool
	startedAt time.Time
	runErr    error
}

// NewProcessor assembles the pipeline. supplier may be nil when chunks are
// pushed into the buffer externally; recorder and dispatcher may be nil to
// disable recording and translation.
func NewProcessor(cfg Config, supplier audio.Supplier, buffer *audio.ChunkBuffer, dialer Dialer, dispatcher TranslationDispatcher, recorder Recorder, sink display.Sink, log *logger.Logger) *Processor {
	ctx, cancel := context.WithCancel(context.Background())
	if sink == nil {
		sink = display.Multi()
	}
	sess := New(cfg)
	return &Processor{
		cfg:      cfg,
		session:  sess,
		consumer: NewConsumer(sess, dispatcher, sink, log),
		buffer:   buffer,
		supplier: supplier,
		dialer:   dialer,
		recorder: recorder,
		sink:     sink,
		logger:   log.Named("session"),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start begins capture and launches the run loop
func (p *Processor) Start() error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return fmt.Errorf("processor already started")
	}
	p.started = true
	p.startedAt = time.Now()
	p.mu.Unlock()

	if p.supplier != nil {
		if err := p.supplier.Start(); err != nil {
			return fmt.Errorf("failed to start audio capture: %w", err)
		}
	}

	p.logger.Info("Streaming session started",
		logger.Duration("streaming_limit", p.cfg.StreamingLimit),
		logger.Duration("chunk_duration", p.cfg.ChunkDuration),
		logger.Duration("max_overlap", p.cfg.MaxOverlap))

	p.wg.Add(1)
	go p.run()
	return nil
}

// Stop ends capture, lets the run loop drain pending audio, and waits for it
// to exit. It returns the run loop's error, if any.
func (p *Processor) Stop() error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	if p.supplier != nil {
		if err := p.supplier.Stop(); err != nil {
			p.logger.Warn("Failed to stop audio capture", logger.Error(err))
		}
	}
	p.buffer.Shutdown()
	// Abort an in-flight dial: audio pending at this point would only reach
	// a connection we are about to abandon
	p.cancel()
	p.wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runErr
}

// Done is closed when the run loop exits, whether cleanly or with an error
func (p *Processor) Done() <-chan struct{} {
	return p.done
}

// Err returns the run loop's terminal error, if any
func (p *Processor) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runErr
}

// Status reports a snapshot for the status API
func (p *Processor) Status() Status {
	p.mu.Lock()
	startedAt := p.startedAt
	p.mu.Unlock()

	var uptime float64
	if !startedAt.IsZero() {
		uptime = time.Since(startedAt).Seconds()
	}
	return Status{
		State:            p.session.State().String(),
		Restarts:         p.session.Restarts(),
		BridgingOffsetMs: p.session.BridgingOffset().Milliseconds(),
		BufferedChunks:   p.buffer.Len(),
		UptimeSeconds:    uptime,
		LastResultMs:     p.session.LastCorrectedResult().Milliseconds(),
	}
}

func (p *Processor) run() {
	defer p.wg.Done()
	defer close(p.done)

	// No network activity until capture delivers the first chunk
	first, ok := p.buffer.PopBlocking()
	if !ok {
		p.transition(StateClosed)
		p.logger.Info("Session closed before any audio arrived")
		return
	}

	pending := first
	for {
		carry, restart, err := p.runConnection(pending)
		if err != nil {
			p.transition(StateClosed)
			if errors.Is(err, context.Canceled) {
				p.logger.Debug("Session stopped during connection setup")
				return
			}
			p.mu.Lock()
			p.runErr = err
			p.mu.Unlock()
			p.logger.Error("Streaming session failed", logger.Error(err))
			return
		}
		if !restart {
			return
		}
		pending = carry
	}
}

// runConnection drives one physical connection. pending, when non-nil, is a
// chunk obtained before this connection opened — the very first captured
// chunk, or one that arrived just as the previous connection hit its limit —
// and is sent as the first fresh payload. It returns a chunk to carry into
// the next connection and whether a restart should follow.
func (p *Processor) runConnection(pending []byte) ([]byte, bool, error) {
	stream, err := p.dialer.Dial(p.ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to open recognizer connection: %w", err)
	}

	if err := p.session.BeginConnection(); err != nil {
		stream.Close()
		return nil, false, err
	}

	restarts := p.session.Restarts()
	p.logger.Info("Recognizer connection open",
		logger.Int("connection", restarts),
		logger.Duration("bridging_offset", p.session.BridgingOffset()))
	p.sink.Publish(display.Event{
		Kind:          display.KindLifecycle,
		Text:          "new connection",
		CorrectedTime: time.Duration(restarts) * p.cfg.StreamingLimit,
		Restart:       restarts,
		Timestamp:     time.Now(),
	})

	recvDone := make(chan struct{})
	go func() {
		defer close(recvDone)
		p.consumer.Consume(stream)
	}()

	// Trailing unfinalized audio from the previous connection opens the new
	// one; the chunks come from the session's copy, never from the buffer
	if overlap := p.session.OverlapChunks(); len(overlap) > 0 {
		if err := stream.SendAudio(flatten(overlap)); err != nil {
			p.logger.Warn("Connection failed while resending overlap", logger.Error(err))
			p.transition(StateRestarting)
			p.retire(stream, recvDone)
			ordinal := p.session.Restarts()
			p.saveRecording(p.session.Rotate(), ordinal)
			return nil, true, nil
		}
	}
	p.session.MarkOverlapSent()

	for {
		chunk := pending
		pending = nil
		if chunk == nil {
			var ok bool
			chunk, ok = p.buffer.PopBlocking()
			if !ok {
				// Supplier stopped and the buffer is drained
				p.retire(stream, recvDone)
				ordinal := p.session.Restarts()
				p.saveRecording(p.session.TakeAudio(), ordinal)
				p.transition(StateClosed)
				p.logger.Info("Streaming session closed",
					logger.Int("connections", ordinal+1))
				return nil, false, nil
			}
		}

		if p.session.TimeLimitReached() {
			p.logger.Info("Streaming limit reached, rotating connection",
				logger.Duration("limit", p.cfg.StreamingLimit))
			p.transition(StateRestarting)
			p.retire(stream, recvDone)
			ordinal := p.session.Restarts()
			p.saveRecording(p.session.Rotate(), ordinal)
			// The chunk in hand was never sent; it leads the next connection
			return chunk, true, nil
		}

		payload := [][]byte{chunk}
		for {
			extra, ok := p.buffer.PopNonBlocking()
			if !ok {
				break
			}
			payload = append(payload, extra)
		}
		p.session.AppendChunks(payload)
		if err := stream.SendAudio(flatten(payload)); err != nil {
			// Unexpected failure takes the same rotate path as the time
			// limit: losing audio is worse than a redundant resend
			p.logger.Warn("Connection failed, rotating", logger.Error(err))
			p.transition(StateRestarting)
			p.retire(stream, recvDone)
			ordinal := p.session.Restarts()
			p.saveRecording(p.session.Rotate(), ordinal)
			return nil, true, nil
		}
	}
}

// retire closes the connection and waits for the receive goroutine to finish
// processing anything it had already read
func (p *Processor) retire(stream Stream, recvDone <-chan struct{}) {
	if err := stream.Close(); err != nil {
		p.logger.Debug("Error closing recognizer connection", logger.Error(err))
	}
	<-recvDone
}

func (p *Processor) transition(to State) {
	if err := p.session.Transition(to); err != nil {
		p.logger.Warn("State transition rejected", logger.Error(err))
	}
}

func (p *Processor) saveRecording(chunks [][]byte, ordinal int) {
	if p.recorder == nil || len(chunks) == 0 {
		return
	}
	p.recorder.SaveConnection(chunks, ordinal)
}

func flatten(chunks [][]byte) []byte {
	if len(chunks) == 1 {
		return chunks[0]
	}
	size := 0
	for _, c := range chunks {
		size += len(c)
	}
	out := make([]byte, 0, size)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}
