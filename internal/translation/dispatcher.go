package translation

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sorvik/glossa/internal/display"
	"github.com/sorvik/glossa/pkg/logger"
)

type job struct {
	text          string
	correctedTime time.Duration
	restart       int
}

// Dispatcher runs translations on a single worker goroutine. Each finalized
// transcript is translated at most once and results are published in
// dispatch order; a full queue drops the newest transcript rather than block
// the caller.
type Dispatcher struct {
	translator Translator
	sink       display.Sink
	timeout    time.Duration
	jobs       chan job
	logger     *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher publishing translations to sink
func NewDispatcher(translator Translator, sink display.Sink, queueSize int, timeout time.Duration, log *logger.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 64
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if sink == nil {
		sink = display.Multi()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		translator: translator,
		sink:       sink,
		timeout:    timeout,
		jobs:       make(chan job, queueSize),
		logger:     log.Named("translation"),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start launches the worker goroutine
func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go d.worker()
	d.logger.Info("Translation dispatcher started",
		logger.Int("queue_size", cap(d.jobs)),
		logger.Duration("timeout", d.timeout))
}

// Dispatch enqueues one finalized transcript. It never blocks.
func (d *Dispatcher) Dispatch(text string, correctedTime time.Duration, restart int) {
	select {
	case d.jobs <- job{text: text, correctedTime: correctedTime, restart: restart}:
	default:
		d.logger.Warn("Translation queue full, dropping transcript",
			logger.Int("queue_size", cap(d.jobs)))
	}
}

// Stop ends the worker after any in-flight translation finishes. Queued
// transcripts that have not started are dropped.
func (d *Dispatcher) Stop() {
	d.cancel()
	d.wg.Wait()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			return
		case j := <-d.jobs:
			d.translate(j)
		}
	}
}

func (d *Dispatcher) translate(j job) {
	ctx, cancel := context.WithTimeout(d.ctx, d.timeout)
	defer cancel()

	start := time.Now()
	translated, err := d.translator.Translate(ctx, j.text)
	if err != nil {
		// Dropped, never retried: translation must not stall recognition
		d.logger.Warn("Translation failed",
			logger.String("text", j.text),
			logger.Error(err))
		return
	}
	if strings.TrimSpace(translated) == "" {
		d.logger.Debug("Discarding empty translation", logger.String("text", j.text))
		return
	}
	d.logger.Debug("Transcript translated",
		logger.Duration("took", time.Since(start)))
	d.sink.Publish(display.Event{
		Kind:          display.KindTranslation,
		Text:          translated,
		CorrectedTime: j.correctedTime,
		Restart:       j.restart,
		Timestamp:     time.Now(),
	})
}
