package audio

import "sync"

// ChunkBuffer is a thread-safe FIFO queue of captured audio chunks. It
// decouples the real-time capture callback from the consumer that builds
// outbound recognizer requests: Push never blocks beyond mutex acquisition
// and never drops a chunk, while consumers can pop with or without blocking.
//
// Shutdown wakes every blocked consumer. Chunks already queued remain
// poppable after shutdown; the closed signal is only reported once the
// queue is drained.
type ChunkBuffer struct {
	mu     sync.Mutex
	cond   *sync.Cond
	chunks [][]byte
	closed bool
}

// NewChunkBuffer creates an empty chunk buffer
func NewChunkBuffer() *ChunkBuffer {
	b := &ChunkBuffer{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Push appends a chunk to the queue. Chunks pushed after Shutdown are
// discarded; the capture callback may race the stop signal.
func (b *ChunkBuffer) Push(chunk []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.chunks = append(b.chunks, chunk)
	b.cond.Signal()
}

// PopBlocking returns the next chunk, waiting until one is available. The
// second return value is false once the buffer has been shut down and all
// pending chunks have been drained.
func (b *ChunkBuffer) PopBlocking() ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for len(b.chunks) == 0 && !b.closed {
		b.cond.Wait()
	}
	if len(b.chunks) == 0 {
		return nil, false
	}

	chunk := b.chunks[0]
	b.chunks = b.chunks[1:]
	return chunk, true
}

// PopNonBlocking returns the next chunk if one is immediately available,
// or (nil, false) without waiting.
func (b *ChunkBuffer) PopNonBlocking() ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.chunks) == 0 {
		return nil, false
	}

	chunk := b.chunks[0]
	b.chunks = b.chunks[1:]
	return chunk, true
}

// Shutdown marks the buffer closed and wakes all blocked consumers
func (b *ChunkBuffer) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	b.cond.Broadcast()
}

// Len returns the number of chunks currently queued
func (b *ChunkBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.chunks)
}

// Closed reports whether Shutdown has been called
func (b *ChunkBuffer) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}
