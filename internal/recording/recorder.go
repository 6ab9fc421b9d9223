// Package recording persists each closed connection's audio as a numbered
// WAV file with a SQLite index row. Recording is observational: failures are
// logged and swallowed so they can never interrupt the streaming path.
package recording

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sorvik/glossa/internal/audio"
	"github.com/sorvik/glossa/internal/storage/sqlite"
	"github.com/sorvik/glossa/pkg/logger"
)

// Recorder writes per-connection WAV files under a single directory
type Recorder struct {
	dir           string
	sampleRate    int
	channels      int
	chunkDuration time.Duration
	store         *sqlite.RecordingStorage
	logger        *logger.Logger
}

// NewRecorder creates the recordings directory if needed. store may be nil
// to skip indexing.
func NewRecorder(dir string, sampleRate, channels int, chunkDuration time.Duration, store *sqlite.RecordingStorage, log *logger.Logger) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create recordings directory: %w", err)
	}
	return &Recorder{
		dir:           dir,
		sampleRate:    sampleRate,
		channels:      channels,
		chunkDuration: chunkDuration,
		store:         store,
		logger:        log.Named("recording"),
	}, nil
}

// SaveConnection writes one connection's fresh audio as session_NNNN.wav and
// indexes it. Implements the session recorder hook.
func (r *Recorder) SaveConnection(chunks [][]byte, ordinal int) {
	if len(chunks) == 0 {
		return
	}

	size := 0
	for _, c := range chunks {
		size += len(c)
	}
	pcm := make([]byte, 0, size)
	for _, c := range chunks {
		pcm = append(pcm, c...)
	}

	data, err := audio.EncodeWAV(pcm, r.sampleRate, r.channels)
	if err != nil {
		r.logger.Error("Failed to encode connection audio", logger.Error(err))
		return
	}

	path := filepath.Join(r.dir, fmt.Sprintf("session_%04d.wav", ordinal))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		r.logger.Error("Failed to write recording",
			logger.String("path", path),
			logger.Error(err))
		return
	}

	duration := time.Duration(len(chunks)) * r.chunkDuration
	ended := time.Now().UTC()
	if r.store != nil {
		_, err := r.store.StoreRecording(&sqlite.RecordingRecord{
			Ordinal:    ordinal,
			Path:       path,
			StartedAt:  ended.Add(-duration),
			EndedAt:    ended,
			DurationMs: duration.Milliseconds(),
			ChunkCount: len(chunks),
			SizeBytes:  int64(len(data)),
		})
		if err != nil {
			r.logger.Error("Failed to index recording",
				logger.String("path", path),
				logger.Error(err))
		}
	}

	r.logger.Info("Connection audio saved",
		logger.String("path", path),
		logger.Duration("duration", duration),
		logger.Int("chunks", len(chunks)))
}
