package sqlite

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/sorvik/glossa/pkg/logger"
)

func testStorage(t *testing.T) *RecordingStorage {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "console"})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	storage, err := NewRecordingStorage(filepath.Join(t.TempDir(), "index.db"), log)
	if err != nil {
		t.Fatalf("failed to open storage: %v", err)
	}
	t.Cleanup(func() { storage.Close() })
	return storage
}

func TestStoreAndGetRecording(t *testing.T) {
	storage := testStorage(t)

	started := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	record := &RecordingRecord{
		Ordinal:    0,
		Path:       "/recordings/session_0000.wav",
		StartedAt:  started,
		EndedAt:    started.Add(24 * time.Second),
		DurationMs: 24000,
		ChunkCount: 240,
		SizeBytes:  768044,
	}

	id, err := storage.StoreRecording(record)
	if err != nil {
		t.Fatalf("StoreRecording failed: %v", err)
	}
	if id == 0 {
		t.Error("expected a non-zero row ID")
	}

	records, err := storage.GetRecordings(10, 0)
	if err != nil {
		t.Fatalf("GetRecordings failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	got := records[0]
	if got.Ordinal != 0 || got.Path != record.Path {
		t.Errorf("unexpected record: %+v", got)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("expected started_at %v, got %v", started, got.StartedAt)
	}
	if !got.EndedAt.Equal(record.EndedAt) {
		t.Errorf("expected ended_at %v, got %v", record.EndedAt, got.EndedAt)
	}
	if got.DurationMs != 24000 || got.ChunkCount != 240 || got.SizeBytes != 768044 {
		t.Errorf("metadata not preserved: %+v", got)
	}
}

func TestGetRecordingsPagination(t *testing.T) {
	storage := testStorage(t)

	now := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 5; i++ {
		_, err := storage.StoreRecording(&RecordingRecord{
			Ordinal:    i,
			Path:       fmt.Sprintf("/recordings/session_%04d.wav", i),
			StartedAt:  now,
			EndedAt:    now,
			DurationMs: 1000,
			ChunkCount: 10,
			SizeBytes:  32044,
		})
		if err != nil {
			t.Fatalf("StoreRecording %d failed: %v", i, err)
		}
	}

	count, err := storage.CountRecordings()
	if err != nil {
		t.Fatalf("CountRecordings failed: %v", err)
	}
	if count != 5 {
		t.Errorf("expected 5 recordings, got %d", count)
	}

	// Newest first
	page, err := storage.GetRecordings(2, 0)
	if err != nil {
		t.Fatalf("GetRecordings failed: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected 2 records, got %d", len(page))
	}
	if page[0].Ordinal != 4 || page[1].Ordinal != 3 {
		t.Errorf("expected newest first, got ordinals %d, %d", page[0].Ordinal, page[1].Ordinal)
	}

	page, err = storage.GetRecordings(2, 4)
	if err != nil {
		t.Fatalf("GetRecordings with offset failed: %v", err)
	}
	if len(page) != 1 || page[0].Ordinal != 0 {
		t.Errorf("unexpected final page: %+v", page)
	}
}

func TestGetRecordingsEmpty(t *testing.T) {
	storage := testStorage(t)

	records, err := storage.GetRecordings(10, 0)
	if err != nil {
		t.Fatalf("GetRecordings failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no records, got %d", len(records))
	}
}
