package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sorvik/glossa/pkg/logger"
)

// Import logger functions
var (
	String = logger.String
	Error  = logger.Error
)

// RecordingRecord is one per-connection WAV recording in the index
type RecordingRecord struct {
	ID         int64     `json:"id"`
	Ordinal    int       `json:"ordinal"`
	Path       string    `json:"path"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
	DurationMs int64     `json:"duration_ms"`
	ChunkCount int       `json:"chunk_count"`
	SizeBytes  int64     `json:"size_bytes"`
}

// RecordingStorage is a SQLite-based index of connection recordings. It
// stores file metadata only, never audio or transcripts.
type RecordingStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewRecordingStorage opens (or creates) the recordings index database
func NewRecordingStorage(dbPath string, log *logger.Logger) (*RecordingStorage, error) {
	storageLogger := log.Named("sqlite")

	storageLogger.Info("Initializing SQLite recordings index",
		String("path", dbPath))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool limits
	db.SetMaxOpenConns(1) // SQLite only supports one writer at a time
	db.SetMaxIdleConns(1)

	// Set pragmas for better performance and concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to set journal mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	storage := &RecordingStorage{
		db:     db,
		logger: storageLogger,
	}
	if err := storage.initDB(); err != nil {
		db.Close()
		return nil, err
	}
	return storage, nil
}

// initDB initializes the database tables
func (s *RecordingStorage) initDB() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS recordings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ordinal INTEGER NOT NULL,
			path TEXT NOT NULL,
			started_at TIMESTAMP NOT NULL,
			ended_at TIMESTAMP NOT NULL,
			duration_ms INTEGER NOT NULL,
			chunk_count INTEGER NOT NULL,
			size_bytes INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create recordings table: %w", err)
	}

	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_recordings_ordinal ON recordings(ordinal)`)
	if err != nil {
		return fmt.Errorf("failed to create ordinal index: %w", err)
	}

	return nil
}

// StoreRecording inserts one index row
func (s *RecordingStorage) StoreRecording(record *RecordingRecord) (int64, error) {
	result, err := s.db.Exec(
		`INSERT INTO recordings
		(ordinal, path, started_at, ended_at, duration_ms, chunk_count, size_bytes)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.Ordinal,
		record.Path,
		record.StartedAt.Format(time.RFC3339),
		record.EndedAt.Format(time.RFC3339),
		record.DurationMs,
		record.ChunkCount,
		record.SizeBytes,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert recording: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}
	return id, nil
}

// GetRecordings returns index rows, newest first, with pagination
func (s *RecordingStorage) GetRecordings(limit, offset int) ([]*RecordingRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, ordinal, path, started_at, ended_at, duration_ms, chunk_count, size_bytes
		FROM recordings
		ORDER BY id DESC
		LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query recordings: %w", err)
	}
	defer rows.Close()

	var records []*RecordingRecord
	for rows.Next() {
		var record RecordingRecord
		var startedAt, endedAt string

		if err := rows.Scan(
			&record.ID,
			&record.Ordinal,
			&record.Path,
			&startedAt,
			&endedAt,
			&record.DurationMs,
			&record.ChunkCount,
			&record.SizeBytes,
		); err != nil {
			return nil, fmt.Errorf("failed to scan recording: %w", err)
		}

		record.StartedAt, err = time.Parse(time.RFC3339, startedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse started_at: %w", err)
		}
		record.EndedAt, err = time.Parse(time.RFC3339, endedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse ended_at: %w", err)
		}

		records = append(records, &record)
	}
	return records, rows.Err()
}

// CountRecordings returns the total number of index rows
func (s *RecordingStorage) CountRecordings() (int, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM recordings`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count recordings: %w", err)
	}
	return count, nil
}

// Close closes the database connection
func (s *RecordingStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
