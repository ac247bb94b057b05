package analysis

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Status is the latest progress snapshot of an analysis.
type Status struct {
	Message  string `json:"message"`
	Progress int    `json:"progress"`
	StepName string `json:"step_name"`
	Step     int    `json:"step"`
}

// Record is the stored state of one analysis run.
type Record struct {
	AnalysisID  uuid.UUID `json:"analysis_id"`
	URL         string    `json:"url"`
	Status      Status    `json:"status"`
	LogMessages []string  `json:"log_messages"`
	Complete    bool      `json:"complete"`
	Success     *bool     `json:"success,omitempty"`
	Error       *string   `json:"error,omitempty"`
	Result      *Result   `json:"result,omitempty"`
	CreatedAt   time.Time `json:"timestamp"`
}

// Store persists analysis records and their progress logs using SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the analysis database at the given path.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS analyses (
		analysis_id TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		message TEXT NOT NULL,
		progress INTEGER NOT NULL,
		step_name TEXT NOT NULL,
		step INTEGER NOT NULL,
		complete INTEGER NOT NULL DEFAULT 0,
		success INTEGER,
		error TEXT,
		result TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS analysis_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		analysis_id TEXT NOT NULL,
		entry TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Create registers a new queued analysis and returns its record.
func (s *Store) Create(url string) (*Record, error) {
	record := &Record{
		AnalysisID: uuid.New(),
		URL:        url,
		Status: Status{
			Message:  "Analysis queued",
			Progress: 0,
			StepName: "Initialisation",
			Step:     0,
		},
		CreatedAt: time.Now(),
	}

	query := `
		INSERT INTO analyses (analysis_id, url, message, progress, step_name, step, complete, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?)
	`
	_, err := s.db.Exec(query,
		record.AnalysisID.String(),
		record.URL,
		record.Status.Message,
		record.Status.Progress,
		record.Status.StepName,
		record.Status.Step,
		record.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert analysis: %w", err)
	}

	if err := s.appendLog(record.AnalysisID, record.Status.Message); err != nil {
		return nil, err
	}

	record.LogMessages = []string{}
	return record, nil
}

// UpdateStatus replaces the latest status and appends a timestamped log
// entry. Progress is clamped to 0-100.
func (s *Store) UpdateStatus(id uuid.UUID, message string, progress int, stepName string, step int) error {
	progress = max(0, min(100, progress))

	result, err := s.db.Exec(
		"UPDATE analyses SET message = ?, progress = ?, step_name = ?, step = ? WHERE analysis_id = ?",
		message, progress, stepName, step, id.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("analysis not found")
	}

	return s.appendLog(id, message)
}

func (s *Store) appendLog(id uuid.UUID, message string) error {
	entry := fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), message)
	_, err := s.db.Exec("INSERT INTO analysis_log (analysis_id, entry) VALUES (?, ?)", id.String(), entry)
	if err != nil {
		return fmt.Errorf("failed to append log entry: %w", err)
	}
	return nil
}

// SetResult marks the analysis complete and successful with the given
// result.
func (s *Store) SetResult(id uuid.UUID, result *Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	res, err := s.db.Exec(
		"UPDATE analyses SET complete = 1, success = 1, result = ? WHERE analysis_id = ?",
		string(data), id.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to store result: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("analysis not found")
	}
	return nil
}

// SetError marks the analysis complete and failed with the given message.
func (s *Store) SetError(id uuid.UUID, message string) error {
	res, err := s.db.Exec(
		"UPDATE analyses SET complete = 1, success = 0, error = ? WHERE analysis_id = ?",
		message, id.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to store error: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("analysis not found")
	}
	return nil
}

// Get retrieves an analysis record with its log. Returns nil without error
// when the ID is unknown.
func (s *Store) Get(id uuid.UUID) (*Record, error) {
	query := `
		SELECT url, message, progress, step_name, step, complete, success, error, result, created_at
		FROM analyses
		WHERE analysis_id = ?
	`

	var record Record
	var complete int
	var success sql.NullBool
	var errMsg, resultJSON sql.NullString
	var createdAtStr string

	err := s.db.QueryRow(query, id.String()).Scan(
		&record.URL,
		&record.Status.Message,
		&record.Status.Progress,
		&record.Status.StepName,
		&record.Status.Step,
		&complete,
		&success,
		&errMsg,
		&resultJSON,
		&createdAtStr,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query analysis: %w", err)
	}

	record.AnalysisID = id
	record.Complete = complete != 0
	record.CreatedAt, _ = time.Parse(time.RFC3339, createdAtStr)

	if success.Valid {
		record.Success = &success.Bool
	}
	if errMsg.Valid {
		record.Error = &errMsg.String
	}
	if resultJSON.Valid {
		var result Result
		if err := json.Unmarshal([]byte(resultJSON.String), &result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal result: %w", err)
		}
		record.Result = &result
	}

	record.LogMessages, err = s.logMessages(id)
	if err != nil {
		return nil, err
	}

	return &record, nil
}

func (s *Store) logMessages(id uuid.UUID) ([]string, error) {
	rows, err := s.db.Query(
		"SELECT entry FROM analysis_log WHERE analysis_id = ? ORDER BY id",
		id.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query log: %w", err)
	}
	defer rows.Close()

	messages := []string{}
	for rows.Next() {
		var entry string
		if err := rows.Scan(&entry); err != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", err)
		}
		messages = append(messages, entry)
	}

	return messages, nil
}

// SinkFor adapts the store into a StatusSink bound to one analysis.
func (s *Store) SinkFor(id uuid.UUID) StatusSink {
	return storeSink{store: s, id: id}
}

type storeSink struct {
	store *Store
	id    uuid.UUID
}

func (s storeSink) Update(message string, progress int, stepName string, step int) {
	// Status updates are advisory; a write failure must not abort analysis
	_ = s.store.UpdateStatus(s.id, message, progress, stepName, step)
}
