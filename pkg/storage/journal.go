// Package storage keeps a SQLite journal of calibration events. The journal
// is a diagnostic record only; calibration never reads codes back from it.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dougsko/scumcal/pkg/diag"
	"github.com/dougsko/scumcal/pkg/logging"
	_ "github.com/mattn/go-sqlite3"
)

// Journal stores diagnostic events and the last code reported per channel
type Journal struct {
	db        *sql.DB
	dbPath    string
	maxEvents int
}

// NewJournal opens or creates the journal at dbPath. maxEvents caps the
// number of stored events; zero keeps everything.
func NewJournal(dbPath string, maxEvents int) (*Journal, error) {
	j := &Journal{
		dbPath:    dbPath,
		maxEvents: maxEvents,
	}

	if err := j.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize journal: %w", err)
	}

	return j, nil
}

func (j *Journal) initialize() error {
	if j.dbPath == "" {
		j.dbPath = "./scumcal.db"
	}

	if err := os.MkdirAll(filepath.Dir(j.dbPath), 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	connectionString := j.dbPath + "?_busy_timeout=10000&_journal_mode=WAL&_foreign_keys=on"

	db, err := sql.Open("sqlite3", connectionString)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	j.db = db

	if err := j.createTables(); err != nil {
		db.Close()
		return fmt.Errorf("failed to create tables: %w", err)
	}

	if err := j.createIndexes(); err != nil {
		db.Close()
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	logging.Infof("STORAGE", "Journal initialized: %s (max %d events)", j.dbPath, j.maxEvents)
	return nil
}

func (j *Journal) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		kind TEXT NOT NULL,
		channel INTEGER NOT NULL DEFAULT 0,
		mode TEXT NOT NULL CHECK (mode IN ('RX', 'TX')),
		coarse INTEGER NOT NULL DEFAULT 0,
		mid INTEGER NOT NULL DEFAULT 0,
		fine INTEGER NOT NULL DEFAULT 0,
		message TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS channel_codes (
		channel INTEGER NOT NULL,
		mode TEXT NOT NULL CHECK (mode IN ('RX', 'TX')),
		coarse INTEGER NOT NULL,
		mid INTEGER NOT NULL,
		fine INTEGER NOT NULL,
		last_event_id INTEGER,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (channel, mode),
		FOREIGN KEY (last_event_id) REFERENCES events(id) ON DELETE SET NULL
	);

	CREATE TABLE IF NOT EXISTS journal_stats (
		id INTEGER PRIMARY KEY,
		total_events INTEGER NOT NULL DEFAULT 0,
		total_calibrated INTEGER NOT NULL DEFAULT 0,
		total_feedback INTEGER NOT NULL DEFAULT 0,
		total_radio_errors INTEGER NOT NULL DEFAULT 0,
		last_cleanup DATETIME,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	INSERT OR IGNORE INTO journal_stats (id) VALUES (1);
	`

	_, err := j.db.Exec(schema)
	return err
}

func (j *Journal) createIndexes() error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp DESC)",
		"CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind)",
		"CREATE INDEX IF NOT EXISTS idx_events_channel_mode ON events(channel, mode)",
	}

	for _, indexSQL := range indexes {
		if _, err := j.db.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// Emit stores e. Storage errors are logged and otherwise ignored.
func (j *Journal) Emit(e diag.Event) {
	if _, err := j.Store(e); err != nil {
		logging.Warnf("STORAGE", "Failed to store %s event: %v", e.Kind, err)
	}
}

// Store writes one event and returns its id
func (j *Journal) Store(e diag.Event) (int64, error) {
	e = diag.Stamp(e)

	tx, err := j.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`
		INSERT INTO events (timestamp, kind, channel, mode, coarse, mid, fine, message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.Time, string(e.Kind), e.Channel, e.Mode.String(),
		e.Code.Coarse, e.Code.Mid, e.Code.Fine, e.Message)
	if err != nil {
		return 0, fmt.Errorf("failed to insert event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get event ID: %w", err)
	}

	if e.Kind == diag.KindCalibrated || e.Kind == diag.KindFeedback {
		if err := j.updateChannelCode(tx, id, e); err != nil {
			return 0, fmt.Errorf("failed to update channel code: %w", err)
		}
	}

	if err := j.updateStats(tx, e.Kind); err != nil {
		return 0, fmt.Errorf("failed to update stats: %w", err)
	}

	if err := j.cleanupOldEvents(tx); err != nil {
		logging.Warnf("STORAGE", "Failed to cleanup old events: %v", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

func (j *Journal) updateChannelCode(tx *sql.Tx, eventID int64, e diag.Event) error {
	_, err := tx.Exec(`
		INSERT INTO channel_codes (channel, mode, coarse, mid, fine, last_event_id)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(channel, mode) DO UPDATE SET
			coarse = excluded.coarse,
			mid = excluded.mid,
			fine = excluded.fine,
			last_event_id = excluded.last_event_id,
			updated_at = CURRENT_TIMESTAMP
	`, e.Channel, e.Mode.String(), e.Code.Coarse, e.Code.Mid, e.Code.Fine, eventID)
	return err
}

func (j *Journal) updateStats(tx *sql.Tx, kind diag.Kind) error {
	k := string(kind)
	_, err := tx.Exec(`
		UPDATE journal_stats SET
			total_events = total_events + 1,
			total_calibrated = CASE WHEN ? = 'calibrated' THEN total_calibrated + 1 ELSE total_calibrated END,
			total_feedback = CASE WHEN ? = 'feedback' THEN total_feedback + 1 ELSE total_feedback END,
			total_radio_errors = CASE WHEN ? = 'radio_error' THEN total_radio_errors + 1 ELSE total_radio_errors END,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = 1
	`, k, k, k)
	return err
}

// CleanupOldEvents removes events beyond the maximum
func (j *Journal) CleanupOldEvents() error {
	tx, err := j.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := j.cleanupOldEvents(tx); err != nil {
		return err
	}

	return tx.Commit()
}

func (j *Journal) cleanupOldEvents(tx *sql.Tx) error {
	if j.maxEvents <= 0 {
		return nil
	}

	var count int
	if err := tx.QueryRow("SELECT COUNT(*) FROM events").Scan(&count); err != nil {
		return err
	}

	if count <= j.maxEvents {
		return nil
	}

	_, err := tx.Exec(`
		DELETE FROM events
		WHERE id IN (
			SELECT id FROM events
			ORDER BY id ASC
			LIMIT ?
		)
	`, count-j.maxEvents)
	if err != nil {
		return err
	}

	_, err = tx.Exec("UPDATE journal_stats SET last_cleanup = CURRENT_TIMESTAMP WHERE id = 1")
	return err
}

// Clear deletes every event and channel code, keeping the totals
func (j *Journal) Clear() error {
	tx, err := j.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM channel_codes"); err != nil {
		return fmt.Errorf("failed to clear channel codes: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM events"); err != nil {
		return fmt.Errorf("failed to clear events: %w", err)
	}
	return tx.Commit()
}

// Close closes the database connection
func (j *Journal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}
