package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dougsko/scumcal/pkg/diag"
	"github.com/dougsko/scumcal/pkg/tuning"
)

// EventQuery selects stored events. Zero fields match everything.
type EventQuery struct {
	Limit   int
	Offset  int
	Since   *time.Time
	Until   *time.Time
	Kind    diag.Kind
	Channel *int
	Mode    string // "RX", "TX", or "" for both
}

// StoredEvent is an event with its journal id
type StoredEvent struct {
	ID int64 `json:"id"`
	diag.Event
}

// ChannelCode is the last code the journal saw reported for a channel
type ChannelCode struct {
	Channel   int         `json:"channel"`
	Mode      tuning.Mode `json:"mode"`
	Code      tuning.Code `json:"code"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// JournalStats represents journal statistics
type JournalStats struct {
	TotalEvents      int       `json:"total_events"`
	TotalCalibrated  int       `json:"total_calibrated"`
	TotalFeedback    int       `json:"total_feedback"`
	TotalRadioErrors int       `json:"total_radio_errors"`
	StoredEvents     int       `json:"stored_events"`
	LastCleanup      time.Time `json:"last_cleanup"`
}

// GetEvents retrieves events, newest first
func (j *Journal) GetEvents(query EventQuery) ([]StoredEvent, error) {
	var args []interface{}
	var conditions []string

	sqlQuery := `
		SELECT id, timestamp, kind, channel, mode, coarse, mid, fine, message
		FROM events
		WHERE 1=1
	`

	if query.Since != nil {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, *query.Since)
	}

	if query.Until != nil {
		conditions = append(conditions, "timestamp <= ?")
		args = append(args, *query.Until)
	}

	if query.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, string(query.Kind))
	}

	if query.Channel != nil {
		conditions = append(conditions, "channel = ?")
		args = append(args, *query.Channel)
	}

	if query.Mode != "" {
		conditions = append(conditions, "mode = ?")
		args = append(args, query.Mode)
	}

	for _, condition := range conditions {
		sqlQuery += " AND " + condition
	}

	sqlQuery += " ORDER BY id DESC"

	if query.Limit > 0 {
		sqlQuery += " LIMIT ?"
		args = append(args, query.Limit)

		if query.Offset > 0 {
			sqlQuery += " OFFSET ?"
			args = append(args, query.Offset)
		}
	}

	rows, err := j.db.Query(sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []StoredEvent
	for rows.Next() {
		var (
			ev   StoredEvent
			kind string
			mode string
		)
		err := rows.Scan(
			&ev.ID,
			&ev.Time,
			&kind,
			&ev.Channel,
			&mode,
			&ev.Code.Coarse,
			&ev.Code.Mid,
			&ev.Code.Fine,
			&ev.Message,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.Kind = diag.Kind(kind)
		if ev.Mode, err = tuning.ParseMode(mode); err != nil {
			return nil, fmt.Errorf("failed to scan event %d: %w", ev.ID, err)
		}
		events = append(events, ev)
	}

	return events, rows.Err()
}

// GetRecentEvents retrieves the most recent events
func (j *Journal) GetRecentEvents(limit int) ([]StoredEvent, error) {
	return j.GetEvents(EventQuery{Limit: limit})
}

// GetChannelEvents retrieves the events of one channel and mode
func (j *Journal) GetChannelEvents(channel int, mode tuning.Mode, limit int) ([]StoredEvent, error) {
	return j.GetEvents(EventQuery{Channel: &channel, Mode: mode.String(), Limit: limit})
}

// GetChannelCodes returns the last reported code of every channel
func (j *Journal) GetChannelCodes() ([]ChannelCode, error) {
	rows, err := j.db.Query(`
		SELECT channel, mode, coarse, mid, fine, updated_at
		FROM channel_codes
		ORDER BY channel ASC, mode DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query channel codes: %w", err)
	}
	defer rows.Close()

	var codes []ChannelCode
	for rows.Next() {
		var (
			cc   ChannelCode
			mode string
		)
		if err := rows.Scan(&cc.Channel, &mode, &cc.Code.Coarse, &cc.Code.Mid, &cc.Code.Fine, &cc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan channel code: %w", err)
		}
		if cc.Mode, err = tuning.ParseMode(mode); err != nil {
			return nil, err
		}
		codes = append(codes, cc)
	}

	return codes, rows.Err()
}

// GetStats retrieves journal statistics
func (j *Journal) GetStats() (*JournalStats, error) {
	var stats JournalStats
	var lastCleanup sql.NullTime

	err := j.db.QueryRow(`
		SELECT total_events, total_calibrated, total_feedback, total_radio_errors, last_cleanup
		FROM journal_stats WHERE id = 1
	`).Scan(&stats.TotalEvents, &stats.TotalCalibrated, &stats.TotalFeedback, &stats.TotalRadioErrors, &lastCleanup)
	if err != nil {
		return nil, fmt.Errorf("failed to get journal stats: %w", err)
	}

	if lastCleanup.Valid {
		stats.LastCleanup = lastCleanup.Time
	}

	if stats.StoredEvents, err = j.GetEventCount(); err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}

	return &stats, nil
}

// GetEventCount returns the number of stored events
func (j *Journal) GetEventCount() (int, error) {
	var count int
	err := j.db.QueryRow("SELECT COUNT(*) FROM events").Scan(&count)
	return count, err
}
