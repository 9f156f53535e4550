package eventlog

import (
	"database/sql"

	"github.com/LdDl/mot-counter/counting"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

const schema = `
	CREATE TABLE IF NOT EXISTS crossing_events (
		event_id          INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id        TEXT NOT NULL,
		timestamp         TEXT NOT NULL,
		track_id          BIGINT NOT NULL,
		direction         TEXT NOT NULL,
		prev_cx           BIGINT NOT NULL,
		curr_cx           BIGINT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_crossing_events_session ON crossing_events (session_id, timestamp);
`

// SQLiteWriter mirrors crossing events into SQLite database.
// Rows are tagged with session identifier so several runs may share one database.
type SQLiteWriter struct {
	db        *sql.DB
	sessionID uuid.UUID
}

// OpenSQLite opens database at path and ensures schema exists
func OpenSQLite(path string, sessionID uuid.UUID) (*SQLiteWriter, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "can't open sqlite database %s", path)
	}
	if _, err = db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "can't create schema")
	}
	return &SQLiteWriter{
		db:        db,
		sessionID: sessionID,
	}, nil
}

// SessionID returns identifier stamped into rows
func (w *SQLiteWriter) SessionID() uuid.UUID {
	return w.sessionID
}

// Write implements counting.EventWriter
func (w *SQLiteWriter) Write(event counting.CrossingEvent) error {
	_, err := w.db.Exec(
		`INSERT INTO crossing_events (session_id, timestamp, track_id, direction, prev_cx, curr_cx) VALUES (?, ?, ?, ?, ?, ?)`,
		w.sessionID.String(),
		event.Timestamp(),
		event.TrackID,
		event.Direction.String(),
		event.PrevCX,
		event.CurrCX,
	)
	if err != nil {
		return errors.Wrapf(err, "can't insert event for track %d", event.TrackID)
	}
	return nil
}

// Counts returns number of IN and OUT rows recorded for session
func (w *SQLiteWriter) Counts(sessionID uuid.UUID) (counting.Counters, error) {
	rows, err := w.db.Query(
		`SELECT direction, COUNT(*) FROM crossing_events WHERE session_id = ? GROUP BY direction`,
		sessionID.String(),
	)
	if err != nil {
		return counting.Counters{}, errors.Wrap(err, "can't query counts")
	}
	defer rows.Close()
	counters := counting.Counters{}
	for rows.Next() {
		var direction string
		var count int
		if err := rows.Scan(&direction, &count); err != nil {
			return counting.Counters{}, errors.Wrap(err, "can't scan counts")
		}
		switch direction {
		case counting.DirectionIn.String():
			counters.In = count
		case counting.DirectionOut.String():
			counters.Out = count
		}
	}
	return counters, errors.Wrap(rows.Err(), "can't iterate counts")
}

// Close implements counting.EventWriter
func (w *SQLiteWriter) Close() error {
	return errors.Wrap(w.db.Close(), "can't close sqlite database")
}
