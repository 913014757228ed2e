// Package recorder keeps an append-only sqlite log of rig sessions for
// offline analysis. Nothing in the control loops reads it back.
package recorder

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/rig/internal/pose"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Session kinds.
const (
	KindPath  = "path"
	KindFlash = "flash"
)

// Store is the sqlite session database.
type Store struct {
	*sql.DB
}

// Open opens (or creates) the database at path and migrates it to the
// latest schema.
func Open(path string) (*Store, error) {
	// foreign_keys is per connection, so it goes in the DSN rather than a
	// one-off PRAGMA.
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	// One connection keeps writes serialized and lets :memory: databases
	// survive across statements.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set pragmas: %w", err)
	}

	s := &Store{DB: db}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrateUp() error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(s.DB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{}
	// m is not closed: closing it would close the shared connection.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// migrateLogger implements migrate.Logger
type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	log.Printf("[migrate] "+format, v...)
}

func (l *migrateLogger) Verbose() bool {
	return false
}

// Session describes one recorded run of a loop.
type Session struct {
	ID        string
	Kind      string
	StartedAt time.Time
	Config    string
}

// StartSession registers a new session and returns its id.
func (s *Store) StartSession(kind, config string, at time.Time) (Session, error) {
	sess := Session{ID: uuid.NewString(), Kind: kind, StartedAt: at, Config: config}
	_, err := s.Exec(
		`INSERT INTO sessions (session_id, kind, started_unix_nano, config) VALUES (?, ?, ?, ?)`,
		sess.ID, sess.Kind, at.UnixNano(), config,
	)
	if err != nil {
		return Session{}, fmt.Errorf("failed to record session: %w", err)
	}
	return sess, nil
}

// LatestSession returns the most recently started session of kind.
func (s *Store) LatestSession(kind string) (Session, error) {
	sess, err := scanSession(s.QueryRow(
		`SELECT session_id, kind, started_unix_nano, config FROM sessions
		 WHERE kind = ? ORDER BY started_unix_nano DESC LIMIT 1`, kind,
	))
	if err != nil {
		return Session{}, fmt.Errorf("no %s session found: %w", kind, err)
	}
	return sess, nil
}

// Session returns the session with id.
func (s *Store) Session(id string) (Session, error) {
	sess, err := scanSession(s.QueryRow(
		`SELECT session_id, kind, started_unix_nano, config FROM sessions WHERE session_id = ?`, id,
	))
	if err != nil {
		return Session{}, fmt.Errorf("session %s not found: %w", id, err)
	}
	return sess, nil
}

func scanSession(row *sql.Row) (Session, error) {
	var sess Session
	var started int64
	var config sql.NullString
	if err := row.Scan(&sess.ID, &sess.Kind, &started, &config); err != nil {
		return Session{}, err
	}
	sess.StartedAt = time.Unix(0, started)
	sess.Config = config.String
	return sess, nil
}

// PoseSample is one recorded pose.
type PoseSample struct {
	At   time.Time
	Pose pose.Pose
}

// FlashEvent is one recorded output transition.
type FlashEvent struct {
	At         time.Time
	Zone       int
	FrameCount int
	Frequency  float64
	Level      bool
}

func (s *Store) insertBatch(sessionID string, poses []PoseSample, events []FlashEvent) error {
	tx, err := s.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if len(poses) > 0 {
		stmt, err := tx.Prepare(`INSERT INTO poses (session_id, unix_nano, x, y, heading) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, p := range poses {
			if _, err := stmt.Exec(sessionID, p.At.UnixNano(), p.Pose.X, p.Pose.Y, p.Pose.Heading); err != nil {
				return err
			}
		}
	}

	if len(events) > 0 {
		stmt, err := tx.Prepare(`INSERT INTO flash_events (session_id, unix_nano, zone, frame_count, frequency, level) VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, e := range events {
			level := 0
			if e.Level {
				level = 1
			}
			if _, err := stmt.Exec(sessionID, e.At.UnixNano(), e.Zone, e.FrameCount, e.Frequency, level); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// Poses returns a session's poses in time order.
func (s *Store) Poses(sessionID string) ([]PoseSample, error) {
	rows, err := s.Query(
		`SELECT unix_nano, x, y, heading FROM poses WHERE session_id = ? ORDER BY unix_nano, rowid`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PoseSample
	for rows.Next() {
		var ns int64
		var p PoseSample
		if err := rows.Scan(&ns, &p.Pose.X, &p.Pose.Y, &p.Pose.Heading); err != nil {
			return nil, err
		}
		p.At = time.Unix(0, ns)
		out = append(out, p)
	}
	return out, rows.Err()
}

// FlashEvents returns a session's output transitions in time order.
func (s *Store) FlashEvents(sessionID string) ([]FlashEvent, error) {
	rows, err := s.Query(
		`SELECT unix_nano, zone, frame_count, frequency, level FROM flash_events
		 WHERE session_id = ? ORDER BY unix_nano, rowid`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FlashEvent
	for rows.Next() {
		var ns int64
		var level int
		var e FlashEvent
		if err := rows.Scan(&ns, &e.Zone, &e.FrameCount, &e.Frequency, &level); err != nil {
			return nil, err
		}
		e.At = time.Unix(0, ns)
		e.Level = level == 1
		out = append(out, e)
	}
	return out, rows.Err()
}
