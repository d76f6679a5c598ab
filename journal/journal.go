// Package journal keeps a durable record of what the bot decided and why:
// escalations, rule switches, action faults and signal edges. It is for
// operators reading back a session, not for the decision loop itself.
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Kind classifies an entry.
type Kind string

const (
	KindEscalation  Kind = "escalation"
	KindRuleSwitch  Kind = "rule_switch"
	KindActionFault Kind = "action_fault"
	KindSignalEdge  Kind = "signal_edge"
	KindRace        Kind = "race"
)

// Entry is one journal line.
type Entry struct {
	ID     string
	Kind   Kind
	Name   string
	Detail string
	At     time.Time
}

// Journal is an append-only SQLite log.
type Journal struct {
	db *sql.DB
}

// Open creates or opens the journal at path.
//
// The database is configured with WAL mode and a busy timeout so the
// journal command can read while a bot is writing.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to journal: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Record appends an entry. A missing ID gets a UUIDv7, a missing time gets now.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.Must(uuid.NewV7()).String()
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO entries (id, kind, name, detail, at) VALUES (?, ?, ?, ?, ?)`,
		e.ID, string(e.Kind), e.Name, e.Detail, e.At.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("record %s %s: %w", e.Kind, e.Name, err)
	}
	return nil
}

// Recent returns up to limit entries, newest first. An empty kind matches all.
func (j *Journal) Recent(ctx context.Context, kind Kind, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, kind, name, detail, at FROM entries
		WHERE (? = '' OR kind = ?)
		ORDER BY seq DESC
		LIMIT ?`, string(kind), string(kind), limit)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e    Entry
			k    string
			nano int64
		)
		if err := rows.Scan(&e.ID, &k, &e.Name, &e.Detail, &nano); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Kind = Kind(k)
		e.At = time.Unix(0, nano)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Count returns how many entries of kind exist. An empty kind counts all.
func (j *Journal) Count(ctx context.Context, kind Kind) (int, error) {
	var n int
	err := j.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entries WHERE (? = '' OR kind = ?)`, string(kind), string(kind),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}
