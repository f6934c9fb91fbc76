// Package store persists chat interactions, project info submissions and UI
// event logs in SQLite.
//
//	st, err := store.Open("chatlab.db")
//	defer st.Close()
//
// In tests:
//
//	st := store.OpenMemory(t)
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("store: not found")

const schema = `
CREATE TABLE IF NOT EXISTS interactions (
    id             TEXT PRIMARY KEY,
    participant_id TEXT NOT NULL DEFAULT '',
    user_input     TEXT NOT NULL,
    bot_response   TEXT NOT NULL,
    created_at     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_interactions_participant ON interactions(participant_id, created_at);
CREATE TABLE IF NOT EXISTS project_info (
    id                    TEXT PRIMARY KEY,
    participant_id        TEXT NOT NULL DEFAULT '',
    project_name          TEXT NOT NULL DEFAULT '',
    author_names          TEXT NOT NULL DEFAULT '[]',
    github_handles        TEXT NOT NULL DEFAULT '[]',
    repo_link             TEXT NOT NULL DEFAULT '',
    programming_languages TEXT NOT NULL DEFAULT '[]',
    description           TEXT NOT NULL DEFAULT '',
    config_file_name      TEXT NOT NULL DEFAULT '',
    config_file_content   TEXT NOT NULL DEFAULT '',
    created_at            INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_project_info_participant ON project_info(participant_id, created_at);
CREATE TABLE IF NOT EXISTS event_logs (
    id             TEXT PRIMARY KEY,
    participant_id TEXT NOT NULL DEFAULT '',
    event_type     TEXT NOT NULL,
    element_name   TEXT NOT NULL DEFAULT '',
    created_at     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_event_logs_participant ON event_logs(participant_id, created_at)
`

// Store wraps the database handle
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens the database at path, applies the pragmas and the schema
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if path == ":memory:" {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	st, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return st, nil
}

// New applies pragmas and schema to an open database
func New(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("store: DB is required")
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("store: %s: %w", p, err)
		}
	}

	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("store schema: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// OpenMemory opens an in-memory store and closes it when the test ends
func OpenMemory(t testing.TB) *Store {
	t.Helper()
	st, err := Open(":memory:")
	if err != nil {
		t.Fatalf("store.OpenMemory: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle
func (s *Store) DB() *sql.DB {
	return s.db
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

func (s *Store) stamp(t time.Time) time.Time {
	if t.IsZero() {
		t = s.now()
	}
	return t.UTC().Truncate(time.Millisecond)
}

func toJSON(v []string) string {
	if v == nil {
		v = []string{}
	}
	data, _ := json.Marshal(v)
	return string(data)
}

func fromJSON(s string) ([]string, error) {
	var v []string
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Interaction is one user message and the reply it got
type Interaction struct {
	ID            string    `json:"id"`
	ParticipantID string    `json:"participantID"`
	UserInput     string    `json:"userInput"`
	BotResponse   string    `json:"botResponse"`
	CreatedAt     time.Time `json:"timestamp"`
}

// SaveInteraction stores an exchange. ID and CreatedAt are filled in when
// empty.
func (s *Store) SaveInteraction(ctx context.Context, in *Interaction) error {
	if in.ID == "" {
		in.ID = newID()
	}
	in.CreatedAt = s.stamp(in.CreatedAt)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO interactions (id, participant_id, user_input, bot_response, created_at) VALUES (?, ?, ?, ?, ?)`,
		in.ID, in.ParticipantID, in.UserInput, in.BotResponse, in.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("save interaction: %w", err)
	}
	return nil
}

// ListInteractions returns the most recent interactions of a participant in
// chronological order. limit <= 0 returns all of them.
func (s *Store) ListInteractions(ctx context.Context, participantID string, limit int) ([]Interaction, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, participant_id, user_input, bot_response, created_at FROM interactions
		 WHERE participant_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		participantID, limit)
	if err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}
	defer rows.Close()

	var out []Interaction
	for rows.Next() {
		var in Interaction
		var ts int64
		if err := rows.Scan(&in.ID, &in.ParticipantID, &in.UserInput, &in.BotResponse, &ts); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		in.CreatedAt = time.UnixMilli(ts).UTC()
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// ConfigFile is an uploaded configuration file
type ConfigFile struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// ProjectInfo describes a project a README is generated for
type ProjectInfo struct {
	ID                   string     `json:"id,omitempty"`
	ParticipantID        string     `json:"participantID"`
	ProjectName          string     `json:"projectName"`
	AuthorNames          []string   `json:"authorNames"`
	GithubHandles        []string   `json:"githubHandles"`
	RepoLink             string     `json:"repoLink"`
	ProgrammingLanguages []string   `json:"programmingLanguages"`
	Description          string     `json:"description"`
	ConfigFile           ConfigFile `json:"configFile"`
	CreatedAt            time.Time  `json:"timestamp"`
}

// SaveProjectInfo stores a project info submission
func (s *Store) SaveProjectInfo(ctx context.Context, p *ProjectInfo) error {
	if p.ID == "" {
		p.ID = newID()
	}
	p.CreatedAt = s.stamp(p.CreatedAt)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO project_info (id, participant_id, project_name, author_names, github_handles, repo_link,
		 programming_languages, description, config_file_name, config_file_content, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.ParticipantID, p.ProjectName, toJSON(p.AuthorNames), toJSON(p.GithubHandles), p.RepoLink,
		toJSON(p.ProgrammingLanguages), p.Description, p.ConfigFile.Name, p.ConfigFile.Content,
		p.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("save project info: %w", err)
	}
	return nil
}

// GetProjectInfo loads a submission by id
func (s *Store) GetProjectInfo(ctx context.Context, id string) (*ProjectInfo, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, participant_id, project_name, author_names, github_handles, repo_link,
		 programming_languages, description, config_file_name, config_file_content, created_at
		 FROM project_info WHERE id = ?`, id)

	var p ProjectInfo
	var authors, handles, langs string
	var ts int64
	err := row.Scan(&p.ID, &p.ParticipantID, &p.ProjectName, &authors, &handles, &p.RepoLink,
		&langs, &p.Description, &p.ConfigFile.Name, &p.ConfigFile.Content, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get project info: %w", err)
	}

	if p.AuthorNames, err = fromJSON(authors); err != nil {
		return nil, fmt.Errorf("decode author names: %w", err)
	}
	if p.GithubHandles, err = fromJSON(handles); err != nil {
		return nil, fmt.Errorf("decode github handles: %w", err)
	}
	if p.ProgrammingLanguages, err = fromJSON(langs); err != nil {
		return nil, fmt.Errorf("decode programming languages: %w", err)
	}
	p.CreatedAt = time.UnixMilli(ts).UTC()
	return &p, nil
}

// EventLog is one UI interaction event
type EventLog struct {
	ID            string    `json:"id"`
	ParticipantID string    `json:"participantID"`
	EventType     string    `json:"eventType"`
	ElementName   string    `json:"elementName"`
	CreatedAt     time.Time `json:"timestamp"`
}

// SaveEvent stores an event
func (s *Store) SaveEvent(ctx context.Context, e *EventLog) error {
	if e.ID == "" {
		e.ID = newID()
	}
	e.CreatedAt = s.stamp(e.CreatedAt)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO event_logs (id, participant_id, event_type, element_name, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.ParticipantID, e.EventType, e.ElementName, e.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("save event: %w", err)
	}
	return nil
}

// ListEvents returns the events of a participant oldest first
func (s *Store) ListEvents(ctx context.Context, participantID string) ([]EventLog, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, participant_id, event_type, element_name, created_at FROM event_logs
		 WHERE participant_id = ? ORDER BY created_at, rowid`, participantID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []EventLog
	for rows.Next() {
		var e EventLog
		var ts int64
		if err := rows.Scan(&e.ID, &e.ParticipantID, &e.EventType, &e.ElementName, &ts); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.CreatedAt = time.UnixMilli(ts).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
