package backend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/agusx1211/mailflow/internal/hexid"

	_ "modernc.org/sqlite"
)

var (
	ErrNotFound = errors.New("backend: not found")
	ErrConflict = errors.New("backend: already exists")
)

// naiveLayout is how step timestamps are written: UTC wall clock without a
// zone designator, the way the production API serializes them.
const naiveLayout = "2006-01-02T15:04:05.000000"

// User is a stored account.
type User struct {
	ID             string
	Email          string
	HashedPassword string
	FullName       string
	IsActive       bool
	IsSuperuser    bool
}

// Item is a stored item.
type Item struct {
	ID          string
	Title       string
	Description string
	OwnerID     string
}

// Run is one agent run.
type Run struct {
	ID            string
	Sender        string
	Subject       string
	Body          string
	Status        string
	StatusMessage string
	DraftSubject  string
	DraftBody     string
}

// Step is one processing stage of a run.
type Step struct {
	ID        string
	RunID     string
	Type      string
	Text      string
	Status    string
	CreatedAt time.Time
}

// Store persists users, items, runs and steps in SQLite.
type Store struct {
	db *sql.DB
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS user (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	hashed_password TEXT NOT NULL,
	full_name TEXT NOT NULL DEFAULT '',
	is_active INTEGER NOT NULL DEFAULT 1,
	is_superuser INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS item (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	owner_id TEXT NOT NULL REFERENCES user(id) ON DELETE CASCADE,
	created_at TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS agent_run (
	id TEXT PRIMARY KEY,
	mail_sender TEXT NOT NULL DEFAULT '',
	mail_subject TEXT NOT NULL DEFAULT '',
	mail_body TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	status_message TEXT NOT NULL DEFAULT '',
	draft_subject TEXT NOT NULL DEFAULT '',
	draft_body TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS step (
	id TEXT PRIMARY KEY,
	agent_run_id TEXT NOT NULL REFERENCES agent_run(id) ON DELETE CASCADE,
	type TEXT NOT NULL,
	text TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	created_at TEXT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS step_run_idx ON step(agent_run_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS item_owner_idx ON item(owner_id)`,
}

// OpenStore opens (creating if needed) the database at path.
func OpenStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps the connection-scoped pragmas in force and
	// serializes writers.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		`PRAGMA journal_mode = WAL`,
		`PRAGMA busy_timeout = 5000`,
		`PRAGMA foreign_keys = ON`,
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("initialize schema: %w", err)
		}
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Users

const userColumns = `id, email, hashed_password, full_name, is_active, is_superuser`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var u User
	var active, super int
	if err := row.Scan(&u.ID, &u.Email, &u.HashedPassword, &u.FullName, &active, &super); err != nil {
		return User{}, err
	}
	u.IsActive = active != 0
	u.IsSuperuser = super != 0
	return u, nil
}

// CreateUser inserts u, assigning an ID when empty. Emails are unique
// case-insensitively.
func (s *Store) CreateUser(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = hexid.UUID()
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user (`+userColumns+`, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.HashedPassword, u.FullName, boolToInt(u.IsActive), boolToInt(u.IsSuperuser), now(),
	)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Store) UserByID(ctx context.Context, id string) (User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM user WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("query user: %w", err)
	}
	return u, nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM user WHERE email = ?`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("query user: %w", err)
	}
	return u, nil
}

// ListUsers returns one page of users and the total count.
func (s *Store) ListUsers(ctx context.Context, skip, limit int) ([]User, int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM user`).Scan(&count); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM user ORDER BY created_at, email LIMIT ? OFFSET ?`, limit, skip)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, count, rows.Err()
}

// UpdateUser overwrites every mutable column of u.
func (s *Store) UpdateUser(ctx context.Context, u User) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE user SET email = ?, hashed_password = ?, full_name = ?, is_active = ?, is_superuser = ? WHERE id = ?`,
		strings.ToLower(strings.TrimSpace(u.Email)), u.HashedPassword, u.FullName,
		boolToInt(u.IsActive), boolToInt(u.IsSuperuser), u.ID,
	)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return expectOne(res)
}

// DeleteUser removes a user and, by cascade, their items.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM user WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return expectOne(res)
}

// CountSuperusers is used to keep at least one administrator around.
func (s *Store) CountSuperusers(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM user WHERE is_superuser = 1`).Scan(&n)
	return n, err
}

// Items

const itemColumns = `id, title, description, owner_id`

func scanItem(row interface{ Scan(...any) error }) (Item, error) {
	var it Item
	err := row.Scan(&it.ID, &it.Title, &it.Description, &it.OwnerID)
	return it, err
}

func (s *Store) CreateItem(ctx context.Context, it *Item) error {
	if it.ID == "" {
		it.ID = hexid.UUID()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO item (`+itemColumns+`, created_at) VALUES (?, ?, ?, ?, ?)`,
		it.ID, it.Title, it.Description, it.OwnerID, now(),
	)
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

func (s *Store) GetItem(ctx context.Context, id string) (Item, error) {
	it, err := scanItem(s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM item WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Item{}, ErrNotFound
	}
	if err != nil {
		return Item{}, fmt.Errorf("query item: %w", err)
	}
	return it, nil
}

// ListItems returns one page of items. An empty ownerID lists every item.
func (s *Store) ListItems(ctx context.Context, ownerID string, skip, limit int) ([]Item, int, error) {
	where, args := "", []any{}
	if ownerID != "" {
		where, args = ` WHERE owner_id = ?`, append(args, ownerID)
	}
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM item`+where, args...).Scan(&count); err != nil {
		return nil, 0, fmt.Errorf("count items: %w", err)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM item`+where+` ORDER BY created_at, id LIMIT ? OFFSET ?`,
		append(args, limit, skip)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()
	var out []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan item: %w", err)
		}
		out = append(out, it)
	}
	return out, count, rows.Err()
}

func (s *Store) UpdateItem(ctx context.Context, it Item) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE item SET title = ?, description = ? WHERE id = ?`, it.Title, it.Description, it.ID)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	return expectOne(res)
}

func (s *Store) DeleteItem(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM item WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return expectOne(res)
}

// Agent runs

const runColumns = `id, mail_sender, mail_subject, mail_body, status, status_message, draft_subject, draft_body`

func (s *Store) CreateRun(ctx context.Context, r *Run) error {
	if r.ID == "" {
		r.ID = hexid.UUID()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agent_run (`+runColumns+`, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Sender, r.Subject, r.Body, r.Status, r.StatusMessage, r.DraftSubject, r.DraftBody, now(),
	)
	if err != nil {
		return fmt.Errorf("insert agent run: %w", err)
	}
	return nil
}

func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	var r Run
	err := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM agent_run WHERE id = ?`, id).Scan(
		&r.ID, &r.Sender, &r.Subject, &r.Body, &r.Status, &r.StatusMessage, &r.DraftSubject, &r.DraftBody)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	if err != nil {
		return Run{}, fmt.Errorf("query agent run: %w", err)
	}
	return r, nil
}

// UpdateRun writes the status and draft columns of r.
func (s *Store) UpdateRun(ctx context.Context, r Run) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE agent_run SET status = ?, status_message = ?, draft_subject = ?, draft_body = ? WHERE id = ?`,
		r.Status, r.StatusMessage, r.DraftSubject, r.DraftBody, r.ID)
	if err != nil {
		return fmt.Errorf("update agent run: %w", err)
	}
	return expectOne(res)
}

// AddStep appends a step to its run.
func (s *Store) AddStep(ctx context.Context, st *Step) error {
	if st.ID == "" {
		st.ID = hexid.UUID()
	}
	if st.CreatedAt.IsZero() {
		st.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO step (id, agent_run_id, type, text, status, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		st.ID, st.RunID, st.Type, st.Text, st.Status, st.CreatedAt.UTC().Format(naiveLayout))
	if err != nil {
		return fmt.Errorf("insert step: %w", err)
	}
	return nil
}

// UpdateStep changes the status and text of a step.
func (s *Store) UpdateStep(ctx context.Context, id, status, text string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE step SET status = ?, text = ? WHERE id = ?`, status, text, id)
	if err != nil {
		return fmt.Errorf("update step: %w", err)
	}
	return expectOne(res)
}

// Steps returns the steps of a run in insertion order. CreatedAt is parsed
// back from the naive column as UTC.
func (s *Store) Steps(ctx context.Context, runID string) ([]Step, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, agent_run_id, type, text, status, created_at FROM step WHERE agent_run_id = ? ORDER BY created_at, rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()
	var out []Step
	for rows.Next() {
		var st Step
		var created string
		if err := rows.Scan(&st.ID, &st.RunID, &st.Type, &st.Text, &st.Status, &created); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		st.CreatedAt, _ = time.ParseInLocation(naiveLayout, created, time.UTC)
		out = append(out, st)
	}
	return out, rows.Err()
}

// FailUnfinishedRuns marks runs left pending or running by a previous
// process as failed. It returns how many were touched.
func (s *Store) FailUnfinishedRuns(ctx context.Context, message string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE agent_run SET status = 'error', status_message = ? WHERE status IN ('pending', 'running')`, message)
	if err != nil {
		return 0, fmt.Errorf("fail unfinished runs: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE step SET status = 'error' WHERE status IN ('pending', 'running')`); err != nil {
		return 0, fmt.Errorf("fail unfinished steps: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
