package demo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"secure-agent-cli/internal/model"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrUnknownUser is returned for ids that are not in the users table.
var ErrUnknownUser = errors.New("user not found")

// Store holds the demo dataset in a private in-memory SQLite database.
type Store struct {
	db *sql.DB
}

// OpenStore creates a fresh in-memory database and loads seed into it.
func OpenStore(ctx context.Context, seed Seed) (*Store, error) {
	// Each Store gets its own named shared-cache memory db so parallel tests
	// never see each other's rows.
	dsn := fmt.Sprintf("file:secagent-%s?mode=memory&cache=shared", uuid.NewString())
	// modernc.org/sqlite driver name is "sqlite".
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// The memory db lives as long as one connection stays open. A single
	// connection also serializes writers, which shared cache does not retry.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.load(ctx, seed); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			role TEXT NOT NULL,
			position INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS user_groups (
			user_id TEXT NOT NULL REFERENCES users(id),
			group_name TEXT NOT NULL,
			position INTEGER NOT NULL,
			PRIMARY KEY(user_id, group_name)
		);`,
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			folder TEXT NOT NULL,
			category TEXT NOT NULL,
			lang TEXT NOT NULL,
			body TEXT NOT NULL,
			position INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_documents_folder ON documents(folder);`,
		`CREATE TABLE IF NOT EXISTS folder_viewers (
			folder TEXT NOT NULL,
			subject TEXT NOT NULL,
			PRIMARY KEY(folder, subject)
		);`,
	}
	for _, st := range stmts {
		if _, err := s.db.ExecContext(ctx, st); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) load(ctx context.Context, seed Seed) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for i, u := range seed.Users {
		if _, err := tx.ExecContext(ctx, `INSERT INTO users(id, name, role, position) VALUES(?, ?, ?, ?)`, u.ID, u.Name, u.Role, i); err != nil {
			return fmt.Errorf("seed user %s: %w", u.ID, err)
		}
		for j, g := range u.Groups {
			if _, err := tx.ExecContext(ctx, `INSERT INTO user_groups(user_id, group_name, position) VALUES(?, ?, ?)`, u.ID, g, j); err != nil {
				return fmt.Errorf("seed group %s/%s: %w", u.ID, g, err)
			}
		}
	}
	for i, d := range seed.Documents {
		folder := d.FolderKey()
		if _, err := tx.ExecContext(ctx, `INSERT INTO documents(id, title, folder, category, lang, body, position) VALUES(?, ?, ?, ?, ?, ?, ?)`,
			d.ID, d.Title, folder, d.Category, d.Lang, d.Text, i); err != nil {
			return fmt.Errorf("seed document %s: %w", d.ID, err)
		}
	}
	for _, g := range seed.Grants {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO folder_viewers(folder, subject) VALUES(?, ?)`, strings.ToLower(g.Folder), g.Subject); err != nil {
			return fmt.Errorf("seed grant %s: %w", g.Folder, err)
		}
	}
	return tx.Commit()
}

func (s *Store) Users(ctx context.Context) ([]model.Identity, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, role FROM users ORDER BY position`)
	if err != nil {
		return nil, err
	}
	var out []model.Identity
	for rows.Next() {
		var id model.Identity
		if err := rows.Scan(&id.ID, &id.Name, &id.Role); err != nil {
			_ = rows.Close()
			return nil, err
		}
		out = append(out, id)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		groups, err := s.groups(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Groups = groups
	}
	return out, nil
}

// User returns one identity or ErrUnknownUser.
func (s *Store) User(ctx context.Context, id string) (model.Identity, error) {
	var u model.Identity
	err := s.db.QueryRowContext(ctx, `SELECT id, name, role FROM users WHERE id = ?`, id).Scan(&u.ID, &u.Name, &u.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Identity{}, ErrUnknownUser
	}
	if err != nil {
		return model.Identity{}, err
	}
	groups, err := s.groups(ctx, id)
	if err != nil {
		return model.Identity{}, err
	}
	u.Groups = groups
	return u, nil
}

func (s *Store) groups(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT group_name FROM user_groups WHERE user_id = ? ORDER BY position`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// StoredDocument is a catalog entry plus its full text.
type StoredDocument struct {
	model.Document
	Text     string
	position int
}

func (s *Store) Documents(ctx context.Context) ([]StoredDocument, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, folder, category, lang, body, position FROM documents ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StoredDocument
	for rows.Next() {
		var d StoredDocument
		if err := rows.Scan(&d.ID, &d.Title, &d.Folder, &d.Category, &d.Lang, &d.Text, &d.position); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Accessible lists the documents userID may view, in catalog order. A user
// views a folder if it is granted to them directly or to one of their groups.
func (s *Store) Accessible(ctx context.Context, userID string) ([]model.AccessEntry, error) {
	if _, err := s.User(ctx, userID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, d.folder, d.title
		FROM documents d
		WHERE d.folder IN (`+viewableFolders+`)
		ORDER BY d.position`, userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.AccessEntry{}
	for rows.Next() {
		var e model.AccessEntry
		if err := rows.Scan(&e.ID, &e.Folder, &e.Title); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// CanView checks a single document. Unknown users and documents are denied.
func (s *Store) CanView(ctx context.Context, userID, docID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM documents d
		WHERE d.id = ? AND d.folder IN (`+viewableFolders+`)`, docID, userID, userID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// viewableFolders binds the user id twice: direct grant, then group grant.
const viewableFolders = `
	SELECT v.folder FROM folder_viewers v
	WHERE v.subject = ?
	   OR v.subject IN (SELECT 'group:' || g.group_name FROM user_groups g WHERE g.user_id = ?)`
