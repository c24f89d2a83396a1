package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps every document as one row of the documents table.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time keeps read-modify-write patches serialized.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return transient("ping", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, docPath string) (json.RawMessage, error) {
	if _, field, err := splitPath(docPath); err != nil {
		return nil, err
	} else if len(field) > 0 {
		return nil, ErrInvalidPath
	}
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM documents WHERE path = ?`, docPath).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(docPath)
	}
	if err != nil {
		return nil, transient("get "+docPath, err)
	}
	return json.RawMessage(body), nil
}

func (s *SQLiteStore) List(ctx context.Context, collectionPath string) (map[string]json.RawMessage, error) {
	if err := validCollection(collectionPath); err != nil {
		return nil, err
	}
	collectionPath = strings.Trim(collectionPath, "/")
	rows, err := s.db.QueryContext(ctx, `SELECT path, body FROM documents WHERE collection = ?`, collectionPath)
	if err != nil {
		return nil, transient("list "+collectionPath, err)
	}
	defer rows.Close()

	out := make(map[string]json.RawMessage)
	for rows.Next() {
		var path, body string
		if err := rows.Scan(&path, &body); err != nil {
			return nil, transient("scan "+collectionPath, err)
		}
		out[strings.TrimPrefix(path, collectionPath+"/")] = json.RawMessage(body)
	}
	if err := rows.Err(); err != nil {
		return nil, transient("list "+collectionPath, err)
	}
	return out, nil
}

func (s *SQLiteStore) Put(ctx context.Context, docPath string, value any) error {
	if _, field, err := splitPath(docPath); err != nil {
		return err
	} else if len(field) > 0 {
		return ErrInvalidPath
	}
	return s.Update(ctx, Patch{docPath: value})
}

// Update applies the patch inside a single SQL transaction.
func (s *SQLiteStore) Update(ctx context.Context, p Patch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return transient("begin", err)
	}
	defer tx.Rollback()

	docs, err := p.resolve(func(docPath string) (json.RawMessage, bool, error) {
		var body string
		err := tx.QueryRowContext(ctx, `SELECT body FROM documents WHERE path = ?`, docPath).Scan(&body)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, transient("read "+docPath, err)
		}
		return json.RawMessage(body), true, nil
	})
	if err != nil {
		return err
	}

	for docPath, body := range docs {
		if body == nil {
			if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE path = ?`, docPath); err != nil {
				return transient("delete "+docPath, err)
			}
			continue
		}
		collection, uid := collectionOf(docPath)
		_, err := tx.ExecContext(ctx, `
			INSERT INTO documents (path, collection, user_id, body, updated_at)
			VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(path) DO UPDATE SET body = excluded.body, updated_at = CURRENT_TIMESTAMP`,
			docPath, collection, uid, string(body))
		if err != nil {
			return transient("write "+docPath, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return transient("commit", err)
	}
	return nil
}

func (s *SQLiteStore) Remove(ctx context.Context, path string) error {
	return s.Update(ctx, Patch{path: nil})
}

func (s *SQLiteStore) UserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM documents ORDER BY user_id`)
	if err != nil {
		return nil, transient("list users", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, transient("scan user", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, transient("list users", err)
	}
	return ids, nil
}
