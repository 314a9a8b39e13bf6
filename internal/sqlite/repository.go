package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/blackmichael/syndicator/internal/domain"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

// Repository implements domain.PostStore, domain.PostUpdater and
// domain.CursorRepository using SQLite. Posts are stored as JSON property
// bags and matched with JSON1 predicates.
type Repository struct {
	db *sql.DB
}

// NewRepository opens (creating if needed) the SQLite database at path,
// applies the schema and returns a new Repository. The caller should call
// Close when the repository is no longer needed.
func NewRepository(path string) (*Repository, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Repository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// SavePost inserts a post or replaces the stored copy.
func (r *Repository) SavePost(ctx context.Context, post *domain.Post) error {
	props, err := json.Marshal(post.Properties)
	if err != nil {
		return fmt.Errorf("marshal properties: %w", err)
	}

	status := post.Status
	if status == "" {
		status = domain.StatusPublished
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO posts (url, published, status, properties)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (url) DO UPDATE SET
			published = excluded.published,
			status = excluded.status,
			properties = excluded.properties`,
		post.URL,
		toMillis(post.Published),
		string(status),
		string(props),
	)
	if err != nil {
		return fmt.Errorf("save post %s: %w", post.URL, err)
	}
	return nil
}

// FindOne returns the post with the given URL.
func (r *Repository) FindOne(ctx context.Context, url string) (*domain.Post, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT url, published, status, properties FROM posts WHERE url = ?`, url)

	post, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query post %s: %w", url, err)
	}
	return post, nil
}

// pendingQuery selects non-draft posts that still carry a syndicate-to
// property. Partially syndicated posts stay selectable until the property is
// removed.
const pendingQuery = `
	SELECT url, published, status, properties
	FROM posts
	WHERE json_type(properties, '$."syndicate-to"') IS NOT NULL
	  AND status != 'draft'
	ORDER BY published DESC, url DESC`

// FindPending returns all pending posts, most recently published first.
func (r *Repository) FindPending(ctx context.Context) ([]*domain.Post, error) {
	rows, err := r.db.QueryContext(ctx, pendingQuery)
	if err != nil {
		return nil, fmt.Errorf("query pending posts: %w", err)
	}
	defer rows.Close()

	var posts []*domain.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, post)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return posts, nil
}

// FindLatestPending returns the most recently published pending post.
func (r *Repository) FindLatestPending(ctx context.Context) (*domain.Post, error) {
	row := r.db.QueryRowContext(ctx, pendingQuery+` LIMIT 1`)

	post, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query latest pending post: %w", err)
	}
	return post, nil
}

// UpdatePost applies an update instruction to the stored post. It is used
// as the update endpoint when no Micropub endpoint is configured.
func (r *Repository) UpdatePost(ctx context.Context, update *domain.Update) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx, `SELECT properties FROM posts WHERE url = ?`, update.URL).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update %s: %w", update.URL, domain.ErrPostNotFound)
	}
	if err != nil {
		return fmt.Errorf("load post %s: %w", update.URL, err)
	}

	var props domain.Properties
	if err := json.Unmarshal([]byte(raw), &props); err != nil {
		return fmt.Errorf("unmarshal properties: %w", err)
	}
	if props == nil {
		props = domain.Properties{}
	}

	for key, values := range update.Replace {
		list := make([]any, len(values))
		for i, v := range values {
			list[i] = v
		}
		props[key] = list
	}
	for _, key := range update.Delete {
		delete(props, key)
	}

	encoded, err := json.Marshal(props)
	if err != nil {
		return fmt.Errorf("marshal properties: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE posts SET properties = ? WHERE url = ?`, string(encoded), update.URL,
	); err != nil {
		return fmt.Errorf("update post %s: %w", update.URL, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetCursor retrieves the saved cursor for an event stream.
func (r *Repository) GetCursor(ctx context.Context, stream string) (int64, error) {
	var cursor int64
	err := r.db.QueryRowContext(ctx,
		`SELECT cursor_value FROM cursors WHERE stream = ?`, stream,
	).Scan(&cursor)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return cursor, err
}

// UpdateCursor upserts the cursor for an event stream.
func (r *Repository) UpdateCursor(ctx context.Context, stream string, cursor int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cursors (stream, cursor_value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (stream) DO UPDATE SET cursor_value = excluded.cursor_value, updated_at = excluded.updated_at`,
		stream, cursor, time.Now().UTC().UnixMilli(),
	)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPost(s scanner) (*domain.Post, error) {
	var (
		p      domain.Post
		millis int64
		status string
		raw    string
	)
	if err := s.Scan(&p.URL, &millis, &status, &raw); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(raw), &p.Properties); err != nil {
		return nil, fmt.Errorf("unmarshal properties of %s: %w", p.URL, err)
	}
	if p.Properties == nil {
		p.Properties = domain.Properties{}
	}
	p.Status = domain.PostStatus(status)
	if millis != 0 {
		p.Published = time.UnixMilli(millis).UTC()
	}
	return &p, nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
