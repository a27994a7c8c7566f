// Package persist saves boards, as automerge documents, in sqlite.
package persist

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"github.com/automerge/automerge-go"
	_ "github.com/mattn/go-sqlite3"

	"github.com/astromechza/collab-canvas/pkg/store"
)

var ErrNotFound = errors.New("board not found")

type Boards struct {
	db  *sql.DB
	log *slog.Logger
}

// Open opens (creating if needed) the sqlite database at path.
func Open(path string, log *slog.Logger) (*Boards, error) {
	if log == nil {
		log = slog.Default()
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	b := &Boards{db: db, log: log}
	if err := b.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

func (b *Boards) init() error {
	if _, err := b.db.Exec(
		`CREATE TABLE IF NOT EXISTS boards (
		id text not null primary key,
		content text
		)`,
	); err != nil {
		return fmt.Errorf("failed to create boards table: %w", err)
	}
	b.log.Info("ensured boards table exists")
	return nil
}

func (b *Boards) Close() error {
	return b.db.Close()
}

// Ensure creates an empty board under id unless one exists. The seed
// already holds the shapes map, so every client starts from the same one.
func (b *Boards) Ensure(ctx context.Context, id string) error {
	doc, err := store.NewBoard()
	if err != nil {
		return fmt.Errorf("failed to seed board %s: %w", id, err)
	}
	if _, err := b.db.ExecContext(
		ctx, `INSERT OR IGNORE INTO boards (id, content) VALUES (?, ?)`,
		id, base64.StdEncoding.EncodeToString(doc.Save()),
	); err != nil {
		return fmt.Errorf("failed to ensure board %s: %w", id, err)
	}
	return nil
}

func (b *Boards) Load(ctx context.Context, id string) (*automerge.Doc, error) {
	var raw string
	err := b.db.QueryRowContext(ctx, `SELECT content FROM boards WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("failed to query board %s: %w", id, err)
	}
	return decode(id, raw)
}

// LoadAll returns every saved board keyed by id.
func (b *Boards) LoadAll(ctx context.Context) (map[string]*automerge.Doc, error) {
	res, err := b.db.QueryContext(ctx, `SELECT id, content FROM boards`)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer func(res *sql.Rows) {
		if err := res.Close(); err != nil {
			b.log.Error("failed to close rows", "err", err)
		}
	}(res)
	out := make(map[string]*automerge.Doc)
	for res.Next() {
		var id, raw string
		if err := res.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan: %w", err)
		}
		doc, err := decode(id, raw)
		if err != nil {
			return nil, err
		}
		out[id] = doc
	}
	if err := res.Err(); err != nil {
		return nil, fmt.Errorf("failed to read boards: %w", err)
	}
	return out, nil
}

// Save stores a saved document under id. It reports whether the stored
// content changed.
func (b *Boards) Save(ctx context.Context, id string, saved []byte) (bool, error) {
	content := base64.StdEncoding.EncodeToString(saved)
	res, err := b.db.ExecContext(
		ctx, `INSERT INTO boards (id, content) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET content = excluded.content WHERE content != excluded.content`,
		id, content,
	)
	if err != nil {
		return false, fmt.Errorf("failed to save board %s: %w", id, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (b *Boards) Delete(ctx context.Context, id string) error {
	if _, err := b.db.ExecContext(ctx, `DELETE FROM boards WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete board %s: %w", id, err)
	}
	return nil
}

func decode(id, raw string) (*automerge.Doc, error) {
	buf, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode board %s: %w", id, err)
	}
	doc, err := automerge.Load(buf)
	if err != nil {
		return nil, fmt.Errorf("failed to load board %s: %w", id, err)
	}
	return doc, nil
}
