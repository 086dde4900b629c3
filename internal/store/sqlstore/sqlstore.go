// Package sqlstore implements the page store on SQLite (modernc.org/sqlite,
// no cgo). It is an alternative to the default bolt engine with the same
// transactional contract.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mmcdole/flickpick/internal/domain"
	"github.com/mmcdole/flickpick/internal/store"

	_ "modernc.org/sqlite"
)

// Config holds database configuration
type Config struct {
	Path          string
	BusyTimeoutMs int
	MaxReadConns  int
}

// DefaultConfig returns the configuration for a database file
func DefaultConfig(path string) Config {
	return Config{Path: path, BusyTimeoutMs: 5000, MaxReadConns: 4}
}

// Store implements domain.Store on SQLite with a pooled read connection and
// a single serialized write connection.
type Store struct {
	readDB   *sql.DB
	writeDB  *sql.DB
	notifier *store.Notifier
	now      func() time.Time
}

// Open opens the database, applies the schema, and returns the store
func Open(cfg Config) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}
	if cfg.BusyTimeoutMs <= 0 {
		cfg.BusyTimeoutMs = 5000
	}
	if cfg.MaxReadConns <= 0 {
		cfg.MaxReadConns = 4
	}

	readDB, err := sql.Open("sqlite", buildDSN(cfg, "deferred"))
	if err != nil {
		return nil, fmt.Errorf("failed to open read database: %w", err)
	}
	readDB.SetMaxOpenConns(cfg.MaxReadConns)

	writeDB, err := sql.Open("sqlite", buildDSN(cfg, "immediate"))
	if err != nil {
		readDB.Close()
		return nil, fmt.Errorf("failed to open write database: %w", err)
	}
	// Single connection forces serialization
	writeDB.SetMaxOpenConns(1)
	writeDB.SetMaxIdleConns(1)

	s := &Store{readDB: readDB, writeDB: writeDB, notifier: store.NewNotifier(), now: time.Now}
	if err := s.migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}
	return s, nil
}

// buildDSN constructs the SQLite data source name with pragmas
func buildDSN(cfg Config, txLock string) string {
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_txlock=%s",
		cfg.Path, cfg.BusyTimeoutMs, txLock)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS list_items (
		local_id     INTEGER PRIMARY KEY AUTOINCREMENT,
		item_id      INTEGER NOT NULL,
		title        TEXT    NOT NULL,
		poster_path  TEXT    NOT NULL DEFAULT '',
		rating       REAL    NOT NULL DEFAULT 0,
		release_date TEXT    NOT NULL DEFAULT '',
		summary      TEXT    NOT NULL DEFAULT '',
		category     TEXT    NOT NULL,
		page         INTEGER NOT NULL,
		inserted_at  INTEGER NOT NULL,
		UNIQUE (category, page, item_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_list_items_order ON list_items (category, page, local_id)`,
	`CREATE TABLE IF NOT EXISTS remote_keys (
		category  TEXT PRIMARY KEY,
		next_page INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS favourites (
		movie_id     INTEGER PRIMARY KEY,
		title        TEXT    NOT NULL,
		poster_path  TEXT    NOT NULL DEFAULT '',
		rating       REAL    NOT NULL DEFAULT 0,
		release_date TEXT    NOT NULL DEFAULT '',
		overview     TEXT    NOT NULL DEFAULT '',
		added_at     INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS genres (
		id   INTEGER PRIMARY KEY,
		name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS genre_cache (
		id        INTEGER PRIMARY KEY CHECK (id = 1),
		cached_at INTEGER NOT NULL
	)`,
}

func (s *Store) migrate() error {
	for _, stmt := range schema {
		if _, err := s.writeDB.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	return errors.Join(s.readDB.Close(), s.writeDB.Close())
}

// === Transactions ===

func (s *Store) View(ctx context.Context, fn func(tx domain.PageTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx, err := s.readDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin read transaction: %w", err)
	}
	defer tx.Rollback()

	return fn(&pageTx{ctx: ctx, tx: tx, now: s.now})
}

func (s *Store) Update(ctx context.Context, fn func(tx domain.PageTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx, err := s.writeDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin write transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	touched := make(map[string]struct{})
	if err := fn(&pageTx{ctx: ctx, tx: tx, now: s.now, touched: touched}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true

	s.notifier.Notify(touched)
	return nil
}

func (s *Store) Subscribe(category string) (<-chan struct{}, func()) {
	return s.notifier.Subscribe(category)
}

type pageTx struct {
	ctx     context.Context
	tx      *sql.Tx
	now     func() time.Time
	touched map[string]struct{}
}

func (t *pageTx) touch(category string) {
	if t.touched != nil {
		t.touched[category] = struct{}{}
	}
}

// === Cursor Store ===

func (t *pageTx) GetCursor(category string) (*domain.Cursor, error) {
	var next sql.NullInt64
	err := t.tx.QueryRowContext(t.ctx,
		`SELECT next_page FROM remote_keys WHERE category = ?`, category).Scan(&next)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cursor %q: %w", category, err)
	}

	cursor := &domain.Cursor{Category: category}
	if next.Valid {
		page := int(next.Int64)
		cursor.NextPage = &page
	}
	return cursor, nil
}

func (t *pageTx) PutCursor(cursor domain.Cursor) error {
	var next sql.NullInt64
	if cursor.NextPage != nil {
		next = sql.NullInt64{Int64: int64(*cursor.NextPage), Valid: true}
	}
	_, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO remote_keys (category, next_page) VALUES (?, ?)
		 ON CONFLICT (category) DO UPDATE SET next_page = excluded.next_page`,
		cursor.Category, next)
	if err != nil {
		return fmt.Errorf("put cursor %q: %w", cursor.Category, err)
	}
	t.touch(cursor.Category)
	return nil
}

func (t *pageTx) DeleteCursor(category string) error {
	if _, err := t.tx.ExecContext(t.ctx, `DELETE FROM remote_keys WHERE category = ?`, category); err != nil {
		return fmt.Errorf("delete cursor %q: %w", category, err)
	}
	t.touch(category)
	return nil
}

// === Page Store ===

const upsertItem = `
INSERT INTO list_items (item_id, title, poster_path, rating, release_date, summary, category, page, inserted_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (category, page, item_id) DO UPDATE SET
	title        = excluded.title,
	poster_path  = excluded.poster_path,
	rating       = excluded.rating,
	release_date = excluded.release_date,
	summary      = excluded.summary,
	inserted_at  = excluded.inserted_at`

func (t *pageTx) InsertItems(items []domain.ListItem) error {
	if len(items) == 0 {
		return nil
	}
	stmt, err := t.tx.PrepareContext(t.ctx, upsertItem)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	now := t.now()
	for _, item := range items {
		if item.Category == "" {
			return fmt.Errorf("insert item %d: %w", item.ItemID, store.ErrEmptyCategory)
		}
		insertedAt := item.InsertedAt
		if insertedAt.IsZero() {
			insertedAt = now
		}
		_, err := stmt.ExecContext(t.ctx,
			item.ItemID, item.Title, item.PosterPath, item.Rating, item.ReleaseDate,
			item.Summary, item.Category, item.Page, insertedAt.UnixNano())
		if err != nil {
			return fmt.Errorf("insert item %d: %w", item.ItemID, err)
		}
		t.touch(item.Category)
	}
	return nil
}

func (t *pageTx) DeleteItemsByCategory(category string) error {
	if _, err := t.tx.ExecContext(t.ctx, `DELETE FROM list_items WHERE category = ?`, category); err != nil {
		return fmt.Errorf("delete items %q: %w", category, err)
	}
	t.touch(category)
	return nil
}

func (t *pageTx) ItemsByCategory(category string) ([]domain.ListItem, error) {
	rows, err := t.tx.QueryContext(t.ctx, `
		SELECT local_id, item_id, title, poster_path, rating, release_date, summary, category, page, inserted_at
		FROM list_items
		WHERE category = ?
		ORDER BY page ASC, local_id ASC`, category)
	if err != nil {
		return nil, fmt.Errorf("query items %q: %w", category, err)
	}
	defer rows.Close()

	items := []domain.ListItem{}
	for rows.Next() {
		var (
			item       domain.ListItem
			insertedAt int64
		)
		if err := rows.Scan(&item.LocalID, &item.ItemID, &item.Title, &item.PosterPath, &item.Rating,
			&item.ReleaseDate, &item.Summary, &item.Category, &item.Page, &insertedAt); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		item.InsertedAt = time.Unix(0, insertedAt)
		items = append(items, item)
	}
	return items, rows.Err()
}

// === Favourites ===

func (s *Store) Favourites(ctx context.Context) ([]domain.Favourite, error) {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT movie_id, title, poster_path, rating, release_date, overview, added_at
		FROM favourites
		ORDER BY added_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("read favourites: %w", err)
	}
	defer rows.Close()

	favs := []domain.Favourite{}
	for rows.Next() {
		var (
			fav     domain.Favourite
			addedAt int64
		)
		if err := rows.Scan(&fav.MovieID, &fav.Title, &fav.PosterPath, &fav.Rating,
			&fav.ReleaseDate, &fav.Overview, &addedAt); err != nil {
			return nil, fmt.Errorf("scan favourite: %w", err)
		}
		fav.AddedAt = time.Unix(0, addedAt)
		favs = append(favs, fav)
	}
	return favs, rows.Err()
}

func (s *Store) PutFavourite(ctx context.Context, fav domain.Favourite) error {
	if fav.AddedAt.IsZero() {
		fav.AddedAt = s.now()
	}
	_, err := s.writeDB.ExecContext(ctx, `
		INSERT OR REPLACE INTO favourites (movie_id, title, poster_path, rating, release_date, overview, added_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		fav.MovieID, fav.Title, fav.PosterPath, fav.Rating, fav.ReleaseDate, fav.Overview, fav.AddedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("put favourite %d: %w", fav.MovieID, err)
	}
	return nil
}

func (s *Store) DeleteFavourite(ctx context.Context, movieID int) error {
	if _, err := s.writeDB.ExecContext(ctx, `DELETE FROM favourites WHERE movie_id = ?`, movieID); err != nil {
		return fmt.Errorf("delete favourite %d: %w", movieID, err)
	}
	return nil
}

func (s *Store) IsFavourite(ctx context.Context, movieID int) (bool, error) {
	var exists bool
	err := s.readDB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM favourites WHERE movie_id = ?)`, movieID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check favourite %d: %w", movieID, err)
	}
	return exists, nil
}

// === Genres ===

func (s *Store) Genres(ctx context.Context) ([]domain.Genre, bool, error) {
	var cachedAt int64
	err := s.readDB.QueryRowContext(ctx, `SELECT cached_at FROM genre_cache WHERE id = 1`).Scan(&cachedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read genre cache: %w", err)
	}

	rows, err := s.readDB.QueryContext(ctx, `SELECT id, name FROM genres ORDER BY name ASC`)
	if err != nil {
		return nil, false, fmt.Errorf("read genres: %w", err)
	}
	defer rows.Close()

	genres := []domain.Genre{}
	for rows.Next() {
		var g domain.Genre
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, false, fmt.Errorf("scan genre: %w", err)
		}
		genres = append(genres, g)
	}
	return genres, true, rows.Err()
}

func (s *Store) ReplaceGenres(ctx context.Context, genres []domain.Genre) error {
	tx, err := s.writeDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin write transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM genres`); err != nil {
		return fmt.Errorf("clear genres: %w", err)
	}
	for _, g := range genres {
		if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO genres (id, name) VALUES (?, ?)`, g.ID, g.Name); err != nil {
			return fmt.Errorf("insert genre %d: %w", g.ID, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO genre_cache (id, cached_at) VALUES (1, ?)`, s.now().UnixNano()); err != nil {
		return fmt.Errorf("mark genre cache: %w", err)
	}
	return tx.Commit()
}
