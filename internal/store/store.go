package store

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/flickpick/internal/domain"
	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	bucketItems      = []byte("items") // Nested bucket per category
	bucketCursors    = []byte("cursors")
	bucketFavourites = []byte("favourites")
	bucketGenres     = []byte("genres")

	// Per-category sub-buckets
	bucketRows  = []byte("rows")  // page|localID -> ListItem JSON
	bucketSlots = []byte("slots") // page|itemID -> row key
)

var genresKey = []byte("list")

// ErrEmptyCategory is returned when inserting an item without a category
var ErrEmptyCategory = errors.New("list item has no category")

// PageStore implements domain.Store using BoltDB.
type PageStore struct {
	db       *bolt.DB
	notifier *Notifier
	now      func() time.Time
}

// Open opens (or creates) the cache database for a catalogue base URL.
// Each base URL gets its own directory so caches never mix.
func Open(baseCacheDir, serverURL string) (*PageStore, error) {
	dir := baseCacheDir
	if serverURL != "" {
		dir = filepath.Join(baseCacheDir, hashServerURL(serverURL))
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return OpenFile(filepath.Join(dir, "flickpick.db"))
}

// OpenFile opens the cache database at an explicit path
func OpenFile(dbPath string) (*PageStore, error) {
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketItems, bucketCursors, bucketFavourites, bucketGenres} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &PageStore{db: db, notifier: NewNotifier(), now: time.Now}, nil
}

func hashServerURL(serverURL string) string {
	normalized := strings.TrimRight(strings.ToLower(serverURL), "/")
	hash := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(hash[:6])
}

func (s *PageStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// === Transactions ===

func (s *PageStore) View(ctx context.Context, fn func(tx domain.PageTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(btx *bolt.Tx) error {
		return fn(&pageTx{tx: btx, now: s.now})
	})
}

// Update runs fn in a bolt write transaction. bolt rolls back on error and
// on panic; a cancelled ctx is turned into an error before commit.
func (s *PageStore) Update(ctx context.Context, fn func(tx domain.PageTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	touched := make(map[string]struct{})
	err := s.db.Update(func(btx *bolt.Tx) error {
		if err := fn(&pageTx{tx: btx, now: s.now, touched: touched}); err != nil {
			return err
		}
		return ctx.Err()
	})
	if err != nil {
		return err
	}

	s.notifier.Notify(touched)
	return nil
}

func (s *PageStore) Subscribe(category string) (<-chan struct{}, func()) {
	return s.notifier.Subscribe(category)
}

// pageTx adapts a bolt transaction to domain.PageTx
type pageTx struct {
	tx      *bolt.Tx
	now     func() time.Time
	touched map[string]struct{} // nil for read-only transactions
}

func (t *pageTx) touch(category string) {
	if t.touched != nil {
		t.touched[category] = struct{}{}
	}
}

// === Cursor Store ===

func (t *pageTx) GetCursor(category string) (*domain.Cursor, error) {
	v := t.tx.Bucket(bucketCursors).Get([]byte(category))
	if v == nil {
		return nil, nil
	}
	var cursor domain.Cursor
	if err := json.Unmarshal(v, &cursor); err != nil {
		return nil, fmt.Errorf("decode cursor %q: %w", category, err)
	}
	return &cursor, nil
}

func (t *pageTx) PutCursor(cursor domain.Cursor) error {
	data, err := json.Marshal(cursor)
	if err != nil {
		return err
	}
	if err := t.tx.Bucket(bucketCursors).Put([]byte(cursor.Category), data); err != nil {
		return fmt.Errorf("put cursor %q: %w", cursor.Category, err)
	}
	t.touch(cursor.Category)
	return nil
}

func (t *pageTx) DeleteCursor(category string) error {
	if err := t.tx.Bucket(bucketCursors).Delete([]byte(category)); err != nil {
		return fmt.Errorf("delete cursor %q: %w", category, err)
	}
	t.touch(category)
	return nil
}

// === Page Store ===

func (t *pageTx) InsertItems(items []domain.ListItem) error {
	root := t.tx.Bucket(bucketItems)
	now := t.now()

	type categoryBuckets struct{ rows, slots *bolt.Bucket }
	opened := make(map[string]categoryBuckets)

	for _, item := range items {
		if item.Category == "" {
			return fmt.Errorf("insert item %d: %w", item.ItemID, ErrEmptyCategory)
		}

		cb, ok := opened[item.Category]
		if !ok {
			cat, err := root.CreateBucketIfNotExists([]byte(item.Category))
			if err != nil {
				return fmt.Errorf("create category bucket %q: %w", item.Category, err)
			}
			if cb.rows, err = cat.CreateBucketIfNotExists(bucketRows); err != nil {
				return err
			}
			if cb.slots, err = cat.CreateBucketIfNotExists(bucketSlots); err != nil {
				return err
			}
			opened[item.Category] = cb
		}

		// Same item in the same page overwrites the existing row in place
		slot := slotKey(item.Page, item.ItemID)
		var key []byte
		if existing := cb.slots.Get(slot); existing != nil {
			key = append([]byte(nil), existing...)
			item.LocalID = binary.BigEndian.Uint64(key[8:])
		} else {
			seq, err := root.NextSequence()
			if err != nil {
				return fmt.Errorf("assign local id: %w", err)
			}
			item.LocalID = seq
			key = rowKey(item.Page, seq)
			if err := cb.slots.Put(slot, key); err != nil {
				return err
			}
		}

		if item.InsertedAt.IsZero() {
			item.InsertedAt = now
		}
		data, err := json.Marshal(item)
		if err != nil {
			return err
		}
		if err := cb.rows.Put(key, data); err != nil {
			return fmt.Errorf("put item %d: %w", item.ItemID, err)
		}
		t.touch(item.Category)
	}
	return nil
}

func (t *pageTx) DeleteItemsByCategory(category string) error {
	err := t.tx.Bucket(bucketItems).DeleteBucket([]byte(category))
	if err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
		return fmt.Errorf("delete items %q: %w", category, err)
	}
	t.touch(category)
	return nil
}

func (t *pageTx) ItemsByCategory(category string) ([]domain.ListItem, error) {
	items := []domain.ListItem{}

	cat := t.tx.Bucket(bucketItems).Bucket([]byte(category))
	if cat == nil {
		return items, nil
	}
	rows := cat.Bucket(bucketRows)
	if rows == nil {
		return items, nil
	}

	// Keys are page|localID big-endian, so bolt's byte order is the list order
	err := rows.ForEach(func(k, v []byte) error {
		var item domain.ListItem
		if err := json.Unmarshal(v, &item); err != nil {
			return fmt.Errorf("decode item %x: %w", k, err)
		}
		items = append(items, item)
		return nil
	})
	return items, err
}

func rowKey(page int, localID uint64) []byte {
	key := make([]byte, 16)
	binary.BigEndian.PutUint64(key[:8], uint64(page))
	binary.BigEndian.PutUint64(key[8:], localID)
	return key
}

func slotKey(page, itemID int) []byte {
	key := make([]byte, 16)
	binary.BigEndian.PutUint64(key[:8], uint64(page))
	binary.BigEndian.PutUint64(key[8:], uint64(itemID))
	return key
}

// === Favourites ===

func (s *PageStore) Favourites(ctx context.Context) ([]domain.Favourite, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	favs := []domain.Favourite{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketFavourites).ForEach(func(_, v []byte) error {
			var fav domain.Favourite
			if err := json.Unmarshal(v, &fav); err != nil {
				return err
			}
			favs = append(favs, fav)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("read favourites: %w", err)
	}
	sort.SliceStable(favs, func(i, j int) bool {
		return favs[i].AddedAt.After(favs[j].AddedAt)
	})
	return favs, nil
}

func (s *PageStore) PutFavourite(ctx context.Context, fav domain.Favourite) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if fav.AddedAt.IsZero() {
		fav.AddedAt = s.now()
	}
	data, err := json.Marshal(fav)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketFavourites).Put(movieKey(fav.MovieID), data)
	})
}

func (s *PageStore) DeleteFavourite(ctx context.Context, movieID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketFavourites).Delete(movieKey(movieID))
	})
}

func (s *PageStore) IsFavourite(ctx context.Context, movieID int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(bucketFavourites).Get(movieKey(movieID)) != nil
		return nil
	})
	return found, err
}

func movieKey(movieID int) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(movieID))
	return key
}

// === Genres ===

func (s *PageStore) Genres(ctx context.Context) ([]domain.Genre, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketGenres).Get(genresKey); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("read genres: %w", err)
	}
	if data == nil {
		return nil, false, nil
	}

	var genres []domain.Genre
	if err := json.Unmarshal(data, &genres); err != nil {
		return nil, false, fmt.Errorf("decode genres: %w", err)
	}
	return genres, true, nil
}

func (s *PageStore) ReplaceGenres(ctx context.Context, genres []domain.Genre) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sorted := make([]domain.Genre, len(genres))
	copy(sorted, genres)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	data, err := json.Marshal(sorted)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketGenres).Put(genresKey, data)
	})
}
