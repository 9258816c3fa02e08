package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/lithammer/fuzzysearch/fuzzy"
	bolt "go.etcd.io/bbolt"

	"github.com/mmcdole/mediacenter/internal/domain"
)

// DBFileName is the database file created in the store directory.
const DBFileName = "library.db"

// DefaultCacheSize bounds the hot-read cache.
const DefaultCacheSize = 1024

// maxParentDepth stops parent resolution on corrupt (cyclic) data.
const maxParentDepth = 32

// Bucket names
var (
	bucketItems     = []byte("items")
	bucketProviders = []byte("providers")
	bucketPaths     = []byte("paths")
)

// ItemStore implements domain.ItemStore using BoltDB.
type ItemStore struct {
	db *bolt.DB

	// Hot-path reads, keyed by bucket:key
	cache *lru.Cache[string, []byte]
}

var _ domain.ItemStore = (*ItemStore)(nil)

// NewItemStore opens (creating if needed) the database under dir.
func NewItemStore(dir string) (*ItemStore, error) {
	return NewItemStoreSize(dir, DefaultCacheSize)
}

// NewItemStoreSize is NewItemStore with an explicit cache size.
func NewItemStoreSize(dir string, cacheSize int) (*ItemStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: store directory is empty", domain.ErrInvalidConfig)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	cache, err := lru.New[string, []byte](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create store cache: %w", err)
	}

	dbPath := filepath.Join(dir, DBFileName)
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketItems, bucketProviders, bucketPaths} {
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

	return &ItemStore{db: db, cache: cache}, nil
}

func (s *ItemStore) Close() error {
	s.cache.Purge()
	return s.db.Close()
}

// === Generic helpers ===

func cacheKey(bucket []byte, key string) string {
	return string(bucket) + ":" + key
}

func (s *ItemStore) get(bucket []byte, key string, dest any) (bool, error) {
	ck := cacheKey(bucket, key)

	// Check memory cache first
	if data, ok := s.cache.Get(ck); ok {
		return true, json.Unmarshal(data, dest)
	}

	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucket).Get([]byte(key)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})
	if err != nil || data == nil {
		return false, err
	}

	// Promote to memory cache
	s.cache.Add(ck, data)
	return true, json.Unmarshal(data, dest)
}

func (s *ItemStore) set(tx *bolt.Tx, bucket []byte, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := tx.Bucket(bucket).Put([]byte(key), data); err != nil {
		return err
	}
	s.cache.Add(cacheKey(bucket, key), data)
	return nil
}

// update runs fn in a write transaction. The cache is dropped when the
// transaction does not commit.
func (s *ItemStore) update(fn func(tx *bolt.Tx) error) error {
	if err := s.db.Update(fn); err != nil {
		s.cache.Purge()
		return err
	}
	return nil
}

func (s *ItemStore) delete(tx *bolt.Tx, bucket []byte, key string) error {
	s.cache.Remove(cacheKey(bucket, key))
	return tx.Bucket(bucket).Delete([]byte(key))
}

// === Items ===

// GetItem loads an item and reattaches its parent chain.
func (s *ItemStore) GetItem(ctx context.Context, id uuid.UUID) (*domain.Item, error) {
	item, err := s.loadItem(id)
	if err != nil {
		return nil, err
	}
	s.attachParents(item)
	return item, nil
}

func (s *ItemStore) loadItem(id uuid.UUID) (*domain.Item, error) {
	var item domain.Item
	ok, err := s.get(bucketItems, id.String(), &item)
	if err != nil {
		return nil, fmt.Errorf("failed to load item %s: %w", id, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrItemNotFound, id)
	}
	return &item, nil
}

func (s *ItemStore) attachParents(item *domain.Item) {
	child := item
	for depth := 0; depth < maxParentDepth && child.ParentID != uuid.Nil; depth++ {
		parent, err := s.loadItem(child.ParentID)
		if err != nil {
			return
		}
		child.Parent = parent
		child = parent
	}
}

// FindByPath returns the item stored for a filesystem path.
func (s *ItemStore) FindByPath(ctx context.Context, path string) (*domain.Item, error) {
	var id uuid.UUID
	ok, err := s.get(bucketPaths, normalizePath(path), &id)
	if err != nil {
		return nil, fmt.Errorf("failed to look up %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrItemNotFound, path)
	}
	return s.GetItem(ctx, id)
}

// ListItems returns all items whose title, name or path fuzzily matches
// filter, sorted by sort title. An empty filter lists everything.
func (s *ItemStore) ListItems(ctx context.Context, filter string) ([]*domain.Item, error) {
	byID := make(map[uuid.UUID]*domain.Item)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketItems).ForEach(func(k, v []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var item domain.Item
			if err := json.Unmarshal(v, &item); err != nil {
				return fmt.Errorf("failed to decode item %s: %w", k, err)
			}
			byID[item.ID] = &item
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	filter = strings.TrimSpace(filter)
	items := make([]*domain.Item, 0, len(byID))
	for _, item := range byID {
		if item.ParentID != uuid.Nil {
			item.Parent = byID[item.ParentID]
		}
		if filter == "" || matches(filter, item) {
			items = append(items, item)
		}
	}
	slices.SortFunc(items, func(a, b *domain.Item) int {
		if c := strings.Compare(sortKey(a), sortKey(b)); c != 0 {
			return c
		}
		return strings.Compare(a.Path, b.Path)
	})
	return items, nil
}

func matches(filter string, item *domain.Item) bool {
	return fuzzy.MatchFold(filter, item.DisplayTitle()) ||
		fuzzy.MatchFold(filter, item.Name) ||
		fuzzy.MatchFold(filter, item.Path)
}

func sortKey(item *domain.Item) string {
	if item.SortTitle != "" {
		return strings.ToLower(item.SortTitle)
	}
	return strings.ToLower(item.DisplayTitle())
}

// SaveItem persists the item and indexes its path.
func (s *ItemStore) SaveItem(ctx context.Context, item *domain.Item) error {
	if item == nil || item.ID == uuid.Nil {
		return errors.New("cannot save item without id")
	}
	key := item.ID.String()
	return s.update(func(tx *bolt.Tx) error {
		// Drop the index entry of a previous path
		if old := tx.Bucket(bucketItems).Get([]byte(key)); old != nil {
			var prev domain.Item
			if err := json.Unmarshal(old, &prev); err == nil && prev.Path != "" && normalizePath(prev.Path) != normalizePath(item.Path) {
				if err := s.delete(tx, bucketPaths, normalizePath(prev.Path)); err != nil {
					return err
				}
			}
		}
		if err := s.set(tx, bucketItems, key, item); err != nil {
			return err
		}
		if item.Path == "" {
			return nil
		}
		return s.set(tx, bucketPaths, normalizePath(item.Path), item.ID)
	})
}

// DeleteItem removes an item together with its provider state.
func (s *ItemStore) DeleteItem(ctx context.Context, id uuid.UUID) error {
	item, err := s.loadItem(id)
	if err != nil {
		return err
	}
	key := id.String()
	return s.update(func(tx *bolt.Tx) error {
		if err := s.delete(tx, bucketItems, key); err != nil {
			return err
		}
		if err := s.delete(tx, bucketProviders, key); err != nil {
			return err
		}
		if item.Path == "" {
			return nil
		}
		return s.delete(tx, bucketPaths, normalizePath(item.Path))
	})
}

// === Provider state ===

func (s *ItemStore) RetrieveProviders(ctx context.Context, id uuid.UUID) ([]domain.ProviderState, bool, error) {
	var states []domain.ProviderState
	ok, err := s.get(bucketProviders, id.String(), &states)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load provider state for %s: %w", id, err)
	}
	return states, ok, nil
}

func (s *ItemStore) SaveProviders(ctx context.Context, id uuid.UUID, states []domain.ProviderState) error {
	if states == nil {
		states = []domain.ProviderState{}
	}
	return s.update(func(tx *bolt.Tx) error {
		return s.set(tx, bucketProviders, id.String(), states)
	})
}

func normalizePath(path string) string {
	if path == "" {
		return ""
	}
	return filepath.Clean(path)
}
