// Package history persists the search history, recent searches and saved
// favorites on top of a storage.KV.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/cekrek/internal/inquiry"
	"github.com/kalambet/cekrek/internal/provider"
	"github.com/kalambet/cekrek/internal/storage"
)

// Collection names. These are stable across releases.
const (
	KeyHistory   = "searchHistory"
	KeyRecents   = "recentSearches"
	KeyFavorites = "favorites"
)

const (
	MaxHistory = 10
	MaxRecents = 5
)

var (
	ErrEmptyLabel = errors.New("favorite label is empty")
	ErrNotFound   = errors.New("favorite not found")
)

// Entry is one completed inquiry.
type Entry struct {
	Timestamp    int64          `json:"timestamp"`
	AccountType  provider.Type  `json:"type"`
	ProviderCode string         `json:"provider"`
	RawNumber    string         `json:"number"`
	Result       inquiry.Result `json:"result"`
}

// Favorite is a saved inquiry target.
type Favorite struct {
	ID                 string        `json:"id"`
	Label              string        `json:"label"`
	AccountType        provider.Type `json:"type"`
	ProviderCode       string        `json:"provider"`
	RawNumber          string        `json:"number"`
	HolderNameSnapshot string        `json:"holder_name,omitempty"`
	CreatedAt          int64         `json:"created_at"`
}

// Store keeps the collections. Every read-modify-write goes through
// storage.KV.Update, so concurrent writers, including other processes on the
// same database, cannot lose each other's changes.
type Store struct {
	kv  storage.KV
	now func() time.Time
}

// New creates a Store over kv.
func New(kv storage.KV) *Store {
	return &Store{kv: kv, now: time.Now}
}

// LoadHistory returns history entries, most recent first.
func (s *Store) LoadHistory() ([]Entry, error) {
	return load[Entry](s.kv, KeyHistory)
}

// AppendHistory prepends e, keeping at most MaxHistory entries.
func (s *Store) AppendHistory(e Entry) error {
	if e.Timestamp == 0 {
		e.Timestamp = s.now().UnixMilli()
	}
	return update(s.kv, KeyHistory, func(list []Entry) ([]Entry, bool) {
		list = append([]Entry{e}, list...)
		if len(list) > MaxHistory {
			list = list[:MaxHistory]
		}
		return list, true
	})
}

// ClearHistory removes both history and recent searches in one change.
// Favorites are kept.
func (s *Store) ClearHistory() error {
	if err := s.kv.Delete(KeyHistory, KeyRecents); err != nil {
		return fmt.Errorf("clearing history: %w", err)
	}
	return nil
}

// LoadRecents returns recent search numbers, most recent first.
func (s *Store) LoadRecents() ([]string, error) {
	return load[string](s.kv, KeyRecents)
}

// AddRecent prepends number unless it is already present, keeping at most
// MaxRecents entries. An existing number keeps its position.
func (s *Store) AddRecent(number string) error {
	return update(s.kv, KeyRecents, func(list []string) ([]string, bool) {
		for _, n := range list {
			if n == number {
				return nil, false
			}
		}
		list = append([]string{number}, list...)
		if len(list) > MaxRecents {
			list = list[:MaxRecents]
		}
		return list, true
	})
}

// LoadFavorites returns favorites, newest first.
func (s *Store) LoadFavorites() ([]Favorite, error) {
	return load[Favorite](s.kv, KeyFavorites)
}

// AddFavorite assigns f an ID and saves it at the front of the list.
func (s *Store) AddFavorite(f Favorite) (Favorite, error) {
	f.Label = strings.TrimSpace(f.Label)
	if f.Label == "" {
		return Favorite{}, ErrEmptyLabel
	}

	id, err := uuid.NewV7()
	if err != nil {
		return Favorite{}, fmt.Errorf("generating favorite id: %w", err)
	}
	f.ID = id.String()
	if f.CreatedAt == 0 {
		f.CreatedAt = s.now().UnixMilli()
	}

	err = update(s.kv, KeyFavorites, func(list []Favorite) ([]Favorite, bool) {
		return append([]Favorite{f}, list...), true
	})
	if err != nil {
		return Favorite{}, err
	}
	return f, nil
}

// RemoveFavorite deletes the favorite with id. Unknown ids are a no-op.
func (s *Store) RemoveFavorite(id string) error {
	return update(s.kv, KeyFavorites, func(list []Favorite) ([]Favorite, bool) {
		kept := list[:0]
		for _, f := range list {
			if f.ID != id {
				kept = append(kept, f)
			}
		}
		return kept, len(kept) != len(list)
	})
}

// Favorite returns the favorite with id, or ErrNotFound.
func (s *Store) Favorite(id string) (Favorite, error) {
	favs, err := s.LoadFavorites()
	if err != nil {
		return Favorite{}, err
	}
	for _, f := range favs {
		if f.ID == id {
			return f, nil
		}
	}
	return Favorite{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// load decodes collection name. A missing or corrupt blob reads as empty.
func load[T any](kv storage.KV, name string) ([]T, error) {
	raw, _, err := kv.Get(name)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", name, err)
	}
	return decode[T](name, raw), nil
}

func decode[T any](name string, raw []byte) []T {
	if len(raw) == 0 {
		return nil
	}
	var list []T
	if err := json.Unmarshal(raw, &list); err != nil {
		slog.Warn("discarding unreadable collection", "collection", name, "error", err)
		return nil
	}
	return list
}

// update applies fn to collection name atomically. fn reports false to leave
// the stored blob untouched.
func update[T any](kv storage.KV, name string, fn func([]T) ([]T, bool)) error {
	err := kv.Update(name, func(old []byte) ([]byte, error) {
		list, changed := fn(decode[T](name, old))
		if !changed {
			return nil, nil
		}
		data, err := json.Marshal(list)
		if err != nil {
			return nil, fmt.Errorf("encoding %s: %w", name, err)
		}
		return data, nil
	})
	if err != nil {
		return fmt.Errorf("saving %s: %w", name, err)
	}
	return nil
}
