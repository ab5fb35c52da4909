package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/Proton-105/mlbb-topup-bot/internal/domain"
)

type snapshot struct {
	Accounts  map[string]*domain.Account `json:"accounts"`
	Settings  domain.Settings            `json:"settings"`
	UpdatedAt time.Time                  `json:"updated_at"`
}

// FileBackend keeps every record in memory and rewrites a JSON snapshot on
// each commit. An empty path keeps the data in memory only.
type FileBackend struct {
	mu   sync.RWMutex
	path string
	snap *snapshot

	// id -> user id, rebuilt on load
	orderOwner map[string]string
	topUpOwner map[string]string
}

var _ Backend = (*FileBackend)(nil)

// OpenFile loads the snapshot at path, creating it when missing.
func OpenFile(path string) (*FileBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db := &FileBackend{path: path}
	if err := db.load(); err != nil {
		return nil, err
	}

	return db, nil
}

// NewInMemory returns a FileBackend with no file behind it.
func NewInMemory() *FileBackend {
	db := &FileBackend{snap: emptySnapshot()}
	db.reindexLocked()
	return db
}

func emptySnapshot() *snapshot {
	return &snapshot{
		Accounts:  map[string]*domain.Account{},
		Settings:  domain.DefaultSettings(),
		UpdatedAt: time.Now(),
	}
}

func (db *FileBackend) Name() string {
	if db.path == "" {
		return "memory"
	}
	return "file"
}

func (db *FileBackend) load() error {
	data, err := os.ReadFile(db.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read snapshot: %w", err)
	}

	if len(data) == 0 {
		db.snap = emptySnapshot()
		db.reindexLocked()
		return db.flushLocked(db.snap)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Accounts == nil {
		snap.Accounts = map[string]*domain.Account{}
	}
	snap.Settings.Normalize()

	db.snap = &snap
	db.reindexLocked()
	return nil
}

func (db *FileBackend) reindexLocked() {
	db.orderOwner = make(map[string]string)
	db.topUpOwner = make(map[string]string)
	for userID, acc := range db.snap.Accounts {
		db.indexAccountLocked(userID, acc)
	}
}

func (db *FileBackend) indexAccountLocked(userID string, acc *domain.Account) {
	for _, o := range acc.Orders {
		db.orderOwner[o.ID] = userID
	}
	for _, t := range acc.TopUps {
		db.topUpOwner[t.ID] = userID
	}
}

// flushLocked writes snap to a temp file and renames it over the snapshot.
func (db *FileBackend) flushLocked(snap *snapshot) error {
	if db.path == "" {
		return nil
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(db.path), filepath.Base(db.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close snapshot: %w", err)
	}

	if err := os.Rename(tmpName, db.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace snapshot: %w", err)
	}

	return nil
}

// withWrite runs fn against a shallow copy of the snapshot and installs it
// only after the copy was flushed.
func (db *FileBackend) withWrite(ctx context.Context, fn func(*snapshot) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	next := &snapshot{
		Accounts:  make(map[string]*domain.Account, len(db.snap.Accounts)),
		Settings:  db.snap.Settings,
		UpdatedAt: time.Now(),
	}
	for id, acc := range db.snap.Accounts {
		next.Accounts[id] = acc
	}

	if err := fn(next); err != nil {
		return err
	}

	if err := db.flushLocked(next); err != nil {
		return err
	}

	db.snap = next
	return nil
}

func (db *FileBackend) withRead(fn func(*snapshot) error) error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return fn(db.snap)
}

func (db *FileBackend) Load(_ context.Context, userID string) (*domain.Account, error) {
	var out *domain.Account
	_ = db.withRead(func(s *snapshot) error {
		out = s.Accounts[userID].Clone()
		return nil
	})

	if out == nil {
		return nil, ErrAccountNotFound
	}

	return out, nil
}

func (db *FileBackend) Create(ctx context.Context, account *domain.Account) error {
	err := db.withWrite(ctx, func(s *snapshot) error {
		if _, exists := s.Accounts[account.UserID]; exists {
			return ErrAccountExists
		}

		s.Accounts[account.UserID] = account.Clone()
		return nil
	})
	if err != nil {
		return err
	}

	db.mu.Lock()
	db.indexAccountLocked(account.UserID, account)
	db.mu.Unlock()

	return nil
}

func (db *FileBackend) Update(ctx context.Context, userID string, fn func(*domain.Account) error) (*domain.Account, error) {
	var out *domain.Account
	err := db.withWrite(ctx, func(s *snapshot) error {
		current, ok := s.Accounts[userID]
		if !ok {
			return ErrAccountNotFound
		}

		working := current.Clone()
		if err := fn(working); err != nil {
			return err
		}

		s.Accounts[userID] = working
		out = working.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	db.mu.Lock()
	db.indexAccountLocked(userID, out)
	db.mu.Unlock()

	return out, nil
}

func (db *FileBackend) List(_ context.Context) ([]*domain.Account, error) {
	var out []*domain.Account
	_ = db.withRead(func(s *snapshot) error {
		out = make([]*domain.Account, 0, len(s.Accounts))
		for _, acc := range s.Accounts {
			out = append(out, acc.Clone())
		}
		return nil
	})

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].UserID < out[j].UserID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	return out, nil
}

func (db *FileBackend) OwnerOfOrder(_ context.Context, orderID string) (string, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if owner, ok := db.orderOwner[orderID]; ok {
		return owner, nil
	}
	return "", ErrRecordNotFound
}

func (db *FileBackend) OwnerOfTopUp(_ context.Context, topUpID string) (string, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if owner, ok := db.topUpOwner[topUpID]; ok {
		return owner, nil
	}
	return "", ErrRecordNotFound
}

func (db *FileBackend) LoadSettings(_ context.Context) (domain.Settings, error) {
	var out domain.Settings
	_ = db.withRead(func(s *snapshot) error {
		out = s.Settings.Clone()
		return nil
	})
	return out, nil
}

func (db *FileBackend) UpdateSettings(ctx context.Context, fn func(*domain.Settings) error) (domain.Settings, error) {
	var out domain.Settings
	err := db.withWrite(ctx, func(s *snapshot) error {
		working := s.Settings.Clone()
		if err := fn(&working); err != nil {
			return err
		}
		s.Settings = working
		out = working.Clone()
		return nil
	})

	return out, err
}

func (db *FileBackend) Ping(context.Context) error {
	return nil
}

func (db *FileBackend) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.flushLocked(db.snap)
}
