// Package preference resolves the theme of a client. Storage is optional:
// any storage failure is logged and the configured default theme is used.
package preference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"hpcdash/internal/pkg/model"
)

// ErrInvalidTheme is returned for themes other than light and dark.
var ErrInvalidTheme = errors.New("invalid theme")

// Store persists one theme per client id. GetTheme returns model.ErrNotFound
// for clients without a saved theme.
type Store interface {
	GetTheme(ctx context.Context, clientID string) (string, error)
	SetTheme(ctx context.Context, clientID, theme string) error
}

// MemoryStore keeps themes in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	themes map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{themes: map[string]string{}}
}

func (s *MemoryStore) GetTheme(_ context.Context, clientID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.themes[clientID]
	if !ok {
		return "", model.ErrNotFound
	}
	return t, nil
}

func (s *MemoryStore) SetTheme(_ context.Context, clientID, theme string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.themes[clientID] = theme
	return nil
}

// Themes resolves and saves client themes on top of a Store.
type Themes struct {
	store  Store
	def    string
	logger *slog.Logger
}

// NewThemes returns a resolver falling back to def. A nil store keeps
// nothing.
func NewThemes(store Store, def string, logger *slog.Logger) *Themes {
	if !model.ValidTheme(def) {
		def = model.ThemeDark
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Themes{store: store, def: def, logger: logger}
}

// Default returns the theme used for clients without a preference.
func (t *Themes) Default() string { return t.def }

// Resolve returns the saved theme of clientID or the default.
func (t *Themes) Resolve(ctx context.Context, clientID string) string {
	if t.store == nil || clientID == "" {
		return t.def
	}
	theme, err := t.store.GetTheme(ctx, clientID)
	switch {
	case errors.Is(err, model.ErrNotFound):
		return t.def
	case err != nil:
		t.logger.Warn("failed to read theme preference", "client", clientID, "err", err)
		return t.def
	case !model.ValidTheme(theme):
		return t.def
	}
	return theme
}

// Save stores theme for clientID. It fails only on invalid input; a storage
// failure is logged and reported through persisted.
func (t *Themes) Save(ctx context.Context, clientID, theme string) (persisted bool, err error) {
	if !model.ValidTheme(theme) {
		return false, fmt.Errorf("%w: %q", ErrInvalidTheme, theme)
	}
	if t.store == nil || clientID == "" {
		return false, nil
	}
	if err := t.store.SetTheme(ctx, clientID, theme); err != nil {
		t.logger.Warn("failed to save theme preference", "client", clientID, "err", err)
		return false, nil
	}
	return true, nil
}
