package preference

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hpcdash/internal/pkg/model"
)

type brokenStore struct{}

func (brokenStore) GetTheme(context.Context, string) (string, error) {
	return "", errors.New("storage disabled")
}

func (brokenStore) SetTheme(context.Context, string, string) error {
	return errors.New("storage disabled")
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestThemes_RoundTrip(t *testing.T) {
	ctx := context.Background()
	th := NewThemes(NewMemoryStore(), model.ThemeLight, quiet())

	assert.Equal(t, model.ThemeLight, th.Resolve(ctx, "c1"), "default without preference")

	persisted, err := th.Save(ctx, "c1", model.ThemeDark)
	require.NoError(t, err)
	assert.True(t, persisted)
	assert.Equal(t, model.ThemeDark, th.Resolve(ctx, "c1"))
	assert.Equal(t, model.ThemeLight, th.Resolve(ctx, "c2"))
}

func TestThemes_RejectsInvalidTheme(t *testing.T) {
	th := NewThemes(NewMemoryStore(), model.ThemeDark, quiet())
	_, err := th.Save(context.Background(), "c1", "neon")
	assert.ErrorIs(t, err, ErrInvalidTheme)
}

func TestThemes_StorageFailureDegrades(t *testing.T) {
	ctx := context.Background()
	th := NewThemes(brokenStore{}, model.ThemeDark, quiet())

	assert.Equal(t, model.ThemeDark, th.Resolve(ctx, "c1"))
	persisted, err := th.Save(ctx, "c1", model.ThemeLight)
	assert.NoError(t, err)
	assert.False(t, persisted)
}

func TestThemes_InvalidDefault(t *testing.T) {
	th := NewThemes(nil, "sepia", quiet())
	assert.Equal(t, model.ThemeDark, th.Default())
	assert.Equal(t, model.ThemeDark, th.Resolve(context.Background(), "c1"))
}
