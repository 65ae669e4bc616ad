// Package theme persists the light/dark display preference.
package theme

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tvdermeer/3dprint-website/internal/store"
	"github.com/tvdermeer/3dprint-website/pkg/logger"
)

type Theme string

const (
	Light Theme = "light"
	Dark  Theme = "dark"

	Default = Dark
)

var ErrUnknownTheme = errors.New("unknown theme")

func Parse(s string) (Theme, error) {
	switch Theme(s) {
	case Light, Dark:
		return Theme(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTheme, s)
	}
}

// Preference is the stored theme. The value is kept as the bare theme name.
type Preference struct {
	mu    sync.Mutex
	theme Theme
	store store.Store
	log   *logger.Logger
}

// Load reads the stored preference; an absent or unrecognised value gives Default.
func Load(ctx context.Context, s store.Store, log *logger.Logger) *Preference {
	p := &Preference{theme: Default, store: s, log: logger.OrNop(log)}

	raw, err := s.Get(ctx, store.KeyTheme)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		p.log.Warn("failed to read theme preference", "error", err)
	default:
		if t, err := Parse(string(raw)); err == nil {
			p.theme = t
		} else {
			p.log.Warn("ignoring stored theme", "error", err)
		}
	}
	return p
}

func (p *Preference) Get() Theme {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.theme
}

// Set changes the theme and persists it. A failed write keeps the new theme in memory.
func (p *Preference) Set(ctx context.Context, t Theme) error {
	if _, err := Parse(string(t)); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.theme = t
	return p.persistLocked(ctx)
}

// Toggle flips between light and dark and returns the new theme.
func (p *Preference) Toggle(ctx context.Context) (Theme, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.theme == Dark {
		p.theme = Light
	} else {
		p.theme = Dark
	}
	return p.theme, p.persistLocked(ctx)
}

func (p *Preference) persistLocked(ctx context.Context) error {
	if err := p.store.Set(ctx, store.KeyTheme, []byte(p.theme)); err != nil {
		p.log.Error("failed to persist theme preference", "error", err)
		return fmt.Errorf("persist theme: %w", err)
	}
	return nil
}
