package prefs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/wonny/vnvalue/pkg/logger"
	"github.com/wonny/vnvalue/pkg/redis"
)

// Theme is the UI colour scheme
type Theme string

const (
	Light Theme = "light"
	Dark  Theme = "dark"
)

const themeKey = "theme"

// ErrInvalidTheme is returned by ParseTheme
var ErrInvalidTheme = errors.New("theme must be light or dark")

// ParseTheme accepts light or dark
func ParseTheme(s string) (Theme, error) {
	switch Theme(strings.ToLower(strings.TrimSpace(s))) {
	case Light:
		return Light, nil
	case Dark:
		return Dark, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTheme, s)
}

// Toggle returns the other theme
func (t Theme) Toggle() Theme {
	if t == Dark {
		return Light
	}
	return Dark
}

// KV is a string key/value backend; *redis.Store satisfies it
type KV interface {
	Get(ctx context.Context, name string) (string, error)
	Set(ctx context.Context, name, value string) error
}

// Store persists the theme preference, the only state kept across restarts.
// When the backend is unavailable the value lives in memory for the process.
type Store struct {
	kv     KV
	logger *logger.Logger

	mu     sync.Mutex
	memory Theme
}

// New creates a preference store; kv may be nil for memory only
func New(kv KV, log *logger.Logger) *Store {
	return &Store{
		kv:     kv,
		logger: log,
		memory: Light,
	}
}

// Theme returns the stored theme, Light when nothing was saved
func (s *Store) Theme(ctx context.Context) Theme {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.kv == nil {
		return s.memory
	}

	raw, err := s.kv.Get(ctx, themeKey)
	switch {
	case errors.Is(err, redis.ErrKeyNotFound):
		return Light
	case err != nil:
		if !errors.Is(err, redis.ErrDisabled) {
			s.logger.WithError(err).Warn("Theme read failed, using in-memory value")
		}
		return s.memory
	}

	t, err := ParseTheme(raw)
	if err != nil {
		s.logger.WithField("value", raw).Warn("Ignoring stored theme")
		return Light
	}
	s.memory = t
	return t
}

// SetTheme stores t. Backend failures fall back to memory and are not fatal.
func (s *Store) SetTheme(ctx context.Context, t Theme) error {
	if _, err := ParseTheme(string(t)); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.memory = t
	if s.kv == nil {
		return nil
	}

	if err := s.kv.Set(ctx, themeKey, string(t)); err != nil && !errors.Is(err, redis.ErrDisabled) {
		s.logger.WithError(err).Warn("Theme write failed, kept in memory")
	}
	return nil
}

// ToggleTheme flips the theme and returns the new value
func (s *Store) ToggleTheme(ctx context.Context) (Theme, error) {
	next := s.Theme(ctx).Toggle()
	if err := s.SetTheme(ctx, next); err != nil {
		return "", err
	}
	return next, nil
}
