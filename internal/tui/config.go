package tui

import (
	"github.com/Veraticus/tally/internal/engine"
	"github.com/Veraticus/tally/internal/queue"
	"github.com/Veraticus/tally/internal/service"
	"github.com/Veraticus/tally/internal/tui/themes"
)

// Config holds TUI configuration.
type Config struct {
	Theme   themes.Theme
	Storage service.Storage
	Engine  *engine.Engine
	Scope   queue.Scope
	Width   int
	Height  int
}

// Option is a functional option for configuring the TUI.
type Option func(*Config)

func defaultConfig() Config {
	return Config{
		Theme:  themes.Default,
		Width:  100,
		Height: 24,
	}
}

// WithStorage sets the storage the queue is read from.
func WithStorage(storage service.Storage) Option {
	return func(c *Config) {
		c.Storage = storage
	}
}

// WithEngine sets the engine used to rebuild and reconcile.
func WithEngine(e *engine.Engine) Option {
	return func(c *Config) {
		c.Engine = e
	}
}

// WithScope sets the initial queue scope.
func WithScope(scope queue.Scope) Option {
	return func(c *Config) {
		c.Scope = scope
	}
}

// WithTheme sets the visual theme.
func WithTheme(theme themes.Theme) Option {
	return func(c *Config) {
		c.Theme = theme
	}
}

// WithSize sets the initial terminal size.
func WithSize(width, height int) Option {
	return func(c *Config) {
		c.Width = width
		c.Height = height
	}
}
