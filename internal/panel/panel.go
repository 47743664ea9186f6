// Package panel implements the block settings panel: option toggles, the
// theme picker, and the document import/reset commands. Commands act on the
// widget instance the controller publishes, or do nothing when there is none.
package panel

import (
	"context"
	"errors"
	"fmt"

	"github.com/livetemplate/tinkersheet"
	"github.com/livetemplate/tinkersheet/internal/widget"
)

// ErrDisabled is returned when a control is toggled while disabled.
var ErrDisabled = errors.New("panel: control is disabled")

// ErrInvalid is returned for values the panel does not offer.
var ErrInvalid = errors.New("panel: invalid value")

// Writer persists attribute patches for one block.
type Writer interface {
	Write(ctx context.Context, p tinkersheet.Patch) error
}

// Option configures a Panel.
type Option func(*Panel)

// WithForceSave registers the flush run before import and reset, so the
// document being replaced is on record first.
func WithForceSave(fn func()) Option {
	return func(p *Panel) { p.forceSave = fn }
}

// Panel is the settings panel of one block. Like the controller it is
// driven from a single goroutine.
type Panel struct {
	store     Writer
	current   func() tinkersheet.Attributes
	forceSave func()
	instance  widget.Instance
}

// New creates a panel writing to store. current returns the block's
// attributes as last seen by the host.
func New(store Writer, current func() tinkersheet.Attributes, opts ...Option) *Panel {
	p := &Panel{
		store:     store,
		current:   current,
		forceSave: func() {},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SetInstance receives the live instance, or nil.
func (p *Panel) SetInstance(inst widget.Instance) {
	p.instance = inst
}

// Instance returns the instance the panel currently drives.
func (p *Panel) Instance() widget.Instance {
	return p.instance
}

// ToggleOption inverts a boolean option.
func (p *Panel) ToggleOption(ctx context.Context, key string) error {
	key = tinkersheet.NormalizeKey(key)
	if !tinkersheet.IsFlagOption(key) {
		return fmt.Errorf("option %q cannot be toggled: %w", key, ErrInvalid)
	}
	opts := p.current().Options
	if key == tinkersheet.OptConstrainWidth && !opts.Bool(tinkersheet.OptResizable) {
		return fmt.Errorf("%s: %w", key, ErrDisabled)
	}
	return p.store.Write(ctx, tinkersheet.Patch{Options: opts.Toggle(key)})
}

// SetOption sets one option explicitly.
func (p *Panel) SetOption(ctx context.Context, key string, value any) error {
	key = tinkersheet.NormalizeKey(key)
	switch {
	case key == tinkersheet.OptScale:
		if !positiveNumber(value) {
			return fmt.Errorf("option %s: want a positive number, got %v (%T): %w", key, value, value, ErrInvalid)
		}
	case tinkersheet.IsFlagOption(key):
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("option %s: want a boolean, got %v (%T): %w", key, value, value, ErrInvalid)
		}
		if key == tinkersheet.OptConstrainWidth && value == true && !p.current().Options.Bool(tinkersheet.OptResizable) {
			return fmt.Errorf("%s: %w", key, ErrDisabled)
		}
	default:
		return fmt.Errorf("unknown option %q: %w", key, ErrInvalid)
	}
	return p.store.Write(ctx, tinkersheet.Patch{Options: p.current().Options.With(key, value)})
}

func positiveNumber(v any) bool {
	switch n := v.(type) {
	case float64:
		return n > 0
	case int:
		return n > 0
	case int64:
		return n > 0
	}
	return false
}

// SetTheme selects a theme. Only the listed choices are accepted.
func (p *Panel) SetTheme(ctx context.Context, theme string) error {
	if !knownTheme(theme) {
		return fmt.Errorf("unknown theme %q: %w", theme, ErrInvalid)
	}
	return p.store.Write(ctx, tinkersheet.Patch{Theme: &theme})
}

// ImportFile asks the widget to load a local file.
func (p *Panel) ImportFile() {
	if p.instance == nil {
		return
	}
	p.forceSave()
	p.instance.LoadLocalFile()
}

// ResetDocument clears the widget document.
func (p *Panel) ResetDocument() {
	if p.instance == nil {
		return
	}
	p.forceSave()
	p.instance.ResetDocument()
}
