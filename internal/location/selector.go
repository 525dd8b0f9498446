package location

import (
	"errors"
	"fmt"

	"github.com/citizenvoice/platform/internal/geo"
	"github.com/citizenvoice/platform/internal/shared/types"
)

var (
	// ErrUnknownOption is returned when a value is not among the current options
	ErrUnknownOption = errors.New("value is not one of the available options")
	// ErrInvalidLevel is returned for NATIONAL or an undefined level
	ErrInvalidLevel = errors.New("level has no selectable value")
	// ErrInconsistent is returned by Validate
	ErrInconsistent = errors.New("location is inconsistent with administration scope")
)

const depths = 5

// Selector is the state of a cascading province > village picker. It is a
// value: Select returns the next state and never mutates the receiver.
type Selector struct {
	table   *Table
	values  [depths]string
	options [depths][]string
}

// NewSelector starts with provinces populated and nothing selected
func NewSelector(t *Table) Selector {
	s := Selector{table: t}
	s.options[0] = t.Provinces()
	for i := 1; i < depths; i++ {
		s.options[i] = []string{}
	}
	return s
}

// Select sets level to value. Deeper values are cleared, the options one
// level down are reloaded and options further down are emptied. An empty
// value clears level. On error the returned state equals the receiver.
func (s Selector) Select(level geo.Level, value string) (Selector, error) {
	d := level.Depth()
	if d < 1 {
		return s, ErrInvalidLevel
	}
	i := d - 1

	if value != "" && !contains(s.options[i], value) {
		return s, fmt.Errorf("%w: %s %q", ErrUnknownOption, level, value)
	}

	next := s
	next.values[i] = value
	for j := i + 1; j < depths; j++ {
		next.values[j] = ""
		next.options[j] = []string{}
	}
	if i+1 < depths && value != "" {
		next.options[i+1] = s.table.Children(next.values[:i+1]...)
	}
	return next, nil
}

// Value returns the selection at level
func (s Selector) Value(level geo.Level) string {
	d := level.Depth()
	if d < 1 {
		return ""
	}
	return s.values[d-1]
}

// Options returns the choices currently offered at level
func (s Selector) Options(level geo.Level) []string {
	d := level.Depth()
	if d < 1 {
		return []string{}
	}
	return s.options[d-1]
}

// Location returns the current selection
func (s Selector) Location() types.Location {
	v := s.values
	return types.NewLocation(v[0], v[1], v[2], v[3], v[4])
}

func contains(options []string, value string) bool {
	for _, o := range options {
		if o == value {
			return true
		}
	}
	return false
}

// Validate checks that loc names a real division at exactly level: every
// attribute down to level is set and exists in t, and nothing deeper is set.
// NATIONAL requires an empty location.
func (t *Table) Validate(level geo.Level, loc types.Location) error {
	if !level.Valid() {
		return fmt.Errorf("%w: unknown level %q", ErrInconsistent, level)
	}
	parts := loc.Parts()
	d := level.Depth()
	for i := 0; i < depths; i++ {
		lvl, _ := geo.LevelAt(i + 1)
		if i < d && parts[i] == "" {
			return fmt.Errorf("%w: %s is required for %s scope", ErrInconsistent, lvl.Column(), level)
		}
		if i >= d && parts[i] != "" {
			return fmt.Errorf("%w: %s must be empty for %s scope", ErrInconsistent, lvl.Column(), level)
		}
	}
	if !t.Contains(parts[:d]...) {
		return fmt.Errorf("%w: unknown location", ErrInconsistent)
	}
	return nil
}

// Validate checks loc against the embedded table
func Validate(level geo.Level, loc types.Location) error {
	return Default().Validate(level, loc)
}
