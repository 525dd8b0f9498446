package geo

import (
	"strconv"

	"github.com/citizenvoice/platform/internal/shared/types"
)

// Predicate decides whether a record located at loc is visible
type Predicate func(loc types.Location) bool

// Tagged is implemented by records carrying a location
type Tagged interface {
	GeoLocation() types.Location
}

// At returns the attribute of loc at level, or "" for NATIONAL.
func At(loc types.Location, level Level) string {
	d := level.Depth()
	if d < 1 {
		return ""
	}
	return loc.Parts()[d-1]
}

// Truncate clears every attribute of loc deeper than level
func Truncate(loc types.Location, level Level) types.Location {
	if !level.Valid() {
		return types.Location{}
	}
	parts := loc.Parts()
	for i := level.Depth(); i < len(parts); i++ {
		parts[i] = ""
	}
	return types.NewLocation(parts[0], parts[1], parts[2], parts[3], parts[4])
}

// Resolve finds the deepest populated attribute of loc, checking village,
// cell, sector, district, then province. ok is false when none is set.
func Resolve(loc types.Location) (level Level, value string, ok bool) {
	parts := loc.Parts()
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] != "" {
			level, _ = LevelAt(i + 1)
			return level, parts[i], true
		}
	}
	return "", "", false
}

// ScopeFilter builds the predicate for an actor located at loc. Only the
// deepest populated attribute is compared, by exact string equality. An
// empty location rejects everything.
func ScopeFilter(loc types.Location) Predicate {
	level, value, ok := Resolve(loc)
	if !ok {
		return RejectAll
	}
	return func(candidate types.Location) bool {
		return At(candidate, level) == value
	}
}

// ForScope is ScopeFilter with the NATIONAL exception applied.
func ForScope(scope Level, loc types.Location) Predicate {
	if scope == LevelNational {
		return AcceptAll
	}
	return ScopeFilter(loc)
}

// AcceptAll matches every record
func AcceptAll(types.Location) bool { return true }

// RejectAll matches no record
func RejectAll(types.Location) bool { return false }

// Filter keeps the items whose location satisfies pred
func Filter[T Tagged](items []T, pred Predicate) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if pred(item.GeoLocation()) {
			out = append(out, item)
		}
	}
	return out
}

// Mode tells a repository how to restrict a query
type Mode int

const (
	MatchNone Mode = iota
	MatchAll
	MatchColumn
)

// Condition is the SQL form of ForScope
type Condition struct {
	Mode   Mode
	Column string
	Value  string
}

// ConditionFor translates the scope of an actor into a Condition
func ConditionFor(scope Level, loc types.Location) Condition {
	if scope == LevelNational {
		return Condition{Mode: MatchAll}
	}
	level, value, ok := Resolve(loc)
	if !ok {
		return Condition{Mode: MatchNone}
	}
	return Condition{Mode: MatchColumn, Column: level.Column(), Value: value}
}

// Narrowing builds the condition for an explicit location filter, as used by
// administrator search. An empty filter matches everything.
func Narrowing(filter types.Location) Condition {
	level, value, ok := Resolve(filter)
	if !ok {
		return Condition{Mode: MatchAll}
	}
	return Condition{Mode: MatchColumn, Column: level.Column(), Value: value}
}

// SQL renders c as a WHERE fragment using placeholder $argNum. args is empty
// unless the condition compares a column.
func (c Condition) SQL(argNum int) (clause string, args []any) {
	switch c.Mode {
	case MatchAll:
		return "TRUE", nil
	case MatchColumn:
		return c.Column + " = $" + strconv.Itoa(argNum), []any{c.Value}
	}
	return "FALSE", nil
}

// Matches evaluates c against loc the way SQL evaluates the rendered clause
func (c Condition) Matches(loc types.Location) bool {
	switch c.Mode {
	case MatchAll:
		return true
	case MatchColumn:
		for _, l := range Levels[1:] {
			if l.Column() == c.Column {
				return At(loc, l) == c.Value
			}
		}
	}
	return false
}
