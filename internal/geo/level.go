// Package geo holds the administrative hierarchy and the geographic scope
// rules that decide which records an actor may see.
package geo

import "fmt"

// Level is an administrative level. The zero value is not a valid level.
type Level string

const (
	LevelNational Level = "NATIONAL"
	LevelProvince Level = "PROVINCE"
	LevelDistrict Level = "DISTRICT"
	LevelSector   Level = "SECTOR"
	LevelCell     Level = "CELL"
	LevelVillage  Level = "VILLAGE"
)

// Levels lists every level from the widest to the narrowest
var Levels = []Level{LevelNational, LevelProvince, LevelDistrict, LevelSector, LevelCell, LevelVillage}

// ParseLevel converts s into a Level
func ParseLevel(s string) (Level, error) {
	l := Level(s)
	if !l.Valid() {
		return "", fmt.Errorf("unknown administrative level %q", s)
	}
	return l, nil
}

// Valid reports whether l is one of the defined levels
func (l Level) Valid() bool {
	_, ok := l.depth()
	return ok
}

// Depth is 0 for NATIONAL and 5 for VILLAGE.
func (l Level) Depth() int {
	d, _ := l.depth()
	return d
}

func (l Level) depth() (int, bool) {
	switch l {
	case LevelNational:
		return 0, true
	case LevelProvince:
		return 1, true
	case LevelDistrict:
		return 2, true
	case LevelSector:
		return 3, true
	case LevelCell:
		return 4, true
	case LevelVillage:
		return 5, true
	}
	return -1, false
}

// Contains reports whether l is the same level as other or wider than it
func (l Level) Contains(other Level) bool {
	return l.Valid() && other.Valid() && l.Depth() <= other.Depth()
}

// Column is the name of the location column holding l. NATIONAL has none.
func (l Level) Column() string {
	switch l {
	case LevelProvince:
		return "province"
	case LevelDistrict:
		return "district"
	case LevelSector:
		return "sector"
	case LevelCell:
		return "cell"
	case LevelVillage:
		return "village"
	}
	return ""
}

// LevelAt returns the level for a depth between 1 and 5
func LevelAt(depth int) (Level, bool) {
	if depth < 1 || depth >= len(Levels) {
		return "", false
	}
	return Levels[depth], true
}
