package models

import (
	"fmt"
	"strings"
)

// Zone is a geographic partition of the governed district.
type Zone string

const (
	ZoneNorth      Zone = "NORTH"
	ZoneSouth      Zone = "SOUTH"
	ZoneEast       Zone = "EAST"
	ZoneWest       Zone = "WEST"
	ZoneCentral    Zone = "CENTRAL"
	ZoneUnassigned Zone = "UNASSIGNED" // outside the district or no coordinates
)

// Zones returns every zone, including UNASSIGNED.
func Zones() []Zone {
	return []Zone{ZoneNorth, ZoneSouth, ZoneEast, ZoneWest, ZoneCentral, ZoneUnassigned}
}

// GovernedZones returns the zones a regional official can be responsible for.
func GovernedZones() []Zone {
	return []Zone{ZoneNorth, ZoneSouth, ZoneEast, ZoneWest, ZoneCentral}
}

// Valid reports whether z is one of the six known zones.
func (z Zone) Valid() bool {
	for _, known := range Zones() {
		if z == known {
			return true
		}
	}
	return false
}

// Governed reports whether z is a zone with an official responsible for it.
func (z Zone) Governed() bool {
	return z.Valid() && z != ZoneUnassigned
}

// ParseZone parses a zone name case-insensitively.
func ParseZone(s string) (Zone, error) {
	z := Zone(strings.ToUpper(strings.TrimSpace(s)))
	if !z.Valid() {
		return "", fmt.Errorf("unknown zone: %q", s)
	}
	return z, nil
}
