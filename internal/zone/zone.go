// Package zone maps GPS coordinates to the Coimbatore District zone that
// owns them. Classification is pure and total: every input yields a zone.
package zone

import "github.com/joescharf/civic/internal/models"

// District bounding box.
const (
	districtLatMin = 10.25
	districtLatMax = 11.35
	districtLngMin = 76.65
	districtLngMax = 77.45
)

// Zone thresholds. All comparisons are strict, so a point exactly on a
// threshold falls through to the next rule.
const (
	northLatThreshold = 11.05 // lat above: Mettupalayam, Annur, Thudiyalur
	southLatThreshold = 10.85 // lat below: Pollachi, Valparai, Anaimalai
	eastLngThreshold  = 77.10 // city belt, lng above: Sulur, Palladam
	westLngThreshold  = 76.95 // city belt, lng below: Madukkarai, Thondamuthur
)

// Classify returns the zone for the given coordinates. Nil coordinates and
// points outside the district map to UNASSIGNED.
func Classify(lat, lng *float64) models.Zone {
	if lat == nil || lng == nil {
		return models.ZoneUnassigned
	}
	return ClassifyPoint(*lat, *lng)
}

// ClassifyPoint classifies a coordinate pair that is known to be present.
func ClassifyPoint(lat, lng float64) models.Zone {
	// Written as a negated inclusion so NaN lands outside the district.
	inside := lat >= districtLatMin && lat <= districtLatMax && lng >= districtLngMin && lng <= districtLngMax
	if !inside {
		return models.ZoneUnassigned
	}
	switch {
	case lat > northLatThreshold:
		return models.ZoneNorth
	case lat < southLatThreshold:
		return models.ZoneSouth
	}

	// City belt: 10.85 <= lat <= 11.05.
	switch {
	case lng > eastLngThreshold:
		return models.ZoneEast
	case lng < westLngThreshold:
		return models.ZoneWest
	default:
		return models.ZoneCentral
	}
}

var descriptions = map[models.Zone]string{
	models.ZoneNorth:      "North Zone: Mettupalayam, Annur, Karamadai, Thudiyalur, Saravanampatti",
	models.ZoneSouth:      "South Zone: Pollachi, Valparai, Anaimalai, Kinathukadavu, Aliyar Dam",
	models.ZoneEast:       "East Zone: Sulur, Palladam, Avinashi Road, Tiruppur Border",
	models.ZoneWest:       "West Zone: Madukkarai, Thondamuthur, Coimbatore West",
	models.ZoneCentral:    "Central Zone: Gandhipuram, RS Puram, Peelamedu, Singanallur, Ukkadam",
	models.ZoneUnassigned: "Unassigned: outside Coimbatore District or no coordinates",
}

// Describe returns a human-readable label for the zone.
func Describe(z models.Zone) string {
	if d, ok := descriptions[z]; ok {
		return d
	}
	return descriptions[models.ZoneUnassigned]
}
