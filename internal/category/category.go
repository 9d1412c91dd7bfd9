// Package category suggests an issue category from its text.
package category

import "strings"

// Other is the fallback category.
const Other = "Other"

// Categories returns the categories offered to citizens, in display order.
func Categories() []string {
	return []string{
		"Roads & Potholes",
		"Streetlights",
		"Drainage & Flooding",
		"Garbage & Waste",
		"Parks & Recreation",
		"Public Safety",
		"Water Supply",
		"Noise Pollution",
		"Infrastructure",
		Other,
	}
}

// Known reports whether name is one of Categories, ignoring case.
func Known(name string) (string, bool) {
	for _, c := range Categories() {
		if strings.EqualFold(strings.TrimSpace(name), c) {
			return c, true
		}
	}
	return "", false
}

// Rules are checked in order; the first category with a matching keyword wins.
// Drainage precedes water supply so "water logging" is not a supply problem.
var rules = []struct {
	category string
	keywords []string
}{
	{"Drainage & Flooding", []string{"drain", "flood", "sewage", "sewer", "waterlogg", "water logg", "overflow", "manhole"}},
	{"Streetlights", []string{"streetlight", "street light", "lamp", "lights out", "dark street", "no light"}},
	{"Roads & Potholes", []string{"pothole", "road", "asphalt", "speed breaker", "footpath", "pavement", "traffic signal"}},
	{"Garbage & Waste", []string{"garbage", "trash", "waste", "litter", "dump", "rubbish", "bin "}},
	{"Water Supply", []string{"water supply", "no water", "pipe", "tap", "leak", "drinking water"}},
	{"Noise Pollution", []string{"noise", "loud", "speaker", "honking"}},
	{"Parks & Recreation", []string{"park", "playground", "garden", "bench", "swing"}},
	{"Public Safety", []string{"unsafe", "danger", "stray dog", "fire", "crime", "theft", "accident", "fallen tree", "live wire"}},
	{"Infrastructure", []string{"bridge", "building", "wall", "bus stop", "toilet", "electric pole", "signage"}},
}

// Suggest infers a category from the title and description using keyword
// heuristics. The title is checked before the description. Defaults to Other.
func Suggest(title, description string) string {
	for _, text := range []string{title, description} {
		lower := strings.ToLower(text)
		for _, r := range rules {
			for _, kw := range r.keywords {
				if strings.Contains(lower, kw) {
					return r.category
				}
			}
		}
	}
	return Other
}
