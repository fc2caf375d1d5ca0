package catalog

import "strings"

// Local category ids. Every document lands in exactly one of these.
const (
	CatRomance = "cat1"
	CatAction  = "cat2"
	CatComedy  = "cat3"
	CatFantasy = "cat4"
	CatShounen = "cat5"
	CatShoujo  = "cat6"

	DefaultCategoryID = CatRomance
)

var CategoryIDs = []string{CatRomance, CatAction, CatComedy, CatFantasy, CatShounen, CatShoujo}

// CategoryRule matches when any lower-cased tag contains one of Keywords,
// or when the publication demographic equals Demographic.
type CategoryRule struct {
	ID          string
	Keywords    []string
	Demographic string
}

func (r CategoryRule) matches(tags []string, demographic string) bool {
	if r.Demographic != "" && demographic == r.Demographic {
		return true
	}
	for _, tag := range tags {
		for _, kw := range r.Keywords {
			if strings.Contains(tag, kw) {
				return true
			}
		}
	}
	return false
}

// Heuristic is an ordered rule list: the first match wins, no match
// falls back to DefaultCategoryID. It is a keyword guess, not a
// classifier.
type Heuristic []CategoryRule

// Determine is total: any input, empty included, yields a category id.
func (h Heuristic) Determine(tags []string, demographic string) string {
	lowered := make([]string, len(tags))
	for i, t := range tags {
		lowered[i] = strings.ToLower(t)
	}
	for _, rule := range h {
		if rule.matches(lowered, demographic) {
			return rule.ID
		}
	}
	return DefaultCategoryID
}

// MangaDexHeuristic reads shounen/shoujo from the demographic field.
var MangaDexHeuristic = Heuristic{
	{ID: CatRomance, Keywords: []string{"romance", "tình cảm"}},
	{ID: CatAction, Keywords: []string{"action", "hành động"}},
	{ID: CatComedy, Keywords: []string{"comedy", "hài hước"}},
	{ID: CatFantasy, Keywords: []string{"fantasy"}},
	{ID: CatShounen, Demographic: "shounen"},
	{ID: CatShoujo, Demographic: "shoujo"},
}

// NetTromHeuristic has no demographic field; shounen/shoujo are tags.
var NetTromHeuristic = Heuristic{
	{ID: CatRomance, Keywords: []string{"tình cảm", "romance"}},
	{ID: CatAction, Keywords: []string{"hành động", "action"}},
	{ID: CatComedy, Keywords: []string{"hài hước", "comedy"}},
	{ID: CatFantasy, Keywords: []string{"fantasy", "phiêu lưu"}},
	{ID: CatShounen, Keywords: []string{"shounen"}},
	{ID: CatShoujo, Keywords: []string{"shoujo"}},
}

// DetermineCategoryID applies the MangaDex rules.
func DetermineCategoryID(tags []string, demographic string) string {
	return MangaDexHeuristic.Determine(tags, demographic)
}
