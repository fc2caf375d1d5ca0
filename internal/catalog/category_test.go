package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetermineCategoryID(t *testing.T) {
	cases := []struct {
		name        string
		tags        []string
		demographic string
		want        string
	}{
		{"romance", []string{"Drama", "Romance"}, "", CatRomance},
		{"vietnamese action", []string{"Hành Động"}, "", CatAction},
		{"romance beats action", []string{"Action", "Romance"}, "", CatRomance},
		{"comedy", []string{"Comedy"}, "shounen", CatComedy},
		{"fantasy", []string{"Dark Fantasy"}, "", CatFantasy},
		{"shounen demographic", []string{"Sports"}, "shounen", CatShounen},
		{"shoujo demographic", nil, "shoujo", CatShoujo},
		{"shounen tag is not a demographic", []string{"Shounen"}, "", DefaultCategoryID},
		{"nothing", nil, "", DefaultCategoryID},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DetermineCategoryID(tc.tags, tc.demographic))
		})
	}
}

func TestNetTromHeuristic(t *testing.T) {
	assert.Equal(t, CatFantasy, NetTromHeuristic.Determine([]string{"Phiêu Lưu"}, ""))
	assert.Equal(t, CatShounen, NetTromHeuristic.Determine([]string{"Shounen"}, ""))
	assert.Equal(t, CatShoujo, NetTromHeuristic.Determine([]string{"Shoujo"}, ""))
	assert.Equal(t, CatRomance, NetTromHeuristic.Determine([]string{"Ngôn Tình", "Tình cảm"}, ""))
}

func TestHeuristicIsTotal(t *testing.T) {
	inputs := [][]string{nil, {}, {""}, {"???"}, {"ACTION"}, {"Slice of Life", "Mecha"}}
	for _, tags := range inputs {
		for _, h := range []Heuristic{MangaDexHeuristic, NetTromHeuristic, nil} {
			assert.Contains(t, CategoryIDs, h.Determine(tags, "seinen"))
		}
	}
}

func TestCustomRules(t *testing.T) {
	h := Heuristic{{ID: CatComedy, Keywords: []string{"gag"}}}
	assert.Equal(t, CatComedy, h.Determine([]string{"Gag Manga"}, ""))
	assert.Equal(t, DefaultCategoryID, h.Determine([]string{"Action"}, ""))
}
