package catalog

import (
	"strconv"

	"github.com/TETRIX8/anime/internal/kodik"
)

// Item is one show after grouping. The embedded row is the first one seen
// for the show; Translation and Link point at the first translation.
type Item struct {
	kodik.Material
	Translations     []kodik.Translation `json:"translations"`
	TranslationLinks map[string]string   `json:"translation_links"`
}

// GroupKey identifies a show across provider rows. Two different shows
// with the same title and year collapse into one item.
func GroupKey(m kodik.Material) string {
	year := "unknown"
	if m.Year != nil {
		year = strconv.Itoa(*m.Year)
	}
	return m.Title + "__" + year
}

// Group folds provider rows into one Item per GroupKey, in order of first
// appearance. Rows without a translation contribute only their base fields.
func Group(rows []kodik.Material) []Item {
	order := make([]string, 0, len(rows))
	byKey := make(map[string]*Item, len(rows))

	for _, row := range rows {
		key := GroupKey(row)
		it, ok := byKey[key]
		if !ok {
			it = &Item{
				Material:         row,
				Translations:     []kodik.Translation{},
				TranslationLinks: map[string]string{},
			}
			byKey[key] = it
			order = append(order, key)
		}

		if row.Translation == nil {
			continue
		}
		tid := strconv.Itoa(row.Translation.ID)
		if _, seen := it.TranslationLinks[tid]; seen {
			continue
		}
		it.Translations = append(it.Translations, *row.Translation)
		it.TranslationLinks[tid] = row.Link
	}

	out := make([]Item, 0, len(order))
	for _, key := range order {
		it := byKey[key]
		if len(it.Translations) > 0 {
			first := it.Translations[0]
			it.Translation = &first
			it.Link = it.TranslationLinks[strconv.Itoa(first.ID)]
		}
		out = append(out, *it)
	}
	return out
}

// Flatten expands items back into one row per translation. Grouping the
// result yields the same items again.
func Flatten(items []Item) []kodik.Material {
	rows := make([]kodik.Material, 0, len(items))
	for _, it := range items {
		if len(it.Translations) == 0 {
			rows = append(rows, it.Material)
			continue
		}
		for _, tr := range it.Translations {
			row := it.Material
			t := tr
			row.Translation = &t
			row.Link = it.TranslationLinks[strconv.Itoa(tr.ID)]
			rows = append(rows, row)
		}
	}
	return rows
}
