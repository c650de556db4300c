package aggregate

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SortStrings orders s by English collation rules, falling back to byte order for
// strings the collator considers equal so the result is deterministic.
func SortStrings(s []string) {
	// collate.Collator keeps internal buffers, so one is built per call.
	c := collate.New(language.English)
	sort.SliceStable(s, func(i, j int) bool {
		if cmp := c.CompareString(s[i], s[j]); cmp != 0 {
			return cmp < 0
		}
		return s[i] < s[j]
	})
}

func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	SortStrings(keys)
	return keys
}

// SortedVariants lists an item's variants in collation order.
func (i Item) SortedVariants() []Variant {
	out := make([]Variant, 0, len(i.Variants))
	for _, key := range SortedKeys(i.Variants) {
		out = append(out, i.Variants[key])
	}
	return out
}
