package message

import (
	"maps"
	"sort"

	"golang.org/x/text/language"
)

// Bundle is the set of messages for one locale. language.Und is the root
// bundle consulted after every locale-specific candidate.
type Bundle struct {
	Locale   language.Tag
	Messages map[string]string
}

// Catalog is an immutable set of bundles with a default locale. A refresh
// replaces the whole catalog rather than editing one.
type Catalog struct {
	defaultLocale language.Tag
	bundles       map[language.Tag]map[string]string
}

// NewCatalog merges bundles into a catalog. Bundles for the same locale are
// merged in order; a later key overrides an earlier one.
func NewCatalog(defaultLocale language.Tag, bundles ...Bundle) *Catalog {
	c := &Catalog{
		defaultLocale: defaultLocale,
		bundles:       make(map[language.Tag]map[string]string),
	}
	for _, b := range bundles {
		dst, ok := c.bundles[b.Locale]
		if !ok {
			dst = make(map[string]string, len(b.Messages))
			c.bundles[b.Locale] = dst
		}
		maps.Copy(dst, b.Messages)
	}
	return c
}

// DefaultLocale returns the locale tried after the requested one.
func (c *Catalog) DefaultLocale() language.Tag { return c.defaultLocale }

// Lookup finds the raw text for key following the local fallback order and
// reports the locale it was found under.
func (c *Catalog) Lookup(key string, tag language.Tag) (string, language.Tag, bool) {
	for _, cand := range candidates(tag, c.defaultLocale) {
		if text, ok := c.bundles[cand][key]; ok {
			return text, cand, true
		}
	}
	return "", language.Und, false
}

// Locales returns the locales that have a bundle, root first then by tag.
func (c *Catalog) Locales() []language.Tag {
	out := make([]language.Tag, 0, len(c.bundles))
	for t := range c.bundles {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i] == language.Und || out[j] == language.Und {
			return out[i] == language.Und && out[j] != language.Und
		}
		return out[i].String() < out[j].String()
	})
	return out
}

// Keys returns every key of the bundle for tag, sorted.
func (c *Catalog) Keys(tag language.Tag) []string {
	keys := make([]string, 0, len(c.bundles[tag]))
	for k := range c.bundles[tag] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the total number of entries across bundles.
func (c *Catalog) Len() int {
	n := 0
	for _, b := range c.bundles {
		n += len(b)
	}
	return n
}
