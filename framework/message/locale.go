package message

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// ParseLocale accepts BCP 47 tags and the underscore form used in bundle
// file names ("fr_FR"). The empty string is the root locale (language.Und).
func ParseLocale(s string) (language.Tag, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return language.Und, nil
	}
	tag, err := language.Parse(strings.ReplaceAll(s, "_", "-"))
	if err != nil {
		return language.Und, fmt.Errorf("message: invalid locale %q: %w", s, err)
	}
	return tag, nil
}

// fallbacks lists the tags tried for one locale, most specific first:
// the exact tag, language-script when both script and region were given,
// then the bare language. The root locale yields nothing.
func fallbacks(tag language.Tag) []language.Tag {
	if tag == language.Und {
		return nil
	}
	out := []language.Tag{tag}
	base, script, region := tag.Raw()
	if script != (language.Script{}) && region != (language.Region{}) {
		if t, err := language.Compose(base, script); err == nil {
			out = appendTag(out, t)
		}
	}
	if t, err := language.Compose(base); err == nil && t != language.Und {
		out = appendTag(out, t)
	}
	return out
}

// candidates is the full local resolution order for tag: its fallbacks,
// then the default locale's, then the root bundle.
func candidates(tag, def language.Tag) []language.Tag {
	out := fallbacks(tag)
	for _, t := range fallbacks(def) {
		out = appendTag(out, t)
	}
	return append(out, language.Und)
}

func appendTag(tags []language.Tag, t language.Tag) []language.Tag {
	for _, have := range tags {
		if have == t {
			return tags
		}
	}
	return append(tags, t)
}
