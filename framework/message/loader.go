package message

import (
	"context"
	"database/sql"
	"fmt"
	"path"
	"regexp"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/km-arc/go-appcontext/framework/resource"
)

// LoadYAML reads every bundle file matching pattern. The locale comes from
// the file name: "messages_fr_FR.yaml" is fr-FR and a name without a locale
// suffix ("messages.yaml") is the root bundle. Nested mappings flatten into
// dotted keys.
func LoadYAML(ctx context.Context, r resource.PatternResolver, pattern string) ([]Bundle, error) {
	handles, err := r.Resolve(ctx, pattern)
	if err != nil {
		return nil, err
	}
	bundles := make([]Bundle, 0, len(handles))
	for _, h := range handles {
		tag, err := localeFromName(h.Path)
		if err != nil {
			return nil, err
		}
		data, err := h.ReadAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("message bundle %s: %w", h.Location, err)
		}
		var doc map[string]any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("message bundle %s: %w", h.Location, err)
		}
		msgs := make(map[string]string)
		flatten("", doc, msgs)
		bundles = append(bundles, Bundle{Locale: tag, Messages: msgs})
	}
	return bundles, nil
}

func localeFromName(p string) (language.Tag, error) {
	base := path.Base(p)
	base = strings.TrimSuffix(base, path.Ext(base))
	_, suffix, ok := strings.Cut(base, "_")
	if !ok {
		return language.Und, nil
	}
	return ParseLocale(suffix)
}

func flatten(prefix string, node map[string]any, out map[string]string) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch x := v.(type) {
		case map[string]any:
			flatten(key, x, out)
		case map[any]any:
			m := make(map[string]any, len(x))
			for mk, mv := range x {
				m[fmt.Sprint(mk)] = mv
			}
			flatten(key, m, out)
		case nil:
			out[key] = ""
		default:
			out[key] = fmt.Sprint(x)
		}
	}
}

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// LoadSQL reads bundles from a table with "key", "locale" and "text"
// columns. An empty locale is the root bundle.
func LoadSQL(ctx context.Context, db *sql.DB, table string) ([]Bundle, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("message table %q: invalid name", table)
	}
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`SELECT "key", "locale", "text" FROM %q ORDER BY "locale", "key"`, table))
	if err != nil {
		return nil, fmt.Errorf("message table %s: %w", table, err)
	}
	defer rows.Close()

	byLocale := make(map[language.Tag]map[string]string)
	var order []language.Tag
	for rows.Next() {
		var key, locale, text string
		if err := rows.Scan(&key, &locale, &text); err != nil {
			return nil, fmt.Errorf("message table %s: %w", table, err)
		}
		tag, err := ParseLocale(locale)
		if err != nil {
			return nil, err
		}
		msgs, ok := byLocale[tag]
		if !ok {
			msgs = make(map[string]string)
			byLocale[tag] = msgs
			order = append(order, tag)
		}
		msgs[key] = text
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("message table %s: %w", table, err)
	}
	bundles := make([]Bundle, 0, len(order))
	for _, tag := range order {
		bundles = append(bundles, Bundle{Locale: tag, Messages: byLocale[tag]})
	}
	return bundles, nil
}
