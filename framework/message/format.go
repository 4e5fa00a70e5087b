package message

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/text/language"
	xmessage "golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/km-arc/go-appcontext/framework/errors"
)

// segment is either literal text or one argument placeholder.
type segment struct {
	literal string
	arg     int // -1 for literals
	kind    string
	style   string
}

// FormatError reports a message whose text was found but could not be
// rendered with the given arguments.
type FormatError struct {
	Text   string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("message format %q: %s", e.Text, e.Reason)
}

// Is makes errors.Is(err, ErrFormat) hold.
func (e *FormatError) Is(target error) bool { return target == errors.ErrFormat }

// formatter renders templates for a locale and caches parsed templates.
type formatter struct {
	templates *gocache.Cache
}

func newFormatter() *formatter {
	// Templates come from an immutable catalog, so entries never go stale.
	return &formatter{templates: gocache.New(gocache.NoExpiration, 0)}
}

// Format renders text with positional arguments for tag. Quoting follows the
// usual message-format rules: a doubled single quote is a literal quote and
// text between single quotes is copied verbatim. Without arguments the text
// is returned as is, unparsed.
func (f *formatter) Format(text string, tag language.Tag, args []any) (string, error) {
	if len(args) == 0 {
		return text, nil
	}
	segs, err := f.parse(text)
	if err != nil {
		return "", err
	}
	var p *xmessage.Printer
	var b strings.Builder
	for _, s := range segs {
		if s.arg < 0 {
			b.WriteString(s.literal)
			continue
		}
		if s.arg >= len(args) {
			return "", &FormatError{Text: text, Reason: fmt.Sprintf("argument {%d} referenced but %d supplied", s.arg, len(args))}
		}
		if p == nil {
			p = xmessage.NewPrinter(tag)
		}
		out, err := renderArg(p, tag, s, args[s.arg])
		if err != nil {
			return "", &FormatError{Text: text, Reason: err.Error()}
		}
		b.WriteString(out)
	}
	return b.String(), nil
}

func (f *formatter) parse(text string) ([]segment, error) {
	if cached, ok := f.templates.Get(text); ok {
		return cached.([]segment), nil
	}
	segs, err := parseTemplate(text)
	if err != nil {
		return nil, err
	}
	f.templates.SetDefault(text, segs)
	return segs, nil
}

func parseTemplate(text string) ([]segment, error) {
	var segs []segment
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			segs = append(segs, segment{literal: lit.String(), arg: -1})
			lit.Reset()
		}
	}

	for i := 0; i < len(text); i++ {
		c := text[i]
		switch c {
		case '\'':
			if i+1 < len(text) && text[i+1] == '\'' {
				lit.WriteByte('\'')
				i++
				continue
			}
			// Quoted text runs to the next lone quote, or to the end.
			for i++; i < len(text); i++ {
				if text[i] != '\'' {
					lit.WriteByte(text[i])
					continue
				}
				if i+1 < len(text) && text[i+1] == '\'' {
					lit.WriteByte('\'')
					i++
					continue
				}
				break
			}
		case '{':
			end := strings.IndexByte(text[i:], '}')
			if end < 0 {
				return nil, &FormatError{Text: text, Reason: "unmatched '{'"}
			}
			s, err := parsePlaceholder(text[i+1 : i+end])
			if err != nil {
				return nil, &FormatError{Text: text, Reason: err.Error()}
			}
			flush()
			segs = append(segs, s)
			i += end
		default:
			lit.WriteByte(c)
		}
	}
	flush()
	return segs, nil
}

func parsePlaceholder(body string) (segment, error) {
	parts := strings.SplitN(body, ",", 3)
	idx, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || idx < 0 {
		return segment{}, fmt.Errorf("bad argument index %q", parts[0])
	}
	s := segment{arg: idx}
	if len(parts) > 1 {
		s.kind = strings.TrimSpace(parts[1])
	}
	if len(parts) > 2 {
		s.style = strings.TrimSpace(parts[2])
	}
	switch s.kind {
	case "", "number", "date", "time":
	default:
		return segment{}, fmt.Errorf("unknown format type %q", s.kind)
	}
	return s, nil
}

func renderArg(p *xmessage.Printer, tag language.Tag, s segment, v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "null", nil
	case time.Time:
		return formatTime(tag, s.kind, x), nil
	case string:
		if s.kind == "number" {
			return "", fmt.Errorf("argument {%d} is a string, not a number", s.arg)
		}
		return x, nil
	}
	if isNumber(v) {
		switch s.style {
		case "integer":
			return p.Sprintf("%v", number.Decimal(v, number.MaxFractionDigits(0))), nil
		case "percent":
			return p.Sprintf("%v", number.Percent(v)), nil
		default:
			return p.Sprintf("%v", number.Decimal(v)), nil
		}
	}
	if s.kind == "number" {
		return "", fmt.Errorf("argument {%d} is %T, not a number", s.arg, v)
	}
	return fmt.Sprint(v), nil
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	}
	return false
}

// dateLayouts maps a language to its numeric date and time layouts.
var dateLayouts = map[string][2]string{
	"en": {"01/02/2006", "3:04 PM"},
	"de": {"02.01.2006", "15:04"},
	"fr": {"02/01/2006", "15:04"},
	"es": {"02/01/2006", "15:04"},
	"it": {"02/01/2006", "15:04"},
	"pt": {"02/01/2006", "15:04"},
	"nl": {"02-01-2006", "15:04"},
	"ja": {"2006/01/02", "15:04"},
	"zh": {"2006/01/02", "15:04"},
}

func formatTime(tag language.Tag, kind string, t time.Time) string {
	base, _ := tag.Base()
	layouts, ok := dateLayouts[base.String()]
	if !ok {
		layouts = [2]string{"2006-01-02", "15:04"}
	}
	switch kind {
	case "time":
		return t.Format(layouts[1])
	case "date":
		return t.Format(layouts[0])
	default:
		return t.Format(layouts[0] + " " + layouts[1])
	}
}
