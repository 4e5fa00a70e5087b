package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/text/language"

	"github.com/km-arc/go-appcontext/framework/app"
	"github.com/km-arc/go-appcontext/framework/message"
	"github.com/km-arc/go-appcontext/framework/routing"
	"github.com/km-arc/go-appcontext/framework/validation"
)

// Inspector serves a read-mostly admin API over one context level: its
// identity, components, messages and resources, plus a refresh trigger.
// It receives its context through app.ContextAware when registered as a
// component.
type Inspector struct {
	ctx      *app.Context
	gatherer prometheus.Gatherer
	token    string
}

// NewInspector creates an Inspector. A nil gatherer disables /metrics.
func NewInspector(g prometheus.Gatherer) *Inspector {
	return &Inspector{gatherer: g}
}

// RequireToken makes POST /refresh demand "Authorization: Bearer <token>".
// An empty token leaves it open.
func (in *Inspector) RequireToken(token string) *Inspector {
	in.token = token
	return in
}

// SetContext implements app.ContextAware.
func (in *Inspector) SetContext(c *app.Context) { in.ctx = c }

// Routes registers the admin endpoints on r.
func (in *Inspector) Routes(r *routing.Router) {
	r.Get("/healthz", in.health)
	r.Get("/context", in.describe)
	r.Prefix("/components", func(r *routing.Router) {
		r.Get("/", in.components)
		r.Get("/{name}", in.component)
	})
	r.Get("/messages/{key}", in.message)
	r.Post("/messages/render", in.render)
	r.Get("/resources", in.resources)
	r.Group(func(r *routing.Router) {
		if in.token != "" {
			r.Middleware(BearerGuard(in.token))
		}
		r.Post("/refresh", in.refresh)
	})
	if in.gatherer != nil {
		r.Mount("/metrics", promhttp.HandlerFor(in.gatherer, promhttp.HandlerOpts{}))
	}
}

// ── Context ──────────────────────────────────────────────────────────────────

type contextView struct {
	ID          string    `json:"id"`
	Application string    `json:"application"`
	DisplayName string    `json:"display_name"`
	Status      string    `json:"status"`
	Generation  uint64    `json:"generation"`
	StartedAt   time.Time `json:"started_at"`
	Parent      string    `json:"parent,omitempty"`
	Profiles    []string  `json:"profiles"`
	Locales     []string  `json:"locales"`
	Schemes     []string  `json:"schemes"`
}

func (in *Inspector) health(w http.ResponseWriter, _ *http.Request) {
	res := NewResponse(w)
	status := in.ctx.Status()
	if status != app.StatusActive {
		res.Error(http.StatusServiceUnavailable, status.String())
		return
	}
	res.Success(envelope{"status": status.String(), "generation": in.ctx.Generation()})
}

func (in *Inspector) describe(w http.ResponseWriter, _ *http.Request) {
	res := NewResponse(w)
	c := in.ctx
	view := contextView{
		ID:          c.ID(),
		Application: c.ApplicationName(),
		DisplayName: c.DisplayName(),
		Status:      c.Status().String(),
		Generation:  c.Generation(),
		StartedAt:   c.StartupDate(),
		Profiles:    []string{},
		Locales:     []string{},
		Schemes:     c.ResourceSchemes(),
	}
	if p := c.Parent(); p != nil {
		view.Parent = p.ID()
	}
	if env, err := c.Environment(); err == nil {
		view.Profiles = env.ActiveProfiles()
	}
	if cat, err := c.Catalog(); err == nil {
		for _, t := range cat.Locales() {
			view.Locales = append(view.Locales, t.String())
		}
	}
	res.Success(view)
}

// ── Components ───────────────────────────────────────────────────────────────

func (in *Inspector) components(w http.ResponseWriter, _ *http.Request) {
	res := NewResponse(w)
	names, err := in.ctx.Names()
	if err != nil {
		res.FromError(err)
		return
	}
	res.Success(names)
}

func (in *Inspector) component(w http.ResponseWriter, r *http.Request) {
	res := NewResponse(w)
	name := NewRequest(r).RouteParam("name")
	reg, err := in.ctx.AutowireFactory()
	if err != nil {
		res.FromError(err)
		return
	}
	def, ok := reg.Definition(name)
	if !ok {
		res.NotFound("component " + strconv.Quote(name) + " not found")
		return
	}
	view := envelope{
		"name":    def.Name,
		"scope":   string(def.Scope),
		"primary": def.Primary,
		"aliases": def.Aliases,
	}
	if def.Type != nil {
		view["type"] = def.Type.String()
	}
	res.Success(view)
}

// ── Messages ─────────────────────────────────────────────────────────────────

var messageRules = validation.Rules{
	"key":    "required|max:200|regex:^[A-Za-z0-9_.-]+$",
	"locale": "nullable|regex:^[A-Za-z]{2,8}([_-][A-Za-z0-9]{1,8})*$",
}

func (in *Inspector) message(w http.ResponseWriter, r *http.Request) {
	req, res := NewRequest(r), NewResponse(w)
	tag := in.locale(req)
	input := map[string]string{"key": req.RouteParam("key"), "locale": req.Query("locale")}
	v := validation.Make(input, messageRules).WithTranslator(in.ctx.Translator(tag))
	if v.Fails() {
		res.ValidationError(v.Errors())
		return
	}
	args := make([]any, 0)
	for _, a := range req.QueryAll("arg") {
		args = append(args, argValue(a))
	}
	var (
		text string
		err  error
	)
	if def := req.Query("default"); def != "" {
		text, err = in.ctx.MessageOr(input["key"], def, tag, args...)
	} else {
		text, err = in.ctx.Message(input["key"], tag, args...)
	}
	if err != nil {
		res.FromError(err)
		return
	}
	res.Success(envelope{"key": input["key"], "locale": tag.String(), "text": text})
}

type renderRequest struct {
	Codes   []string `json:"codes"`
	Args    []any    `json:"args"`
	Default string   `json:"default"`
	Locale  string   `json:"locale"`
}

func (in *Inspector) render(w http.ResponseWriter, r *http.Request) {
	req, res := NewRequest(r), NewResponse(w)
	var body renderRequest
	if err := req.Bind(&body); err != nil {
		res.Error(http.StatusBadRequest, err.Error())
		return
	}
	tag := in.locale(req)
	if body.Locale != "" {
		parsed, err := message.ParseLocale(body.Locale)
		if err != nil {
			res.Error(http.StatusBadRequest, err.Error())
			return
		}
		tag = parsed
	}
	if len(body.Codes) == 0 && body.Default == "" {
		res.Error(http.StatusBadRequest, "codes or default required")
		return
	}
	text, err := in.ctx.MessageFor(message.Message{Codes: body.Codes, Args: body.Args, Default: body.Default}, tag)
	if err != nil {
		res.FromError(err)
		return
	}
	res.Success(envelope{"locale": tag.String(), "text": text})
}

func (in *Inspector) locale(req *Request) language.Tag {
	def := language.Und
	if cat, err := in.ctx.Catalog(); err == nil {
		def = cat.DefaultLocale()
	}
	return req.Locale(def)
}

// argValue keeps numeric query arguments numeric so number placeholders
// format them.
func argValue(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// ── Resources ────────────────────────────────────────────────────────────────

type resourceView struct {
	Location string    `json:"location"`
	Size     int64     `json:"size"`
	ModTime  time.Time `json:"mod_time"`
}

func (in *Inspector) resources(w http.ResponseWriter, r *http.Request) {
	req, res := NewRequest(r), NewResponse(w)
	pattern := req.Query("pattern")
	if pattern == "" {
		res.Error(http.StatusBadRequest, "pattern required")
		return
	}
	handles, err := in.ctx.Resources(r.Context(), pattern)
	if err != nil {
		res.FromError(err)
		return
	}
	out := make([]resourceView, 0, len(handles))
	for _, h := range handles {
		out = append(out, resourceView{Location: h.Location, Size: h.Size, ModTime: h.ModTime})
	}
	res.Success(out)
}

// ── Refresh ──────────────────────────────────────────────────────────────────

func (in *Inspector) refresh(w http.ResponseWriter, r *http.Request) {
	res := NewResponse(w)
	if err := in.ctx.Refresh(r.Context()); err != nil {
		res.FromError(err)
		return
	}
	res.Accepted(envelope{"generation": in.ctx.Generation()})
}

var _ app.ContextAware = (*Inspector)(nil)
