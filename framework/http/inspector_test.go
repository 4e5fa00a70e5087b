package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/km-arc/go-appcontext/framework/app"
	"github.com/km-arc/go-appcontext/framework/container"
	gohttp "github.com/km-arc/go-appcontext/framework/http"
	"github.com/km-arc/go-appcontext/framework/message"
	"github.com/km-arc/go-appcontext/framework/metrics"
	"github.com/km-arc/go-appcontext/framework/resource"
	"github.com/km-arc/go-appcontext/framework/routing"
)

type inspectorFixture struct {
	ctx     *app.Context
	handler http.Handler
}

func newInspectorFixture(t *testing.T) *inspectorFixture {
	t.Helper()
	return newGuardedInspectorFixture(t, "")
}

func newGuardedInspectorFixture(t *testing.T, token string) *inspectorFixture {
	t.Helper()
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	space := resource.NewMemorySpace()
	space.Put("i18n/messages.yaml", []byte("greeting: hi"))
	space.Put("i18n/messages_de.yaml", []byte("greeting: hallo"))

	c := app.New(
		app.WithID("root"),
		app.WithApplicationName("inspect"),
		app.WithReloadable(true),
		app.WithMetrics(m),
		app.WithResourceSpace("", space),
		app.WithMessages(
			message.Bundle{Locale: language.English, Messages: map[string]string{
				"greeting":       "Hello, {0}!",
				"items":          "{0,number} items",
				"validation.max": "{0} is too long",
			}},
			message.Bundle{Locale: language.German, Messages: map[string]string{
				"greeting": "Hallo, {0}!",
			}},
		),
		app.WithDefinitions(
			container.Definition{Name: "clock", Instance: "wall"},
			container.Definition{
				Name: "inspector",
				Type: reflect.TypeOf(&gohttp.Inspector{}),
				Factory: func(container.Lookup) (any, error) {
					return gohttp.NewInspector(reg).RequireToken(token), nil
				},
			},
		),
	)
	require.NoError(t, c.Refresh(context.Background()))
	t.Cleanup(func() { _ = c.Close() })

	in, err := container.Get[*gohttp.Inspector](c, "inspector")
	require.NoError(t, err)
	r := routing.New(nil)
	in.Routes(r)
	return &inspectorFixture{ctx: c, handler: r}
}

func (f *inspectorFixture) do(t *testing.T, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	var m map[string]any
	_ = json.Unmarshal(rr.Body.Bytes(), &m)
	return rr, m
}

func TestInspector_Context(t *testing.T) {
	f := newInspectorFixture(t)
	rr, body := f.do(t, http.MethodGet, "/context", "")
	require.Equal(t, http.StatusOK, rr.Code)

	data := body["data"].(map[string]any)
	assert.Equal(t, "root", data["id"])
	assert.Equal(t, "inspect", data["application"])
	assert.Equal(t, "active", data["status"])
	assert.EqualValues(t, 1, data["generation"])
	assert.ElementsMatch(t, []any{"en", "de"}, data["locales"])
}

func TestInspector_Health(t *testing.T) {
	f := newInspectorFixture(t)
	rr, _ := f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestInspector_Components(t *testing.T) {
	f := newInspectorFixture(t)

	rr, body := f.do(t, http.MethodGet, "/components", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []any{"clock", "inspector"}, body["data"])

	rr, body = f.do(t, http.MethodGet, "/components/clock", "")
	require.Equal(t, http.StatusOK, rr.Code)
	data := body["data"].(map[string]any)
	assert.Equal(t, "singleton", data["scope"])
	assert.Equal(t, "string", data["type"])

	rr, _ = f.do(t, http.MethodGet, "/components/nope", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestInspector_Message(t *testing.T) {
	f := newInspectorFixture(t)

	rr, body := f.do(t, http.MethodGet, "/messages/greeting?locale=de_DE&arg=Ada", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Hallo, Ada!", body["data"].(map[string]any)["text"])

	rr, body = f.do(t, http.MethodGet, "/messages/items?arg=1234", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "1,234 items", body["data"].(map[string]any)["text"])

	rr, _ = f.do(t, http.MethodGet, "/messages/absent", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr, body = f.do(t, http.MethodGet, "/messages/absent?default=fallback", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "fallback", body["data"].(map[string]any)["text"])
}

func TestInspector_Message_ValidationUsesCatalog(t *testing.T) {
	f := newInspectorFixture(t)
	long := strings.Repeat("k", 201)

	rr, _ := f.do(t, http.MethodGet, "/messages/"+long, "")
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	var bag struct {
		Errors map[string][]string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &bag))
	assert.Equal(t, []string{"key is too long"}, bag.Errors["key"])
}

func TestInspector_Render(t *testing.T) {
	f := newInspectorFixture(t)

	rr, body := f.do(t, http.MethodPost, "/messages/render",
		`{"codes":["missing","greeting"],"args":["Grace"],"locale":"en"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Hello, Grace!", body["data"].(map[string]any)["text"])

	rr, _ = f.do(t, http.MethodPost, "/messages/render", `{"locale":"en"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestInspector_Resources(t *testing.T) {
	f := newInspectorFixture(t)

	rr, body := f.do(t, http.MethodGet, "/resources?pattern=i18n/*.yaml", "")
	require.Equal(t, http.StatusOK, rr.Code)
	list := body["data"].([]any)
	require.Len(t, list, 2)
	assert.Equal(t, "i18n/messages.yaml", list[0].(map[string]any)["location"])

	rr, _ = f.do(t, http.MethodGet, "/resources?pattern=i18n/none.yaml", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr, _ = f.do(t, http.MethodGet, "/resources", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestInspector_RefreshAndMetrics(t *testing.T) {
	f := newInspectorFixture(t)

	rr, body := f.do(t, http.MethodPost, "/refresh", "")
	require.Equal(t, http.StatusAccepted, rr.Code)
	assert.EqualValues(t, 2, body["data"].(map[string]any)["generation"])
	assert.EqualValues(t, 2, f.ctx.Generation())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "refreshes_total")
}

func TestInspector_RefreshRequiresToken(t *testing.T) {
	f := newGuardedInspectorFixture(t, "s3cret")
	refresh := func(auth string) int {
		req := httptest.NewRequest(http.MethodPost, "/refresh", nil)
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		rr := httptest.NewRecorder()
		f.handler.ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusUnauthorized, refresh(""))
	assert.Equal(t, http.StatusUnauthorized, refresh("Bearer wrong"))
	assert.EqualValues(t, 1, f.ctx.Generation())

	assert.Equal(t, http.StatusAccepted, refresh("Bearer s3cret"))
	assert.EqualValues(t, 2, f.ctx.Generation())

	rr, _ := f.do(t, http.MethodGet, "/components", "")
	assert.Equal(t, http.StatusOK, rr.Code, "reads stay open")
}

func TestInspector_ClosedContext(t *testing.T) {
	f := newInspectorFixture(t)
	require.NoError(t, f.ctx.Close())

	rr, _ := f.do(t, http.MethodGet, "/components", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	rr, _ = f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
