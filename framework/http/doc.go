// Package http provides request and response helpers and the admin
// inspector served over an application context.
//
// # Request
//
// Request wraps *http.Request:
//
//	req := gohttp.NewRequest(r)
//
//	var payload struct {
//	    Codes []string `json:"codes"`
//	}
//	if err := req.Bind(&payload); err != nil { ... }
//
//	page  := req.Query("page", "1")
//	name  := req.RouteParam("name")
//	tag   := req.Locale(language.English) // ?locale= then Accept-Language
//
// # Response
//
// Response writes JSON envelopes and maps context failures onto status codes:
//
//	res := gohttp.NewResponse(w)
//	res.Success(names)             // 200 {"data": ...}
//	res.FromError(err)             // 404 / 409 / 422 / 503 / 500
//
// # Inspector
//
// Inspector exposes one context level over HTTP:
//
//	GET  /healthz
//	GET  /context
//	GET  /components
//	GET  /components/{name}
//	GET  /messages/{key}?locale=&arg=&default=
//	POST /messages/render
//	GET  /resources?pattern=
//	POST /refresh
//	GET  /metrics
package http
