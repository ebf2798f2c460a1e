package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// corsPolicy holds the precomputed header values applied to every
// response. The dashboard is served from a different origin than the
// API, and EventSource reconnects send Last-Event-ID, so that header
// has to survive preflight.
type corsPolicy struct {
	allowOrigin  string
	allowMethods string
	allowHeaders string
	maxAge       string
}

func newCORSPolicy() corsPolicy {
	return corsPolicy{
		allowOrigin: "*",
		allowMethods: strings.Join([]string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		}, ", "),
		allowHeaders: strings.Join([]string{
			"Content-Type", "Authorization", "Accept", "Origin",
			"Last-Event-ID", "X-Requested-With",
		}, ", "),
		maxAge: strconv.Itoa(86400),
	}
}

func (p corsPolicy) apply(set func(name, value string)) {
	set("Access-Control-Allow-Origin", p.allowOrigin)
	set("Access-Control-Allow-Methods", p.allowMethods)
	set("Access-Control-Allow-Headers", p.allowHeaders)
	set("Access-Control-Max-Age", p.maxAge)
}

// middleware sets CORS headers on every API response and short-circuits
// any preflight request that reaches huma's router.
func (p corsPolicy) middleware(ctx huma.Context, next func(huma.Context)) {
	p.apply(ctx.SetHeader)
	if ctx.Method() == http.MethodOptions {
		ctx.SetStatus(http.StatusNoContent)
		return
	}
	next(ctx)
}

// registerPreflight answers OPTIONS at the mux level. Huma middleware
// only runs for routes huma registered, so the mux needs its own
// catch-all for preflights to paths like /metrics.
func (p corsPolicy) registerPreflight(mux *http.ServeMux) {
	mux.HandleFunc("OPTIONS /", func(w http.ResponseWriter, r *http.Request) {
		p.apply(w.Header().Set)
		w.WriteHeader(http.StatusNoContent)
	})
}
