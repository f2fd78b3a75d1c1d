// Package route holds the static forwarding table of the gateway.
package route

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/samber/lo"
)

// ErrMissingParam is returned when an upstream template references a path
// parameter the inbound request did not supply.
var ErrMissingParam = errors.New("missing path parameter")

// Route describes one forwarding rule.
//
// Path and Upstream use echo's template syntax (":name" segments) and must
// name the same parameters.
type Route struct {
	Method   string
	Path     string // inbound path template
	Upstream string // upstream path template, relative to the backend base URL
	Auth     bool   // identity cookie required
	Body     bool   // JSON body required and forwarded
	Query    bool   // inbound query string appended verbatim
	Public   bool   // served to a cross-origin consumer
}

// String returns "METHOD /path" for logs.
func (r Route) String() string {
	return r.Method + " " + r.Path
}

// Params returns the parameter names of the inbound path template in order.
func (r Route) Params() []string {
	return templateParams(r.Path)
}

// Expand substitutes params into the upstream template. Values are path-escaped
// so a parameter can never introduce extra path segments.
func (r Route) Expand(params map[string]string) (string, error) {
	segments := strings.Split(r.Upstream, "/")
	for i, seg := range segments {
		name, ok := strings.CutPrefix(seg, ":")
		if !ok {
			continue
		}
		v, found := params[name]
		if !found || v == "" {
			return "", fmt.Errorf("%w %q for %s", ErrMissingParam, name, r.Upstream)
		}
		segments[i] = url.PathEscape(v)
	}
	return strings.Join(segments, "/"), nil
}

// Table is the full set of forwarding rules served by the gateway.
var Table = []Route{
	{Method: http.MethodGet, Path: "/api/bookings/:id", Upstream: "/bookings/:id", Auth: true, Query: true},
	{Method: http.MethodPatch, Path: "/api/bookings/:id", Upstream: "/bookings/:id", Auth: true, Body: true},
	{Method: http.MethodGet, Path: "/api/customers/:id/bookings", Upstream: "/customers/:id/bookings", Auth: true, Query: true},

	{Method: http.MethodGet, Path: "/api/offers", Upstream: "/offers", Auth: true, Query: true},
	{Method: http.MethodPost, Path: "/api/offers", Upstream: "/offers", Auth: true, Body: true},
	{Method: http.MethodGet, Path: "/api/offers/:id", Upstream: "/offers/:id", Auth: true, Query: true},
	{Method: http.MethodPut, Path: "/api/offers/:id", Upstream: "/offers/:id", Auth: true, Body: true},
	{Method: http.MethodDelete, Path: "/api/offers/:id", Upstream: "/offers/:id", Auth: true},

	{Method: http.MethodGet, Path: "/api/places/:id", Upstream: "/places/:id", Auth: true, Query: true},
	{Method: http.MethodPut, Path: "/api/places/:id", Upstream: "/places/:id", Auth: true, Body: true},

	{Method: http.MethodGet, Path: "/api/public/coaches", Upstream: "/coaches", Query: true, Public: true},
	{Method: http.MethodGet, Path: "/api/public/coaches/:slug", Upstream: "/coaches/:slug", Query: true, Public: true},

	{Method: http.MethodPost, Path: "/api/admin/signup", Upstream: "/admin/users/signup", Body: true},
}

// Validate checks that every route is internally consistent and that no
// method/path pair is declared twice.
func Validate(routes []Route) error {
	seen := make(map[string]bool, len(routes))
	for _, r := range routes {
		if r.Method == "" || !strings.HasPrefix(r.Path, "/") || !strings.HasPrefix(r.Upstream, "/") {
			return fmt.Errorf("route %s: method, path and upstream are required", r)
		}
		if seen[r.String()] {
			return fmt.Errorf("route %s: declared twice", r)
		}
		seen[r.String()] = true

		in, up := r.Params(), templateParams(r.Upstream)
		if missing, _ := lo.Difference(up, in); len(missing) > 0 {
			return fmt.Errorf("route %s: upstream uses undeclared params %v", r, missing)
		}
	}
	return nil
}

// PublicMethods maps every public path to the sorted methods declared for it.
func PublicMethods(routes []Route) map[string][]string {
	public := lo.Filter(routes, func(r Route, _ int) bool { return r.Public })
	grouped := lo.GroupBy(public, func(r Route) string { return r.Path })
	return lo.MapValues(grouped, func(rs []Route, _ string) []string {
		methods := lo.Uniq(lo.Map(rs, func(r Route, _ int) string { return r.Method }))
		sort.Strings(methods)
		return methods
	})
}

func templateParams(tmpl string) []string {
	var names []string
	for _, seg := range strings.Split(tmpl, "/") {
		if name, ok := strings.CutPrefix(seg, ":"); ok {
			names = append(names, name)
		}
	}
	return names
}
