package config

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Route is a fully resolved routing entry. Routes are immutable once built;
// code that needs a variant of a route (for example a rewritten target)
// copies the value rather than mutating a shared entry.
type Route struct {
	// Path is the inbound request path this route matches.
	Path string

	// TargetURL is the upstream URL requests are forwarded to.
	TargetURL string

	// Method is the normalized HTTP method this route accepts.
	Method string

	// ResponseType controls how the upstream response is relayed.
	ResponseType ResponseType

	// CustomHeaders are injected into every forwarded request.
	CustomHeaders map[string]string

	// ForwardRequestHeaders lists client header names copied upstream.
	ForwardRequestHeaders []string

	// ForwardResponseHeaders lists upstream header names copied back.
	ForwardResponseHeaders []string

	// Timeout bounds the upstream round trip.
	Timeout time.Duration

	// Retry governs retransmission of retriable upstream failures.
	Retry RetryPolicy
}

// WithTarget returns a copy of the route pointing at a different upstream
// URL and response type. The receiver is left untouched.
func (r Route) WithTarget(targetURL string, respType ResponseType) Route {
	r.TargetURL = targetURL
	r.ResponseType = respType
	return r
}

// RouteTable maps request paths to routes. A table is immutable after
// construction; configuration reloads build a fresh table and swap it in.
type RouteTable struct {
	routes map[string]Route
}

// NewRouteTable builds a route table from a validated configuration.
// Disabled endpoints are skipped. Construction fails if the configuration
// does not validate.
func NewRouteTable(cfg *Config) (*RouteTable, error) {
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	routes := make(map[string]Route, len(cfg.Endpoints))
	for _, e := range cfg.Endpoints {
		if !e.Enabled {
			continue
		}
		routes[e.Path] = Route{
			Path:                   e.Path,
			TargetURL:              e.TargetURL,
			Method:                 e.NormalizedMethod(),
			ResponseType:           e.ResponseType,
			CustomHeaders:          e.CustomHeaders,
			ForwardRequestHeaders:  e.ForwardRequestHeaders,
			ForwardResponseHeaders: e.ForwardResponseHeaders,
			Timeout:                e.Timeout(),
			Retry:                  cfg.ResolveRetry(&e),
		}
	}

	if len(routes) == 0 {
		return nil, fmt.Errorf("route table is empty: all endpoints are disabled")
	}

	return &RouteTable{routes: routes}, nil
}

// Lookup returns the route for a path, if one exists. The boolean reports
// whether the path is routed at all; callers distinguish an unknown path
// from a known path with the wrong method via Route.Method.
func (t *RouteTable) Lookup(path string) (Route, bool) {
	r, ok := t.routes[path]
	return r, ok
}

// Len returns the number of routed paths.
func (t *RouteTable) Len() int {
	return len(t.routes)
}

// Paths returns all routed paths in no particular order.
func (t *RouteTable) Paths() []string {
	paths := make([]string, 0, len(t.routes))
	for p := range t.routes {
		paths = append(paths, p)
	}
	return paths
}

// TableHolder provides lock-free access to the current route table and
// atomic replacement on configuration reload.
type TableHolder struct {
	current atomic.Pointer[RouteTable]
}

// NewTableHolder creates a holder seeded with the given table.
func NewTableHolder(t *RouteTable) *TableHolder {
	h := &TableHolder{}
	h.current.Store(t)
	return h
}

// Current returns the active route table.
func (h *TableHolder) Current() *RouteTable {
	return h.current.Load()
}

// Swap atomically replaces the active route table. In-flight requests keep
// the table they resolved against.
func (h *TableHolder) Swap(t *RouteTable) {
	h.current.Store(t)
}
