package guard

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/MrEthical07/portalAuth/permission"
	"github.com/MrEthical07/portalAuth/session"
	"github.com/go-chi/chi/v5"
)

const (
	maxRedirectHops = 8
	titleSuffix     = "DVSS-PPA"
)

var (
	// ErrInvalidTable is returned for route declarations that cannot be compiled.
	ErrInvalidTable = errors.New("invalid route table")
	// ErrRedirectLoop is returned by Navigate when redirects do not settle.
	ErrRedirectLoop = errors.New("route redirect loop")
)

// Meta is the per-route metadata as declared. Unset fields inherit from
// the parent route; set fields override it.
type Meta struct {
	Title        string            `yaml:"title"`
	Public       *bool             `yaml:"public"`
	RequiresAuth *bool             `yaml:"requiresAuth"`
	LoginView    *bool             `yaml:"loginView"`
	Roles        []permission.Role `yaml:"roles"`
	Permissions  []string          `yaml:"permissions"`
}

// RouteSpec declares a route and its children. Child paths without a
// leading slash are relative to the parent.
type RouteSpec struct {
	Path     string      `yaml:"path"`
	Name     string      `yaml:"name"`
	Redirect string      `yaml:"redirect"`
	Meta     Meta        `yaml:"meta"`
	Children []RouteSpec `yaml:"children"`
}

// Paths names the locations the guard's redirects point to.
type Paths struct {
	Login     string `yaml:"login"`
	Forbidden string `yaml:"forbidden"`
	Dashboard string `yaml:"dashboard"`
	NotFound  string `yaml:"notFound"`
}

// DefaultPaths are the console's standard locations.
func DefaultPaths() Paths {
	return Paths{
		Login:     "/login",
		Forbidden: "/403",
		Dashboard: "/admin/dashboard",
		NotFound:  "/404",
	}
}

type entry struct {
	pattern  string
	name     string
	title    string
	redirect string
	req      Requirement
}

// Table is a compiled, immutable route table.
//
//	Docs: docs/navigation.md
type Table struct {
	entries []entry
	// routes matches locations; index maps its patterns back to entries.
	routes *chi.Mux
	index  map[string]int
	paths  Paths
}

// NewTable compiles specs. Permission tags must be known to catalog (a nil
// catalog accepts any tag) and every location in paths must resolve.
func NewTable(specs []RouteSpec, paths Paths, catalog *permission.Catalog) (*Table, error) {
	t := &Table{paths: paths, routes: chi.NewMux(), index: map[string]int{}}
	names := map[string]struct{}{}
	if err := t.compile(specs, "/", Meta{}, catalog, names); err != nil {
		return nil, err
	}

	if err := t.checkPaths(); err != nil {
		return nil, err
	}
	return t, nil
}

// WithPaths returns a copy of t redirecting to paths instead.
func (t *Table) WithPaths(paths Paths) (*Table, error) {
	out := &Table{entries: t.entries, routes: t.routes, index: t.index, paths: paths}
	if err := out.checkPaths(); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *Table) checkPaths() error {
	for _, p := range []string{t.paths.Login, t.paths.Forbidden, t.paths.Dashboard, t.paths.NotFound} {
		if p == "" {
			return fmt.Errorf("%w: redirect locations must all be set", ErrInvalidTable)
		}
		if _, ok := t.match(p); !ok {
			return fmt.Errorf("%w: location %q has no route", ErrInvalidTable, p)
		}
	}
	return nil
}

func (t *Table) compile(specs []RouteSpec, base string, parent Meta, catalog *permission.Catalog, names map[string]struct{}) error {
	for _, spec := range specs {
		if spec.Path == "" {
			return fmt.Errorf("%w: route %q has empty path", ErrInvalidTable, spec.Name)
		}
		full := spec.Path
		if !strings.HasPrefix(full, "/") {
			full = path.Join(base, full)
		}
		full = cleanPath(full)

		if spec.Name != "" {
			if _, dup := names[spec.Name]; dup {
				return fmt.Errorf("%w: duplicate route name %q", ErrInvalidTable, spec.Name)
			}
			names[spec.Name] = struct{}{}
		}
		if err := catalog.Check(spec.Meta.Permissions...); err != nil {
			return fmt.Errorf("%w: route %s: %v", ErrInvalidTable, full, err)
		}
		for _, r := range spec.Meta.Roles {
			if !r.Valid() {
				return fmt.Errorf("%w: route %s: %v", ErrInvalidTable, full, permission.ErrUnknownRole)
			}
		}

		meta := mergeMeta(parent, spec.Meta)
		if err := t.register(full, len(t.entries)); err != nil {
			return err
		}
		t.entries = append(t.entries, entry{
			pattern:  full,
			name:     spec.Name,
			title:    meta.Title,
			redirect: spec.Redirect,
			req:      requirementOf(meta),
		})

		if err := t.compile(spec.Children, full, meta, catalog, names); err != nil {
			return err
		}
	}
	return nil
}

// mergeMeta overlays child on parent key by key.
func mergeMeta(parent, child Meta) Meta {
	out := parent
	out.Title = child.Title
	if child.Public != nil {
		out.Public = child.Public
	}
	if child.RequiresAuth != nil {
		out.RequiresAuth = child.RequiresAuth
	}
	if child.LoginView != nil {
		out.LoginView = child.LoginView
	}
	if child.Roles != nil {
		out.Roles = child.Roles
	}
	if child.Permissions != nil {
		out.Permissions = child.Permissions
	}
	return out
}

func requirementOf(m Meta) Requirement {
	return Requirement{
		Public:       m.Public != nil && *m.Public,
		RequiresAuth: m.RequiresAuth != nil && *m.RequiresAuth,
		LoginView:    m.LoginView != nil && *m.LoginView,
		Roles:        append([]permission.Role(nil), m.Roles...),
		Permissions:  append([]string(nil), m.Permissions...),
	}
}

// Paths returns the redirect locations.
func (t *Table) Paths() Paths {
	return t.paths
}

// Resolve maps a requested location (path plus optional query) to its
// route. Static routes win over parameterised ones.
func (t *Table) Resolve(location string) (Route, bool) {
	e, params, ok := t.lookup(cleanPath(stripLocation(location)))
	if !ok {
		return Route{}, false
	}
	return Route{
		Name:        e.name,
		Title:       e.title,
		Path:        e.pattern,
		FullPath:    location,
		Params:      params,
		Requirement: e.req,
	}, true
}

func (t *Table) match(p string) (*entry, bool) {
	e, _, ok := t.lookup(cleanPath(p))
	return e, ok
}

var matched = http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})

// register adds pattern to the matcher under entry idx. ":name" segments
// become chi parameters. The first declaration of a pattern wins.
func (t *Table) register(pattern string, idx int) (err error) {
	if strings.ContainsAny(pattern, "{}*") {
		return fmt.Errorf("%w: route %s: reserved character in path", ErrInvalidTable, pattern)
	}
	segments := strings.Split(pattern, "/")
	for i, seg := range segments {
		name, ok := strings.CutPrefix(seg, ":")
		if !ok {
			continue
		}
		if name == "" {
			return fmt.Errorf("%w: route %s: unnamed parameter", ErrInvalidTable, pattern)
		}
		segments[i] = "{" + name + "}"
	}
	key := strings.Join(segments, "/")
	if _, dup := t.index[key]; dup {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: route %s: %v", ErrInvalidTable, pattern, r)
		}
	}()
	t.routes.Get(key, matched)
	t.index[key] = idx
	return nil
}

// lookup resolves a clean path. Static segments win over parameters.
func (t *Table) lookup(p string) (*entry, map[string]string, bool) {
	rctx := chi.NewRouteContext()
	i, ok := t.index[t.routes.Find(rctx, http.MethodGet, p)]
	if !ok {
		return nil, nil, false
	}
	var params map[string]string
	if keys := rctx.URLParams.Keys; len(keys) > 0 {
		params = make(map[string]string, len(keys))
		for j, k := range keys {
			params[k] = rctx.URLParams.Values[j]
		}
	}
	return &t.entries[i], params, true
}

// Outcome is the result of a navigation attempt.
type Outcome struct {
	// Route is the route the guard evaluated, after following redirects.
	Route  Route
	Action Action
	// Location is where the caller must go instead, empty when the
	// navigation is allowed as requested.
	Location string
	NotFound bool
}

// Title returns the page title for an allowed navigation.
func (o Outcome) Title() string {
	if o.Route.Title == "" {
		return titleSuffix
	}
	return o.Route.Title + " - " + titleSuffix
}

// Navigate follows declared redirects for location, runs [Decide] against
// state once, and translates the action into a concrete location.
func (t *Table) Navigate(location string, state session.State) (Outcome, error) {
	current := location
	for hop := 0; hop <= maxRedirectHops; hop++ {
		e, _, ok := t.lookup(cleanPath(stripLocation(current)))
		if !ok {
			return Outcome{Location: t.paths.NotFound, NotFound: true, Action: Allow()}, nil
		}
		if e.redirect != "" {
			current = e.redirect
			continue
		}

		route, _ := t.Resolve(current)
		action := Decide(route, state)
		out := Outcome{Route: route, Action: action}
		switch action.Kind {
		case ActionRedirectLogin:
			out.Location = t.paths.Login + "?redirect=" + url.QueryEscape(action.Target)
		case ActionRedirectForbidden:
			out.Location = t.paths.Forbidden
		case ActionRedirectDashboard:
			out.Location = t.paths.Dashboard
		default:
			if current != location {
				out.Location = current
			}
		}
		return out, nil
	}
	return Outcome{}, fmt.Errorf("%w: %s", ErrRedirectLoop, location)
}

// Routes returns the declared patterns in declaration order.
func (t *Table) Routes() []string {
	out := make([]string, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e.pattern)
	}
	return out
}

func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// stripLocation drops the query and fragment of a location.
func stripLocation(location string) string {
	p, _, _ := strings.Cut(location, "#")
	p, _, _ = strings.Cut(p, "?")
	return p
}
