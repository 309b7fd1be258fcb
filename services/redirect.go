package services

import (
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"go.pilab.hu/gtgram/domain"
)

// Navigator performs a navigation to a route. In the server it issues an
// HTTP redirect; tests record the calls.
type Navigator interface {
	Navigate(route string)
}

// NavigatorFunc adapts a function to the Navigator interface.
type NavigatorFunc func(route string)

func (f NavigatorFunc) Navigate(route string) { f(route) }

// Routes describes the route layout the orchestrator corrects against.
type Routes struct {
	// Login is the unauthenticated entry point.
	Login string
	// Home is the default authenticated landing route.
	Home string
	// Entry routes are shown to unauthenticated users; authenticated
	// users landing on one are moved to Home. Matched exactly.
	Entry []string
	// Protected route prefixes require authentication.
	Protected []string
}

// DefaultRoutes returns the application's route layout.
func DefaultRoutes() Routes {
	return Routes{
		Login: "/login",
		Home:  "/home",
		Entry: []string{"/", "/login", "/register"},
		Protected: []string{
			"/home",
			"/profile",
			"/post",
			"/create-post",
		},
	}
}

// RedirectOrchestrator decides, per authentication state transition,
// whether the current page must navigate elsewhere, and navigates at
// most once per transition. Decisions are idempotent: a computed
// destination equal to the current route never fires.
//
// The reconciler commits state synchronously before notifying observers,
// so no settle delay is needed before acting on a transition.
type RedirectOrchestrator struct {
	routes Routes
	nav    Navigator

	mu   sync.Mutex
	last State
}

// NewRedirectOrchestrator creates an orchestrator in the unknown state.
func NewRedirectOrchestrator(routes Routes, nav Navigator) *RedirectOrchestrator {
	return &RedirectOrchestrator{
		routes: routes,
		nav:    nav,
		last:   StateUnknown,
	}
}

// Destination computes the corrected route for the given state and
// current route. The second return value is false when no navigation is
// needed.
func (o *RedirectOrchestrator) Destination(state State, current string) (string, bool) {
	var dest string
	switch state {
	case StateAuthenticated:
		if o.isEntry(current) {
			dest = o.routes.Home
		}
	case StateUnauthenticated:
		if o.requiresAuth(current) {
			dest = o.routes.Login
		}
	}
	if dest == "" || dest == current {
		return "", false
	}
	return dest, true
}

// Observe applies a state transition for the page currently at route.
// Repeated observations of the same state do not navigate again.
func (o *RedirectOrchestrator) Observe(state State, route string) {
	o.mu.Lock()
	prev := o.last
	if state == prev {
		o.mu.Unlock()
		return
	}
	o.last = state
	o.mu.Unlock()

	// Logout always lands on the login route, wherever the user was.
	if prev == StateAuthenticated && state == StateUnauthenticated {
		if route != o.routes.Login {
			log.Debug().Str("from", route).Str("to", o.routes.Login).Msg("Redirect: logout")
			o.nav.Navigate(o.routes.Login)
		}
		return
	}

	if dest, ok := o.Destination(state, route); ok {
		log.Debug().Str("from", route).Str("to", dest).Str("state", state.String()).Msg("Redirect: state transition")
		o.nav.Navigate(dest)
	}
}

// Attach subscribes the orchestrator to the reconciler's state. route
// reports the page currently displayed. The returned function cancels
// the subscription.
func (o *RedirectOrchestrator) Attach(r *Reconciler, route func() string) func() {
	return r.Watch(func(state State, _ *domain.Session) {
		o.Observe(state, route())
	})
}

func (o *RedirectOrchestrator) isEntry(route string) bool {
	for _, e := range o.routes.Entry {
		if route == e {
			return true
		}
	}
	return false
}

func (o *RedirectOrchestrator) requiresAuth(route string) bool {
	for _, p := range o.routes.Protected {
		if route == p || strings.HasPrefix(route, p+"/") {
			return true
		}
	}
	return false
}
