package authflow

// GuardOutcome is what a route guard decided to do with a navigation.
type GuardOutcome int

const (
	// GuardPending restoration has not resolved; show a loading indicator,
	// never a redirect flash
	GuardPending GuardOutcome = iota
	// GuardRender the requested content may render
	GuardRender
	// GuardRedirect navigation must move to Decision.Target
	GuardRedirect
)

// GuardDecision is the result of evaluating a guard against a session
// snapshot.
type GuardDecision struct {
	Outcome GuardOutcome
	Target  string
}

// GuardRoutes names the two redirect targets the guards can choose.
type GuardRoutes struct {
	// Login is where protected content sends anonymous users
	Login string
	// Landing is where public-only content sends admitted users
	Landing string
}

// RouteGuard evaluates navigation against a session snapshot. Decisions are
// pure functions of {AuthReady, User}; re-evaluate on every navigation.
type RouteGuard struct {
	Routes GuardRoutes
}

// NewRouteGuard uses /login and / unless told otherwise.
func NewRouteGuard(routes GuardRoutes) RouteGuard {
	if routes.Login == "" {
		routes.Login = "/login"
	}
	if routes.Landing == "" {
		routes.Landing = "/"
	}
	return RouteGuard{Routes: routes}
}

// Protected gates authenticated content: anonymous users are sent to login.
func (g RouteGuard) Protected(s Session) GuardDecision {
	if !s.AuthReady {
		return GuardDecision{Outcome: GuardPending}
	}
	if s.User == nil {
		return GuardDecision{Outcome: GuardRedirect, Target: g.Routes.Login}
	}
	return GuardDecision{Outcome: GuardRender}
}

// PublicOnly gates the credential screens: a fully admitted user is sent to
// the landing page. A pending or blocked user holds a token but is not yet
// admitted, so the public screens stay reachable for them.
func (g RouteGuard) PublicOnly(s Session) GuardDecision {
	if !s.AuthReady {
		return GuardDecision{Outcome: GuardPending}
	}
	if s.User != nil && s.User.Admitted() {
		return GuardDecision{Outcome: GuardRedirect, Target: g.Routes.Landing}
	}
	return GuardDecision{Outcome: GuardRender}
}
