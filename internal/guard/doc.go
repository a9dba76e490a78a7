// Package guard enforces access policies on HTTP routes.
//
// A Guard binds a session.Resolver to an authz.Evaluator and wraps
// handlers in one of two enforcement styles. API guards answer denials
// with a JSON error body: 401 when no valid session is present, 403 when
// a session exists but lacks the required access. Page guards answer
// denials with a 302: unauthenticated visitors go to the login page,
// authenticated ones to the landing page for their highest role.
//
// Session resolution failures never leak transport detail to the
// client. An expired or malformed credential is treated exactly like an
// absent one and only distinguished in logs and metrics.
//
// Both http.Handler wrappers and gin middleware adapters are provided.
package guard
