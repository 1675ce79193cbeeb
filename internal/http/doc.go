// Package http provides the HTTP handlers and middleware for the shift
// rotation API.
//
// The router exposes the following endpoints:
//   - POST /sessions: issues a session token. Body: {"email","password"}.
//     The token is also surfaced via the X-Session-Token header and a
//     session_token cookie.
//   - POST /sessions/refresh: rotates the caller's token and extends its
//     validity window; the old token stops working immediately.
//   - DELETE /sessions/current: revokes the caller's own session.
//   - DELETE /sessions/{token}: administrator revocation of any session.
//   - /users, /teams, /shifts, /patterns: CRUD catalogs exchanging the DTOs
//     defined next to their handlers. Reads are open to any authenticated
//     principal; mutations require admin privileges. GET /teams/{id}/half-teams
//     lists the half-teams under a parent.
//   - GET /patterns/{id}/preview?from=&to=: evaluates a pattern over a range
//     without touching assignments.
//   - /assignments: binds users to teams and patterns; create and update
//     responses carry the overlapping assignments as warnings. Lifecycle
//     verbs: POST /assignments/{id}/cancel, /suspend, /resume.
//   - /exceptions: date-scoped overrides with the approval workflow verbs
//     POST /exceptions/{id}/submit, /approve, /reject, /deactivate.
//   - GET /schedule/users/{id}?from=&to=: the composed per-day schedule.
//   - GET /schedule/teams/{id}?date=: the single-date team roster.
//
// Request and response DTOs live alongside their handlers so tests and
// documentation share the same ground truth. Dates on the wire use the ISO
// form 2006-01-02; timestamps use RFC 3339.
package http
