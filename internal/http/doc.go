// Package http provides the HTTP handlers and middleware for the booking API.
//
// The router exposes the following endpoints:
//   - POST /login: issues a session token. Body: {"email","password"}. The
//     token is returned in the body and mirrored in the `X-Session-Token`
//     header and a `session_token` cookie.
//   - POST /logout: revokes the current session token extracted from the
//     Authorization header or session cookie. Returns 204 No Content and
//     clears the cookie.
//   - POST /sessions, GET /sessions/{id}, PUT /sessions/{id}: training
//     session management exchanging the `sessionDTO` payload defined in
//     session_handler.go. Rejected attempts return the closed reason code in
//     the error body; conflicts and state violations render as 409.
//   - POST /sessions/{id}/cancel, /start, /complete: lifecycle transitions.
//   - POST/DELETE /sessions/{id}/members/{memberID}: roster edits.
//   - GET /availability?trainer_id=&start=&end=: side-effect free conflict
//     probe for live form feedback. A timed-out probe returns 503, never a
//     guess.
//   - GET /analytics?from=&to=&trainer_id=: read-side rollups.
//
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth.
package http
