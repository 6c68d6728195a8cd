// Package auth compares client-supplied credentials against the single
// configured (user, password) pair from a Config.
//
// There is no multi-user store, bcrypt hashing, per-user connection limit
// or failed-login lockout here - just a small struct with an
// Authenticate-style entry point returning a result value rather than a
// bare bool, so callers get a reason string for logging even on success.
package auth

import "crypto/subtle"

// Result is the outcome of one Authenticate call.
type Result struct {
	OK      bool
	Message string
}

// Service holds the single configured credential for a session.
type Service struct {
	user     string
	password []byte
}

// NewService builds a Service for the given configured user/password.
func NewService(user string, password []byte) *Service {
	return &Service{user: user, password: password}
}

// Authenticate compares user and password against the configured
// credential using constant-time comparison. There is no stored hash to
// verify against here - the configured secret is whatever the embedder
// passed at construction time, so there is nothing for a hashing scheme to
// buy; see DESIGN.md for the full rationale.
func (s *Service) Authenticate(user, password string) Result {
	if !s.userMatches(user) {
		return Result{OK: false, Message: "unknown user"}
	}
	if subtle.ConstantTimeCompare(s.password, []byte(password)) != 1 {
		return Result{OK: false, Message: "login incorrect"}
	}
	return Result{OK: true, Message: "authentication successful"}
}

// UserMatches reports whether user equals the configured username, using
// the same constant-time comparison (the engine needs this on its own, to
// decide 530 vs phase-advance on the USER line before a password has even
// been seen - see dispatchNeedUser in server.go).
func (s *Service) UserMatches(user string) bool { return s.userMatches(user) }

func (s *Service) userMatches(user string) bool {
	a := []byte(s.user)
	b := []byte(user)
	if len(a) != len(b) {
		// A length mismatch returns false before any byte comparison:
		// the configured username's length is not guarded the way the
		// password is.
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}
