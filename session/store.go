// Package session holds the shared authentication state mirrored from the
// keycloak adapter. The [Store] is the single mutable record, the [View]
// exposes it read-only together with the derived convenience accessors.
package session

import (
	"sync"

	"github.com/sessionware/keycloak-session/util/jwt"
)

// Profile is the richer user record returned by keycloak's userinfo
// endpoint. It is only populated by an explicit profile fetch, never as a
// byproduct of init.
type Profile struct {
	ID            string         `mapstructure:"sub" json:"id,omitempty"`
	Username      string         `mapstructure:"preferred_username" json:"username,omitempty"`
	Email         string         `mapstructure:"email" json:"email,omitempty"`
	FirstName     string         `mapstructure:"given_name" json:"firstName,omitempty"`
	LastName      string         `mapstructure:"family_name" json:"lastName,omitempty"`
	EmailVerified bool           `mapstructure:"email_verified" json:"emailVerified,omitempty"`
	Enabled       bool           `mapstructure:"enabled" json:"enabled,omitempty"`
	Attributes    map[string]any `mapstructure:",remain" json:"attributes,omitempty"`
}

// Snapshot is the adapter-shaped input to [Store.SyncFrom]: the fixed set of
// fields copied from the adapter on every state-sync point. Missing fields
// are simply treated as absent.
type Snapshot struct {
	Authenticated bool

	AccessToken  string
	IDToken      string
	RefreshToken string

	AccessTokenClaims  *jwt.Claims
	IDTokenClaims      *jwt.Claims
	RefreshTokenClaims *jwt.Claims

	Subject       string
	RealmRoles    []string
	ResourceRoles map[string][]string

	// Negotiated protocol metadata, informational only.
	ResponseMode string
	Flow         string
}

// Store is the authentication state store. It is created once per facade and
// mutated only by the facade at well-defined points; everyone else reads it
// through a [View] or a [Snapshot] copy.
type Store struct {
	mu sync.RWMutex

	snap    Snapshot
	ready   bool
	loading bool
	err     error
	profile *Profile
}

// New returns a fresh store with all fields at their zero defaults.
func New() *Store {
	return &Store{}
}

// SyncFrom copies the adapter snapshot into the store atomically. A snapshot
// without an access token can never be authenticated, whatever the adapter
// reported.
func (s *Store) SyncFrom(snap Snapshot) {
	if snap.AccessToken == "" {
		snap.Authenticated = false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap
}

// SetLoading flags an init or token-refresh operation as in flight.
func (s *Store) SetLoading(loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = loading
}

// SetReady marks the initial handshake as completed. Readiness is monotonic:
// once set it stays set for the lifetime of the store.
func (s *Store) SetReady() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = true
}

// SetError records the last failure observed by any operation, overwriting
// the previous one.
func (s *Store) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// ClearError resets the recorded failure, called at the start of a new init.
func (s *Store) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = nil
}

// SetProfile stores the result of a successful profile fetch.
func (s *Store) SetProfile(p *Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = p
}

// MarkLoggedOut reflects an adapter logout event: the session is no longer
// authenticated, tokens and profile are gone. Readiness is untouched.
func (s *Store) MarkLoggedOut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = Snapshot{ResponseMode: s.snap.ResponseMode, Flow: s.snap.Flow}
	s.profile = nil
}

// MarkUnauthenticated clears only the authenticated flag, used when a
// background token refresh fails.
func (s *Store) MarkUnauthenticated() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Authenticated = false
}

// Snapshot returns a copy of the current token state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Ready reports whether the initial handshake has completed. Ready does not
// mean authenticated.
func (s *Store) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// Loading reports whether an init or token-refresh operation is in flight.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Err returns the last failure observed by any operation, or nil.
func (s *Store) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Profile returns the last fetched user profile, or nil if none was fetched.
func (s *Store) Profile() *Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile
}
