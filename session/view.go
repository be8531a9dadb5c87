package session

import "time"

// Authorizer is the subset of the adapter capability the derived view
// delegates to for role and expiry checks. A nil Authorizer means no adapter
// handle exists yet; all checks then answer false.
type Authorizer interface {
	IsAccessTokenExpired(grace time.Duration) bool
	HasRealmRole(role string) bool
	HasResourceRole(role, resource string) bool
}

// View is the read-only projection of a [Store] plus the derived convenience
// accessors. Views never mutate the store they wrap.
type View struct {
	store *Store
	auth  Authorizer
}

// NewView wraps store in a read-only view. auth may be nil.
func NewView(store *Store, auth Authorizer) *View {
	return &View{store: store, auth: auth}
}

func (v *View) Authenticated() bool { return v.store.Snapshot().Authenticated }
func (v *View) Ready() bool         { return v.store.Ready() }
func (v *View) Loading() bool       { return v.store.Loading() }
func (v *View) Err() error          { return v.store.Err() }
func (v *View) Profile() *Profile   { return v.store.Profile() }

func (v *View) AccessToken() string  { return v.store.Snapshot().AccessToken }
func (v *View) IDToken() string      { return v.store.Snapshot().IDToken }
func (v *View) RefreshToken() string { return v.store.Snapshot().RefreshToken }

// Subject is the stable user identifier from the token claims.
func (v *View) Subject() string { return v.store.Snapshot().Subject }

// IsTokenExpired reports whether the access token is expired according to the
// adapter's own clock-skew-adjusted notion of now, with zero grace period.
// Without an adapter handle or parsed access token claims it answers true.
func (v *View) IsTokenExpired() bool {
	if v.auth == nil || v.store.Snapshot().AccessTokenClaims == nil {
		return true
	}
	return v.auth.IsAccessTokenExpired(0)
}

// Username prefers the access token's preferred_username claim over the
// cached profile: the token is re-synced on every init and refresh, the
// profile only on explicit fetch.
func (v *View) Username() string {
	if c := v.store.Snapshot().AccessTokenClaims; c != nil && c.PreferredUsername != "" {
		return c.PreferredUsername
	}
	if p := v.store.Profile(); p != nil {
		return p.Username
	}
	return ""
}

// Email follows the same token-over-profile preference as Username.
func (v *View) Email() string {
	if c := v.store.Snapshot().AccessTokenClaims; c != nil && c.Email != "" {
		return c.Email
	}
	if p := v.store.Profile(); p != nil {
		return p.Email
	}
	return ""
}

// FullName prefers the profile: keycloak tokens may omit structured name
// fields while the profile endpoint reliably returns them. Falls back to the
// token's name claim.
func (v *View) FullName() string {
	if p := v.store.Profile(); p != nil && p.FirstName != "" && p.LastName != "" {
		return p.FirstName + " " + p.LastName
	}
	if c := v.store.Snapshot().AccessTokenClaims; c != nil {
		return c.Name
	}
	return ""
}

// FirstName prefers the profile field over the given_name claim.
func (v *View) FirstName() string {
	if p := v.store.Profile(); p != nil && p.FirstName != "" {
		return p.FirstName
	}
	if c := v.store.Snapshot().AccessTokenClaims; c != nil {
		return c.GivenName
	}
	return ""
}

// LastName prefers the profile field over the family_name claim.
func (v *View) LastName() string {
	if p := v.store.Profile(); p != nil && p.LastName != "" {
		return p.LastName
	}
	if c := v.store.Snapshot().AccessTokenClaims; c != nil {
		return c.FamilyName
	}
	return ""
}

// RealmRoles returns the synced realm role list, never nil.
func (v *View) RealmRoles() []string {
	if roles := v.store.Snapshot().RealmRoles; roles != nil {
		return roles
	}
	return []string{}
}

// ResourceRoles returns the role list for one resource key, never nil.
func (v *View) ResourceRoles(resource string) []string {
	if roles := v.store.Snapshot().ResourceRoles[resource]; roles != nil {
		return roles
	}
	return []string{}
}

// HasRealmRole delegates the realm role check to the adapter. Without an
// adapter handle the answer is false, not an error.
func (v *View) HasRealmRole(role string) bool {
	if v.auth == nil {
		return false
	}
	return v.auth.HasRealmRole(role)
}

// HasResourceRole delegates the resource role check to the adapter. An empty
// resource defaults to the configured client id (the adapter's own default).
func (v *View) HasResourceRole(role, resource string) bool {
	if v.auth == nil {
		return false
	}
	return v.auth.HasResourceRole(role, resource)
}
