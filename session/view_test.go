package session_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sessionware/keycloak-session/session"
	"github.com/sessionware/keycloak-session/util/jwt"
	testutil "github.com/sessionware/keycloak-session/util/test"
)

// fakeAuthorizer answers role and expiry checks with canned values.
type fakeAuthorizer struct {
	expired    bool
	realmRoles map[string]bool
	// resource role checks record the resource they were asked about
	resourceRoles map[string]bool
	askedResource string
}

func (f *fakeAuthorizer) IsAccessTokenExpired(grace time.Duration) bool { return f.expired }
func (f *fakeAuthorizer) HasRealmRole(role string) bool                 { return f.realmRoles[role] }
func (f *fakeAuthorizer) HasResourceRole(role, resource string) bool {
	f.askedResource = resource
	return f.resourceRoles[role]
}

func storeWithClaims(t *testing.T, claims map[string]any) *session.Store {
	t.Helper()

	token := testutil.JWTWithClaims(claims)
	parsed, err := jwt.Parse(token)
	require.NoError(t, err)

	store := session.New()
	store.SyncFrom(session.Snapshot{
		Authenticated:     true,
		AccessToken:       token,
		AccessTokenClaims: parsed,
		Subject:           parsed.Sub,
		RealmRoles:        parsed.RealmAccess.Roles,
	})
	return store
}

func TestUsername_TokenClaimWinsOverProfile(t *testing.T) {
	store := storeWithClaims(t, map[string]any{
		"exp":                time.Now().Add(time.Hour).Unix(),
		"preferred_username": "tok_user",
	})
	store.SetProfile(&session.Profile{Username: "prof_user"})
	view := session.NewView(store, nil)

	require.Equal(t, "tok_user", view.Username())
}

func TestUsername_FallsBackToProfile(t *testing.T) {
	store := storeWithClaims(t, map[string]any{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	store.SetProfile(&session.Profile{Username: "prof_user"})
	view := session.NewView(store, nil)

	require.Equal(t, "prof_user", view.Username())
}

func TestEmail_TokenClaimWinsOverProfile(t *testing.T) {
	store := storeWithClaims(t, map[string]any{
		"exp":   time.Now().Add(time.Hour).Unix(),
		"email": "tok@example.org",
	})
	store.SetProfile(&session.Profile{Email: "prof@example.org"})
	view := session.NewView(store, nil)

	require.Equal(t, "tok@example.org", view.Email())
}

func TestFullName_ProfileWinsOverTokenNameClaim(t *testing.T) {
	store := storeWithClaims(t, map[string]any{
		"exp":  time.Now().Add(time.Hour).Unix(),
		"name": "A. L.",
	})
	store.SetProfile(&session.Profile{FirstName: "Ada", LastName: "Lovelace"})
	view := session.NewView(store, nil)

	require.Equal(t, "Ada Lovelace", view.FullName())
}

func TestFullName_FallsBackToNameClaim(t *testing.T) {
	store := storeWithClaims(t, map[string]any{
		"exp":  time.Now().Add(time.Hour).Unix(),
		"name": "A. L.",
	})
	view := session.NewView(store, nil)

	// A profile with only one name component is not enough.
	require.Equal(t, "A. L.", view.FullName())
	store.SetProfile(&session.Profile{FirstName: "Ada"})
	require.Equal(t, "A. L.", view.FullName())
}

func TestFirstAndLastName_ProfileWinsOverClaims(t *testing.T) {
	store := storeWithClaims(t, map[string]any{
		"exp":         time.Now().Add(time.Hour).Unix(),
		"given_name":  "Augusta",
		"family_name": "King",
	})
	view := session.NewView(store, nil)

	require.Equal(t, "Augusta", view.FirstName())
	require.Equal(t, "King", view.LastName())

	store.SetProfile(&session.Profile{FirstName: "Ada", LastName: "Lovelace"})
	require.Equal(t, "Ada", view.FirstName())
	require.Equal(t, "Lovelace", view.LastName())
}

func TestRoles_EmptySlicesNeverNil(t *testing.T) {
	view := session.NewView(session.New(), nil)

	require.NotNil(t, view.RealmRoles())
	require.Empty(t, view.RealmRoles())
	require.NotNil(t, view.ResourceRoles("app"))
	require.Empty(t, view.ResourceRoles("app"))
}

func TestRoleChecks_FalseWithoutAdapterHandle(t *testing.T) {
	view := session.NewView(session.New(), nil)

	require.False(t, view.HasRealmRole("admin"))
	require.False(t, view.HasResourceRole("viewer", "app"))
	require.True(t, view.IsTokenExpired())
}

func TestRoleChecks_DelegateToAuthorizer(t *testing.T) {
	store := storeWithClaims(t, map[string]any{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	auth := &fakeAuthorizer{
		realmRoles:    map[string]bool{"admin": true},
		resourceRoles: map[string]bool{"viewer": true},
	}
	view := session.NewView(store, auth)

	require.True(t, view.HasRealmRole("admin"))
	require.False(t, view.HasRealmRole("guest"))
	require.True(t, view.HasResourceRole("viewer", "app"))
	require.Equal(t, "app", auth.askedResource)
	require.False(t, view.IsTokenExpired())

	auth.expired = true
	require.True(t, view.IsTokenExpired())
}

func TestIsTokenExpired_TrueWithoutParsedClaims(t *testing.T) {
	// Authorizer present but no synced claims: the view answers true
	// without consulting the authorizer.
	view := session.NewView(session.New(), &fakeAuthorizer{expired: false})
	require.True(t, view.IsTokenExpired())
}

func TestResourceRoles_FromSnapshot(t *testing.T) {
	store := session.New()
	store.SyncFrom(session.Snapshot{
		Authenticated: true,
		AccessToken:   testutil.JWT(time.Minute),
		RealmRoles:    []string{"admin", "user"},
		ResourceRoles: map[string][]string{"app": {"viewer"}},
	})
	view := session.NewView(store, nil)

	require.Equal(t, []string{"admin", "user"}, view.RealmRoles())
	require.Equal(t, []string{"viewer"}, view.ResourceRoles("app"))
	require.Empty(t, view.ResourceRoles("other"))
}
