package session_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sessionware/keycloak-session/session"
	"github.com/sessionware/keycloak-session/util/jwt"
	testutil "github.com/sessionware/keycloak-session/util/test"
)

func TestSyncFrom_NeverAuthenticatedWithoutAccessToken(t *testing.T) {
	store := session.New()

	// An adapter snapshot claiming authentication without a token must
	// not be believed.
	store.SyncFrom(session.Snapshot{Authenticated: true})
	require.False(t, store.Snapshot().Authenticated)

	token := testutil.JWT(time.Minute)
	store.SyncFrom(session.Snapshot{Authenticated: true, AccessToken: token})
	require.True(t, store.Snapshot().Authenticated)

	store.SyncFrom(session.Snapshot{Authenticated: true})
	require.False(t, store.Snapshot().Authenticated)
}

func TestReadyIsMonotonic(t *testing.T) {
	store := session.New()
	require.False(t, store.Ready())

	store.SetReady()
	require.True(t, store.Ready())

	// No later mutation resets readiness.
	store.SyncFrom(session.Snapshot{})
	store.MarkLoggedOut()
	store.MarkUnauthenticated()
	store.SetReady()
	require.True(t, store.Ready())
}

func TestMarkLoggedOut(t *testing.T) {
	store := session.New()
	token := testutil.JWT(time.Minute)
	claims, err := jwt.Parse(token)
	require.NoError(t, err)

	store.SyncFrom(session.Snapshot{
		Authenticated:     true,
		AccessToken:       token,
		RefreshToken:      token,
		AccessTokenClaims: claims,
		ResponseMode:      "query",
		Flow:              "standard",
	})
	store.SetProfile(&session.Profile{Username: "alice"})

	store.MarkLoggedOut()

	snap := store.Snapshot()
	require.False(t, snap.Authenticated)
	require.Empty(t, snap.AccessToken)
	require.Empty(t, snap.RefreshToken)
	require.Nil(t, snap.AccessTokenClaims)
	require.Nil(t, store.Profile())

	// Protocol metadata survives a logout.
	require.Equal(t, "query", snap.ResponseMode)
	require.Equal(t, "standard", snap.Flow)
}

func TestErrorIsOverwrittenNotAccumulated(t *testing.T) {
	store := session.New()
	require.NoError(t, store.Err())

	first := errors.New("first failure")
	second := errors.New("second failure")

	store.SetError(first)
	require.Same(t, first, store.Err())

	store.SetError(second)
	require.Same(t, second, store.Err())

	store.ClearError()
	require.NoError(t, store.Err())
}

func TestProfileOnlySetExplicitly(t *testing.T) {
	store := session.New()
	require.Nil(t, store.Profile())

	store.SyncFrom(session.Snapshot{Authenticated: true, AccessToken: testutil.JWT(time.Minute)})
	require.Nil(t, store.Profile(), "sync must not populate the profile")

	profile := &session.Profile{Username: "alice"}
	store.SetProfile(profile)
	require.Same(t, profile, store.Profile())
}
