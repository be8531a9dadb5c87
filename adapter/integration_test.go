package adapter

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	log "github.com/hashicorp/go-hclog"
)

// TestGocloakAdapter_AgainstKeycloak exercises the full session lifecycle
// against a real keycloak. It needs docker and is enabled with
// KEYCLOAK_ACCEPTANCE_TESTS=1.
func TestGocloakAdapter_AgainstKeycloak(t *testing.T) {
	if os.Getenv("KEYCLOAK_ACCEPTANCE_TESTS") == "" {
		t.Skip("set KEYCLOAK_ACCEPTANCE_TESTS=1 to run against a keycloak container")
	}

	ctx := context.Background()
	serverURL := startKeycloak(t, ctx)

	recorder := &eventRecorder{}
	a, err := newGocloakAdapter(Config{
		ServerURL: serverURL,
		Realm:     "master",
		ClientID:  "admin-cli",
	}, recorder.events(), log.New(&log.LoggerOptions{Name: "acceptance"}))
	require.NoError(t, err)

	authenticated, err := a.Initialize(ctx, InitOptions{LoadStrategy: LoadStrategyCheckSSO})
	require.NoError(t, err)
	require.False(t, authenticated)
	require.Equal(t, []bool{false}, recorder.ready)

	require.NoError(t, a.BeginLogin(ctx, LoginOptions{Username: "admin", Password: "admin"}))
	require.True(t, a.Snapshot().Authenticated)
	require.Equal(t, 1, recorder.authSuccess)

	profile, err := a.FetchProfile(ctx)
	require.NoError(t, err)
	require.Equal(t, "admin", profile.Username)

	// A minimum validity beyond the token lifetime forces a rotation.
	rotated, err := a.RefreshTokenIfNeeded(ctx, 24*time.Hour)
	require.NoError(t, err)
	require.True(t, rotated)
	require.True(t, a.Snapshot().Authenticated)

	require.NoError(t, a.BeginLogout(ctx, LogoutOptions{}))
	require.False(t, a.Snapshot().Authenticated)
	require.Equal(t, 1, recorder.logout)
}

func startKeycloak(t *testing.T, ctx context.Context) string {
	t.Helper()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "quay.io/keycloak/keycloak:26.0",
			ExposedPorts: []string{"8080/tcp"},
			Env: map[string]string{
				"KC_BOOTSTRAP_ADMIN_USERNAME": "admin",
				"KC_BOOTSTRAP_ADMIN_PASSWORD": "admin",
			},
			Cmd: []string{"start-dev"},
			WaitingFor: wait.ForHTTP("/realms/master").
				WithPort(nat.Port("8080/tcp")).
				WithStartupTimeout(3 * time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "8080/tcp")
	require.NoError(t, err)

	return fmt.Sprintf("http://%s:%s", host, port.Port())
}
