package keycloaksession

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sessionware/keycloak-session/adapter"
	"github.com/sessionware/keycloak-session/session"
)

func TestInstance_BeforeInstall(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	f, err := Instance()
	require.ErrorIs(t, err, ErrNotInstalled)
	require.Nil(t, f)
}

func TestInstall_ConstructsOnce(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	m := &adapter.MockedAdapter{}
	constructions := 0
	factory := func(ctx context.Context, config adapter.Config, events adapter.Events) (adapter.Adapter, error) {
		constructions++
		return m, nil
	}

	first, err := Install(context.Background(), Options{Config: testConfig, Factory: factory})
	require.NoError(t, err)

	// The second call's differing options are ignored.
	second, err := Install(context.Background(), Options{
		Config:  adapter.Config{ServerURL: "https://other.example", Realm: "other", ClientID: "x"},
		Factory: factory,
	})
	require.NoError(t, err)

	require.Same(t, first, second)
	require.Equal(t, 1, constructions)

	got, err := Instance()
	require.NoError(t, err)
	require.Same(t, first, got)
}

func TestInstall_RunsInitWhenRequested(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	m := &adapter.MockedAdapter{}
	initOpts := adapter.InitOptions{LoadStrategy: adapter.LoadStrategyCheckSSO}
	m.On("Initialize", mock.Anything, initOpts).Return(false, nil)
	m.On("Snapshot").Return(session.Snapshot{})

	f, err := Install(context.Background(), Options{
		Config:      testConfig,
		Factory:     adapter.NewMockedFactoryFunc(m),
		InitOptions: &initOpts,
	})
	require.NoError(t, err)
	require.True(t, f.Ready())
	require.False(t, f.Authenticated())
	m.AssertExpectations(t)
}

func TestInstall_FactoryFailure(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	factory := func(ctx context.Context, config adapter.Config, events adapter.Events) (adapter.Adapter, error) {
		return nil, context.DeadlineExceeded
	}

	_, err := Install(context.Background(), Options{Config: testConfig, Factory: factory})
	require.Error(t, err)

	// A failed construction leaves nothing installed.
	_, err = Instance()
	require.ErrorIs(t, err, ErrNotInstalled)
}

func TestReset(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	m := &adapter.MockedAdapter{}
	_, err := Install(context.Background(), Options{Config: testConfig, Factory: adapter.NewMockedFactoryFunc(m)})
	require.NoError(t, err)

	Reset()
	_, err = Instance()
	require.ErrorIs(t, err, ErrNotInstalled)
}
