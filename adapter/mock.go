package adapter

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sessionware/keycloak-session/session"
)

// NewMockedFactoryFunc creates a new [FactoryFunc] that always returns a.
func NewMockedFactoryFunc(a Adapter) FactoryFunc {
	return func(ctx context.Context, config Config, events Events) (Adapter, error) {
		return a, nil
	}
}

// MockedAdapter implements [Adapter] by delegating function calls to
// [MockedAdapter.Mock].
type MockedAdapter struct {
	mock.Mock
}

var _ Adapter = (*MockedAdapter)(nil)

func (m *MockedAdapter) Initialize(ctx context.Context, opts InitOptions) (bool, error) {
	args := m.Called(ctx, opts)
	return args.Bool(0), args.Error(1)
}

func (m *MockedAdapter) BeginLogin(ctx context.Context, opts LoginOptions) error {
	args := m.Called(ctx, opts)
	return args.Error(0)
}

func (m *MockedAdapter) BeginLogout(ctx context.Context, opts LogoutOptions) error {
	args := m.Called(ctx, opts)
	return args.Error(0)
}

func (m *MockedAdapter) BeginRegistration(ctx context.Context, opts RegisterOptions) error {
	args := m.Called(ctx, opts)
	return args.Error(0)
}

func (m *MockedAdapter) ExchangeCode(ctx context.Context, code, redirectURI string) error {
	args := m.Called(ctx, code, redirectURI)
	return args.Error(0)
}

func (m *MockedAdapter) OpenAccountManagement(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockedAdapter) RefreshTokenIfNeeded(ctx context.Context, minValidity time.Duration) (bool, error) {
	args := m.Called(ctx, minValidity)
	return args.Bool(0), args.Error(1)
}

func (m *MockedAdapter) FetchProfile(ctx context.Context) (*session.Profile, error) {
	args := m.Called(ctx)
	var p *session.Profile = nil
	if args.Get(0) != nil {
		p = args.Get(0).(*session.Profile)
	}
	return p, args.Error(1)
}

func (m *MockedAdapter) ClearLocalTokens() {
	m.Called()
}

func (m *MockedAdapter) IsAccessTokenExpired(grace time.Duration) bool {
	args := m.Called(grace)
	return args.Bool(0)
}

func (m *MockedAdapter) HasRealmRole(role string) bool {
	args := m.Called(role)
	return args.Bool(0)
}

func (m *MockedAdapter) HasResourceRole(role, resource string) bool {
	args := m.Called(role, resource)
	return args.Bool(0)
}

func (m *MockedAdapter) BuildLoginURL(opts LoginOptions) string {
	args := m.Called(opts)
	return args.String(0)
}

func (m *MockedAdapter) BuildLogoutURL(opts LogoutOptions) string {
	args := m.Called(opts)
	return args.String(0)
}

func (m *MockedAdapter) BuildRegisterURL(opts RegisterOptions) string {
	args := m.Called(opts)
	return args.String(0)
}

func (m *MockedAdapter) BuildAccountURL() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockedAdapter) Snapshot() session.Snapshot {
	args := m.Called()
	return args.Get(0).(session.Snapshot)
}
