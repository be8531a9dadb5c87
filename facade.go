package keycloaksession

import (
	"context"
	"time"

	log "github.com/hashicorp/go-hclog"

	"github.com/sessionware/keycloak-session/adapter"
	"github.com/sessionware/keycloak-session/session"
)

// DefaultMinValidity is used by [Facade.UpdateToken] when the caller passes
// no minimum validity.
const DefaultMinValidity = 5 * time.Second

// Callbacks are forwarded adapter events. All fields are optional.
type Callbacks struct {
	OnReady              func(authenticated bool)
	OnAuthSuccess        func()
	OnAuthError          func(err error)
	OnAuthRefreshSuccess func()
	OnAuthRefreshError   func()
	OnAuthLogout         func()
	OnTokenExpired       func()
}

// Facade owns the keycloak adapter and the session store, bridges adapter
// events into store mutations and exposes the public operation surface. The
// embedded [session.View] provides the read-only state and the derived
// accessors (Username, HasRealmRole, ...).
//
// A Facade is the only writer of its store; obtain the shared instance with
// [Install] / [Instance].
type Facade struct {
	*session.View

	adapter   adapter.Adapter
	store     *session.Store
	callbacks Callbacks
	logger    log.Logger
}

func newFacade(ctx context.Context, opts Options) (*Facade, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNullLogger()
	}

	f := &Facade{
		store:     session.New(),
		callbacks: opts.Callbacks,
		logger:    logger,
	}

	factory := opts.Factory
	if factory == nil {
		factory = adapter.NewGocloakAdapterFactory(logger)
	}

	a, err := factory(ctx, opts.Config, f.adapterEvents())
	if err != nil {
		return nil, err
	}
	f.adapter = a
	f.View = session.NewView(f.store, a)
	return f, nil
}

// adapterEvents wires the adapter's event set into store mutations, then
// forwards each event to the caller's callback.
func (f *Facade) adapterEvents() adapter.Events {
	return adapter.Events{
		OnReady: func(authenticated bool) {
			f.store.SetReady()
			f.store.SetLoading(false)
			f.syncFromAdapter()
			if f.callbacks.OnReady != nil {
				f.callbacks.OnReady(authenticated)
			}
		},
		OnAuthSuccess: func() {
			f.syncFromAdapter()
			if f.callbacks.OnAuthSuccess != nil {
				f.callbacks.OnAuthSuccess()
			}
		},
		OnAuthError: func(err error) {
			f.store.SetError(err)
			f.store.SetLoading(false)
			if f.callbacks.OnAuthError != nil {
				f.callbacks.OnAuthError(err)
			}
		},
		OnAuthRefreshSuccess: func() {
			f.syncFromAdapter()
			if f.callbacks.OnAuthRefreshSuccess != nil {
				f.callbacks.OnAuthRefreshSuccess()
			}
		},
		OnAuthRefreshError: func() {
			f.store.MarkUnauthenticated()
			if f.callbacks.OnAuthRefreshError != nil {
				f.callbacks.OnAuthRefreshError()
			}
		},
		OnAuthLogout: func() {
			f.store.MarkLoggedOut()
			if f.callbacks.OnAuthLogout != nil {
				f.callbacks.OnAuthLogout()
			}
		},
		OnTokenExpired: func() {
			if f.callbacks.OnTokenExpired != nil {
				f.callbacks.OnTokenExpired()
			}
		},
	}
}

func (f *Facade) syncFromAdapter() {
	if f.adapter == nil {
		return
	}
	f.store.SyncFrom(f.adapter.Snapshot())
}

// Init runs the adapter handshake. It reports whether the session is
// authenticated; a missing session is only an error under
// [adapter.LoadStrategyLoginRequired]. Re-running Init never resets
// readiness.
func (f *Facade) Init(ctx context.Context, opts adapter.InitOptions) (bool, error) {
	if f.adapter == nil {
		return false, ErrNoAdapter
	}

	f.store.SetLoading(true)
	f.store.ClearError()
	defer f.store.SetLoading(false)

	authenticated, err := f.adapter.Initialize(ctx, opts)
	if err != nil {
		f.store.SetError(err)
		return false, err
	}

	f.syncFromAdapter()
	f.store.SetReady()
	return authenticated, nil
}

// Login delegates to the adapter. Successful state changes arrive through
// the event wiring; a failure is recorded into the session error and
// returned.
func (f *Facade) Login(ctx context.Context, opts adapter.LoginOptions) error {
	if f.adapter == nil {
		return ErrNoAdapter
	}
	if err := f.adapter.BeginLogin(ctx, opts); err != nil {
		f.store.SetError(err)
		return err
	}
	return nil
}

// Logout delegates to the adapter. A failure is recorded into the session
// error and returned.
func (f *Facade) Logout(ctx context.Context, opts adapter.LogoutOptions) error {
	if f.adapter == nil {
		return ErrNoAdapter
	}
	if err := f.adapter.BeginLogout(ctx, opts); err != nil {
		f.store.SetError(err)
		return err
	}
	return nil
}

// Register delegates to the adapter. A failure is recorded into the session
// error and returned.
func (f *Facade) Register(ctx context.Context, opts adapter.RegisterOptions) error {
	if f.adapter == nil {
		return ErrNoAdapter
	}
	if err := f.adapter.BeginRegistration(ctx, opts); err != nil {
		f.store.SetError(err)
		return err
	}
	return nil
}

// AccountManagement delegates to the adapter. A failure is recorded into the
// session error and returned.
func (f *Facade) AccountManagement(ctx context.Context) error {
	if f.adapter == nil {
		return ErrNoAdapter
	}
	if err := f.adapter.OpenAccountManagement(ctx); err != nil {
		f.store.SetError(err)
		return err
	}
	return nil
}

// ExchangeCode completes a browser login started through the redirect
// handler: the authorization code from the callback is redeemed for tokens.
// redirectURI must match the one the login url was built with; empty falls
// back to the configured redirect url.
func (f *Facade) ExchangeCode(ctx context.Context, code, redirectURI string) error {
	if f.adapter == nil {
		return ErrNoAdapter
	}
	if err := f.adapter.ExchangeCode(ctx, code, redirectURI); err != nil {
		f.store.SetError(err)
		return err
	}
	f.syncFromAdapter()
	return nil
}

// UpdateToken refreshes the tokens when the access token is not valid for at
// least minValidity (default [DefaultMinValidity]) and reports whether
// rotation happened. Loading is held for the duration of the call; the store
// is only re-synced on actual rotation.
func (f *Facade) UpdateToken(ctx context.Context, minValidity time.Duration) (bool, error) {
	if f.adapter == nil {
		return false, ErrNoAdapter
	}
	if minValidity <= 0 {
		minValidity = DefaultMinValidity
	}

	f.store.SetLoading(true)
	defer f.store.SetLoading(false)

	rotated, err := f.adapter.RefreshTokenIfNeeded(ctx, minValidity)
	if err != nil {
		f.store.SetError(err)
		return false, err
	}
	if rotated {
		f.syncFromAdapter()
	}
	return rotated, nil
}

// LoadUserProfile fetches the user profile and stores it on success. A
// failure leaves the previously stored profile untouched.
func (f *Facade) LoadUserProfile(ctx context.Context) (*session.Profile, error) {
	if f.adapter == nil {
		return nil, ErrNoAdapter
	}

	profile, err := f.adapter.FetchProfile(ctx)
	if err != nil {
		f.store.SetError(err)
		return nil, err
	}
	f.store.SetProfile(profile)
	return profile, nil
}

// ClearToken drops the locally held tokens and re-syncs the now-empty state.
func (f *Facade) ClearToken() {
	if f.adapter == nil {
		return
	}
	f.adapter.ClearLocalTokens()
	f.syncFromAdapter()
}

// LoginURL builds a login url without touching any state.
func (f *Facade) LoginURL(opts adapter.LoginOptions) string {
	if f.adapter == nil {
		return ""
	}
	return f.adapter.BuildLoginURL(opts)
}

// LogoutURL builds a logout url.
func (f *Facade) LogoutURL(opts adapter.LogoutOptions) string {
	if f.adapter == nil {
		return ""
	}
	return f.adapter.BuildLogoutURL(opts)
}

// RegisterURL builds a registration url.
func (f *Facade) RegisterURL(opts adapter.RegisterOptions) string {
	if f.adapter == nil {
		return ""
	}
	return f.adapter.BuildRegisterURL(opts)
}

// AccountURL builds the account management console url.
func (f *Facade) AccountURL() string {
	if f.adapter == nil {
		return ""
	}
	return f.adapter.BuildAccountURL()
}

// State returns the read-only view of the session, the same one the Facade
// embeds.
func (f *Facade) State() *session.View {
	return f.View
}

// Adapter exposes the underlying adapter handle for advanced use. Mutating
// session state through it bypasses the store and is the caller's problem.
func (f *Facade) Adapter() adapter.Adapter {
	return f.adapter
}
