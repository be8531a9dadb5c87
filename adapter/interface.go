// Package adapter describes the keycloak capability surface the session
// facade consumes, and implements it on top of [gocloak].
// Its core is the [Adapter] interface and its implementations, especially
// [GocloakAdapter].
package adapter

import (
	"context"
	"errors"
	"time"

	"github.com/sessionware/keycloak-session/session"
)

var (
	// ErrInteractiveFlowRequired is returned when an operation needs a
	// browser round trip and no Config.RedirectHandler was provided.
	ErrInteractiveFlowRequired = errors.New("adapter: interactive flow required, no redirect handler configured")

	// ErrNotAuthenticated is returned when an operation needs tokens that
	// the adapter does not hold.
	ErrNotAuthenticated = errors.New("adapter: not authenticated")
)

// Config is the connection configuration for the keycloak server.
type Config struct {
	// ServerURL is the base keycloak url, e.g. http://auth.example.org.
	ServerURL string
	// Realm is the name of the realm the client lives in.
	Realm string
	// ClientID identifies this client towards keycloak.
	ClientID string
	// ClientSecret is only needed for confidential clients; public clients
	// leave it empty.
	ClientSecret string
	// BasePath is prepended to realm paths when building urls, e.g. "/auth"
	// for pre-quarkus distributions. Empty means none.
	BasePath string
	// RedirectURL is the default redirect target for browser flows.
	RedirectURL string
	// RedirectHandler is invoked with a built url whenever an operation
	// needs a browser round trip. Nil makes such operations fail with
	// [ErrInteractiveFlowRequired].
	RedirectHandler func(url string) error
}

// TokenSet carries the three bearer tokens of a keycloak session.
type TokenSet struct {
	AccessToken  string
	IDToken      string
	RefreshToken string
}

// LoadStrategy selects the initialization behavior.
type LoadStrategy string

const (
	// LoadStrategyLoginRequired fails initialization unless a session can
	// be established.
	LoadStrategyLoginRequired LoadStrategy = "login-required"
	// LoadStrategyCheckSSO checks for an existing session and reports
	// unauthenticated instead of failing when there is none.
	LoadStrategyCheckSSO LoadStrategy = "check-sso"
)

// InitOptions control the initialization handshake.
type InitOptions struct {
	LoadStrategy LoadStrategy

	// Tokens lets the caller adopt an externally persisted session. An
	// expired access token is refreshed during init when a refresh token
	// is present.
	Tokens *TokenSet

	// Scope is the space-delimited scope string requested on logins.
	Scope string

	// PKCEMethod enables PKCE on built login urls. Only "S256" is
	// supported.
	PKCEMethod string

	ResponseMode string
	Flow         string

	// Iframe-based session checking is a browser concern; the fields are
	// accepted for interface parity and mirrored into built urls where
	// applicable.
	CheckSessionInterval      time.Duration
	SilentCheckSSORedirectURI string

	Locale string
}

// LoginOptions control a login operation. Username and Password trigger a
// direct (resource owner password) grant; without them a confidential client
// falls back to the client credentials grant, and a public client needs a
// browser round trip.
type LoginOptions struct {
	Username string
	Password string
	Scopes   []string

	RedirectURI string
	Prompt      string
	LoginHint   string
	IDPHint     string
	Locale      string
}

// LogoutOptions control a logout operation.
type LogoutOptions struct {
	RedirectURI string
}

// RegisterOptions control a registration url / flow.
type RegisterOptions struct {
	RedirectURI string
	Locale      string
}

// Events is the closed set of callbacks the adapter invokes, settable once
// at construction.
type Events struct {
	OnReady              func(authenticated bool)
	OnAuthSuccess        func()
	OnAuthError          func(err error)
	OnAuthRefreshSuccess func()
	OnAuthRefreshError   func()
	OnAuthLogout         func()
	OnTokenExpired       func()
}

// Adapter describes the relevant subset of keycloak client functionality for
// running an authentication session.
type Adapter interface {
	// Initialize performs the initial handshake and reports whether the
	// session is authenticated. A missing session is only an error under
	// [LoadStrategyLoginRequired].
	Initialize(ctx context.Context, opts InitOptions) (bool, error)

	BeginLogin(ctx context.Context, opts LoginOptions) error
	BeginLogout(ctx context.Context, opts LogoutOptions) error
	BeginRegistration(ctx context.Context, opts RegisterOptions) error
	OpenAccountManagement(ctx context.Context) error

	// ExchangeCode redeems an authorization code from a completed browser
	// round trip at the token endpoint. A PKCE verifier retained from the
	// most recently built login url is presented alongside the code.
	ExchangeCode(ctx context.Context, code, redirectURI string) error

	// RefreshTokenIfNeeded rotates the tokens when the access token is not
	// valid for at least minValidity, and reports whether rotation
	// happened.
	RefreshTokenIfNeeded(ctx context.Context, minValidity time.Duration) (bool, error)

	FetchProfile(ctx context.Context) (*session.Profile, error)

	// ClearLocalTokens drops the locally held tokens without contacting
	// the server.
	ClearLocalTokens()

	IsAccessTokenExpired(grace time.Duration) bool
	HasRealmRole(role string) bool
	HasResourceRole(role, resource string) bool

	BuildLoginURL(opts LoginOptions) string
	BuildLogoutURL(opts LogoutOptions) string
	BuildRegisterURL(opts RegisterOptions) string
	BuildAccountURL() string

	// Snapshot returns the adapter's current state in store shape.
	Snapshot() session.Snapshot
}

// FactoryFunc is a kind of function that creates new [Adapter] instances.
// events are registered exactly once, at construction.
type FactoryFunc func(ctx context.Context, config Config, events Events) (Adapter, error)
