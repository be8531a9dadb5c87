package adapter

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/Nerzal/gocloak/v13"
	"github.com/mitchellh/mapstructure"
	"golang.org/x/oauth2"

	log "github.com/hashicorp/go-hclog"

	"github.com/sessionware/keycloak-session/session"
	"github.com/sessionware/keycloak-session/util/jwt"
)

// eventKind enumerates the adapter events internally, even though [Events]
// presents them as separate optional fields.
type eventKind int

const (
	eventReady eventKind = iota
	eventAuthSuccess
	eventAuthError
	eventAuthRefreshSuccess
	eventAuthRefreshError
	eventAuthLogout
	eventTokenExpired
)

// NewGocloakAdapter is compatible with [FactoryFunc] and creates an [Adapter]
// instance by wrapping [gocloak.NewClient].
func NewGocloakAdapter(ctx context.Context, config Config, events Events) (Adapter, error) {
	return newGocloakAdapter(config, events, log.NewNullLogger())
}

// NewGocloakAdapterFactory returns a [FactoryFunc] whose adapters log through
// logger.
func NewGocloakAdapterFactory(logger log.Logger) FactoryFunc {
	return func(ctx context.Context, config Config, events Events) (Adapter, error) {
		return newGocloakAdapter(config, events, logger)
	}
}

func newGocloakAdapter(config Config, events Events, logger log.Logger) (*GocloakAdapter, error) {
	if config.ServerURL == "" || config.Realm == "" || config.ClientID == "" {
		return nil, fmt.Errorf("adapter: config needs server url, realm and client id")
	}

	return &GocloakAdapter{
		config: config,
		events: events,
		logger: logger,
		client: gocloak.NewClient(config.ServerURL),
	}, nil
}

// GocloakAdapter implements [Adapter] through the [gocloak] package.
//
// Browser-only concerns of the original javascript adapter (redirect
// round trips, iframe session polling) are mapped onto headless grants
// where possible and onto Config.RedirectHandler otherwise.
type GocloakAdapter struct {
	config Config
	events Events
	logger log.Logger
	client *gocloak.GoCloak

	mu            sync.RWMutex
	tokens        TokenSet
	accessClaims  *jwt.Claims
	idClaims      *jwt.Claims
	refreshClaims *jwt.Claims
	authenticated bool

	// Negotiated at Initialize, reflected into snapshots and built urls.
	scope        string
	pkceMethod   string
	responseMode string
	flow         string
	locale       string

	// Verifier of the most recently built PKCE login url, presented and
	// consumed by ExchangeCode.
	pkceVerifier string
}

var _ Adapter = (*GocloakAdapter)(nil)

func (a *GocloakAdapter) Initialize(ctx context.Context, opts InitOptions) (bool, error) {
	a.mu.Lock()
	a.scope = opts.Scope
	a.pkceMethod = opts.PKCEMethod
	a.responseMode = opts.ResponseMode
	a.flow = opts.Flow
	a.locale = opts.Locale
	a.mu.Unlock()

	authenticated, err := a.establishSession(ctx, opts)
	if err != nil {
		a.logger.Debug("initialization failed", "error", err)
		a.emit(eventAuthError, false, err)
		return false, err
	}

	a.emit(eventReady, authenticated, nil)
	if authenticated {
		a.emit(eventAuthSuccess, true, nil)
	}
	return authenticated, nil
}

func (a *GocloakAdapter) establishSession(ctx context.Context, opts InitOptions) (bool, error) {
	if opts.Tokens != nil && opts.Tokens.AccessToken != "" {
		a.mu.Lock()
		err := a.adoptTokensLocked(*opts.Tokens)
		a.mu.Unlock()
		if err != nil {
			return false, err
		}

		if jwt.IsValidIn(opts.Tokens.AccessToken, 0) {
			return true, nil
		}

		if opts.Tokens.RefreshToken != "" {
			if err := a.refresh(ctx); err == nil {
				return true, nil
			} else if opts.LoadStrategy == LoadStrategyLoginRequired {
				return false, err
			} else {
				a.logger.Debug("adopted session could not be refreshed", "error", err)
			}
		}

		a.ClearLocalTokens()
		if opts.LoadStrategy == LoadStrategyLoginRequired {
			return false, fmt.Errorf("adopted session expired: %w", ErrNotAuthenticated)
		}
		return false, nil
	}

	if opts.LoadStrategy == LoadStrategyLoginRequired {
		if a.config.ClientSecret != "" {
			token, err := a.client.LoginClient(ctx, a.config.ClientID, a.config.ClientSecret, a.config.Realm)
			if err != nil {
				return false, fmt.Errorf("client credentials login: %w", err)
			}
			return true, a.adoptJWT(token)
		}

		if a.config.RedirectHandler != nil {
			// The session arrives out of band, after the browser
			// round trip completes.
			return false, a.config.RedirectHandler(a.BuildLoginURL(LoginOptions{}))
		}
		return false, ErrInteractiveFlowRequired
	}

	// check-sso without adoptable tokens: nothing to do, not an error.
	return false, nil
}

func (a *GocloakAdapter) BeginLogin(ctx context.Context, opts LoginOptions) error {
	switch {
	case opts.Username != "":
		token, err := a.client.Login(ctx, a.config.ClientID, a.config.ClientSecret, a.config.Realm, opts.Username, opts.Password)
		if err != nil {
			err = fmt.Errorf("password login: %w", err)
			a.emit(eventAuthError, false, err)
			return err
		}
		if err := a.adoptJWT(token); err != nil {
			a.emit(eventAuthError, false, err)
			return err
		}
		a.emit(eventAuthSuccess, true, nil)
		return nil

	case a.config.ClientSecret != "":
		token, err := a.client.LoginClient(ctx, a.config.ClientID, a.config.ClientSecret, a.config.Realm, opts.Scopes...)
		if err != nil {
			err = fmt.Errorf("client credentials login: %w", err)
			a.emit(eventAuthError, false, err)
			return err
		}
		if err := a.adoptJWT(token); err != nil {
			a.emit(eventAuthError, false, err)
			return err
		}
		a.emit(eventAuthSuccess, true, nil)
		return nil

	default:
		if a.config.RedirectHandler == nil {
			return ErrInteractiveFlowRequired
		}
		return a.config.RedirectHandler(a.BuildLoginURL(opts))
	}
}

func (a *GocloakAdapter) BeginLogout(ctx context.Context, opts LogoutOptions) error {
	a.mu.RLock()
	refreshToken := a.tokens.RefreshToken
	a.mu.RUnlock()

	if refreshToken != "" {
		if err := a.client.Logout(ctx, a.config.ClientID, a.config.ClientSecret, a.config.Realm, refreshToken); err != nil {
			return fmt.Errorf("logout: %w", err)
		}
	}

	a.ClearLocalTokens()
	a.emit(eventAuthLogout, false, nil)
	return nil
}

func (a *GocloakAdapter) BeginRegistration(ctx context.Context, opts RegisterOptions) error {
	if a.config.RedirectHandler == nil {
		return ErrInteractiveFlowRequired
	}
	return a.config.RedirectHandler(a.BuildRegisterURL(opts))
}

// ExchangeCode finishes the authorization code flow a redirect login
// started. The code is redeemed at the token endpoint together with the
// retained PKCE verifier, which is consumed either way.
func (a *GocloakAdapter) ExchangeCode(ctx context.Context, code, redirectURI string) error {
	a.mu.Lock()
	verifier := a.pkceVerifier
	a.pkceVerifier = ""
	a.mu.Unlock()

	var opts []oauth2.AuthCodeOption
	if verifier != "" {
		opts = append(opts, oauth2.VerifierOption(verifier))
	}

	token, err := a.oauthConfig(redirectURI, nil).Exchange(ctx, code, opts...)
	if err != nil {
		err = fmt.Errorf("code exchange: %w", err)
		a.emit(eventAuthError, false, err)
		return err
	}

	idToken, _ := token.Extra("id_token").(string)
	a.mu.Lock()
	err = a.adoptTokensLocked(TokenSet{
		AccessToken:  token.AccessToken,
		IDToken:      idToken,
		RefreshToken: token.RefreshToken,
	})
	a.mu.Unlock()
	if err != nil {
		a.emit(eventAuthError, false, err)
		return err
	}

	a.emit(eventAuthSuccess, true, nil)
	return nil
}

func (a *GocloakAdapter) OpenAccountManagement(ctx context.Context) error {
	if a.config.RedirectHandler == nil {
		return ErrInteractiveFlowRequired
	}
	return a.config.RedirectHandler(a.BuildAccountURL())
}

func (a *GocloakAdapter) RefreshTokenIfNeeded(ctx context.Context, minValidity time.Duration) (bool, error) {
	a.mu.RLock()
	accessToken := a.tokens.AccessToken
	a.mu.RUnlock()

	if accessToken == "" {
		return false, ErrNotAuthenticated
	}
	if jwt.IsValidIn(accessToken, minValidity) {
		return false, nil
	}
	if !jwt.IsValidIn(accessToken, 0) {
		a.emit(eventTokenExpired, false, nil)
	}

	if err := a.refresh(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// refresh rotates the tokens through the refresh grant and fires the
// matching refresh event.
func (a *GocloakAdapter) refresh(ctx context.Context) error {
	a.mu.RLock()
	refreshToken := a.tokens.RefreshToken
	a.mu.RUnlock()

	if refreshToken == "" {
		return ErrNotAuthenticated
	}

	token, err := a.client.RefreshToken(ctx, refreshToken, a.config.ClientID, a.config.ClientSecret, a.config.Realm)
	if err != nil {
		a.mu.Lock()
		a.authenticated = false
		a.mu.Unlock()
		a.emit(eventAuthRefreshError, false, nil)
		return fmt.Errorf("refresh token: %w", err)
	}

	if err := a.adoptJWT(token); err != nil {
		a.emit(eventAuthRefreshError, false, nil)
		return err
	}
	a.logger.Debug("token refreshed")
	a.emit(eventAuthRefreshSuccess, true, nil)
	return nil
}

func (a *GocloakAdapter) FetchProfile(ctx context.Context) (*session.Profile, error) {
	a.mu.RLock()
	accessToken := a.tokens.AccessToken
	a.mu.RUnlock()

	if accessToken == "" {
		return nil, ErrNotAuthenticated
	}

	raw, err := a.client.GetRawUserInfo(ctx, accessToken, a.config.Realm)
	if err != nil {
		return nil, fmt.Errorf("fetch userinfo: %w", err)
	}

	profile := &session.Profile{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           profile,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}

	// The userinfo endpoint omits the enabled flag; a usable userinfo
	// response implies an enabled account.
	if _, present := raw["enabled"]; !present {
		profile.Enabled = true
	}
	return profile, nil
}

func (a *GocloakAdapter) ClearLocalTokens() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tokens = TokenSet{}
	a.accessClaims = nil
	a.idClaims = nil
	a.refreshClaims = nil
	a.authenticated = false
}

func (a *GocloakAdapter) IsAccessTokenExpired(grace time.Duration) bool {
	a.mu.RLock()
	accessToken := a.tokens.AccessToken
	a.mu.RUnlock()

	if accessToken == "" {
		return true
	}
	return !jwt.IsValidIn(accessToken, grace)
}

func (a *GocloakAdapter) HasRealmRole(role string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.accessClaims == nil {
		return false
	}
	return slices.Contains(a.accessClaims.RealmAccess.Roles, role)
}

func (a *GocloakAdapter) HasResourceRole(role, resource string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.accessClaims == nil {
		return false
	}
	if resource == "" {
		resource = a.config.ClientID
	}
	return slices.Contains(a.accessClaims.ResourceAccess[resource].Roles, role)
}

func (a *GocloakAdapter) Snapshot() session.Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	snap := session.Snapshot{
		Authenticated: a.authenticated,
		AccessToken:   a.tokens.AccessToken,
		IDToken:       a.tokens.IDToken,
		RefreshToken:  a.tokens.RefreshToken,

		AccessTokenClaims:  a.accessClaims,
		IDTokenClaims:      a.idClaims,
		RefreshTokenClaims: a.refreshClaims,

		ResponseMode: a.responseMode,
		Flow:         a.flow,
	}
	if a.accessClaims != nil {
		snap.Subject = a.accessClaims.Sub
		snap.RealmRoles = a.accessClaims.RealmAccess.Roles
		if len(a.accessClaims.ResourceAccess) > 0 {
			snap.ResourceRoles = make(map[string][]string, len(a.accessClaims.ResourceAccess))
			for resource, roles := range a.accessClaims.ResourceAccess {
				snap.ResourceRoles[resource] = roles.Roles
			}
		}
	}
	return snap
}

// adoptJWT takes over a token response from a grant. The access token must be
// parseable; id and refresh token claims are best effort.
func (a *GocloakAdapter) adoptJWT(token *gocloak.JWT) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.adoptTokensLocked(TokenSet{
		AccessToken:  token.AccessToken,
		IDToken:      token.IDToken,
		RefreshToken: token.RefreshToken,
	})
}

func (a *GocloakAdapter) adoptTokensLocked(tokens TokenSet) error {
	accessClaims, err := jwt.Parse(tokens.AccessToken)
	if err != nil {
		return fmt.Errorf("parse access token: %w", err)
	}

	a.tokens = tokens
	a.accessClaims = accessClaims
	a.idClaims = parseLenient(tokens.IDToken)
	a.refreshClaims = parseLenient(tokens.RefreshToken)
	a.authenticated = true
	return nil
}

// parseLenient swallows parse errors: refresh tokens in particular are
// allowed to be opaque.
func parseLenient(token string) *jwt.Claims {
	if token == "" {
		return nil
	}
	claims, err := jwt.Parse(token)
	if err != nil {
		return nil
	}
	return claims
}

// emit dispatches one adapter event to its registered callback, if any.
// Never called while holding a.mu: handlers are expected to call back into
// the adapter (e.g. for a snapshot).
func (a *GocloakAdapter) emit(kind eventKind, authenticated bool, err error) {
	switch kind {
	case eventReady:
		if a.events.OnReady != nil {
			a.events.OnReady(authenticated)
		}
	case eventAuthSuccess:
		if a.events.OnAuthSuccess != nil {
			a.events.OnAuthSuccess()
		}
	case eventAuthError:
		if a.events.OnAuthError != nil {
			a.events.OnAuthError(err)
		}
	case eventAuthRefreshSuccess:
		if a.events.OnAuthRefreshSuccess != nil {
			a.events.OnAuthRefreshSuccess()
		}
	case eventAuthRefreshError:
		if a.events.OnAuthRefreshError != nil {
			a.events.OnAuthRefreshError()
		}
	case eventAuthLogout:
		if a.events.OnAuthLogout != nil {
			a.events.OnAuthLogout()
		}
	case eventTokenExpired:
		if a.events.OnTokenExpired != nil {
			a.events.OnTokenExpired()
		}
	}
}
