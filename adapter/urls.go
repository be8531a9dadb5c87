package adapter

import (
	"net/url"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// realmURL joins the server url, the optional base path and a path below the
// realm, e.g. realmURL("protocol/openid-connect/auth").
func (a *GocloakAdapter) realmURL(path string) string {
	base := strings.TrimSuffix(a.config.ServerURL, "/") + a.config.BasePath
	return base + "/realms/" + url.PathEscape(a.config.Realm) + "/" + path
}

// BuildLoginURL builds the authorization endpoint url for a browser login.
// Every call generates a fresh state and nonce; with PKCE enabled the code
// verifier is retained on the adapter for the later code exchange.
func (a *GocloakAdapter) BuildLoginURL(opts LoginOptions) string {
	a.mu.RLock()
	scope := a.scope
	pkceMethod := a.pkceMethod
	responseMode := a.responseMode
	locale := a.locale
	a.mu.RUnlock()

	if locale == "" {
		locale = opts.Locale
	}

	cfg := a.oauthConfig(opts.RedirectURI, append(strings.Fields(scope), opts.Scopes...))

	params := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("nonce", uuid.NewString()),
	}
	if pkceMethod == "S256" {
		verifier := oauth2.GenerateVerifier()
		a.mu.Lock()
		a.pkceVerifier = verifier
		a.mu.Unlock()
		params = append(params, oauth2.S256ChallengeOption(verifier))
	}
	if responseMode != "" {
		params = append(params, oauth2.SetAuthURLParam("response_mode", responseMode))
	}
	if opts.Prompt != "" {
		params = append(params, oauth2.SetAuthURLParam("prompt", opts.Prompt))
	}
	if opts.LoginHint != "" {
		params = append(params, oauth2.SetAuthURLParam("login_hint", opts.LoginHint))
	}
	if opts.IDPHint != "" {
		params = append(params, oauth2.SetAuthURLParam("kc_idp_hint", opts.IDPHint))
	}
	if locale != "" {
		params = append(params, oauth2.SetAuthURLParam("ui_locales", locale))
	}

	return cfg.AuthCodeURL(uuid.NewString(), params...)
}

// BuildLogoutURL builds the end-session endpoint url.
func (a *GocloakAdapter) BuildLogoutURL(opts LogoutOptions) string {
	a.mu.RLock()
	idToken := a.tokens.IDToken
	a.mu.RUnlock()

	values := url.Values{}
	values.Set("client_id", a.config.ClientID)
	if redirect := a.redirectURI(opts.RedirectURI); redirect != "" {
		values.Set("post_logout_redirect_uri", redirect)
	}
	if idToken != "" {
		values.Set("id_token_hint", idToken)
	}

	return a.realmURL("protocol/openid-connect/logout") + "?" + values.Encode()
}

// BuildRegisterURL builds the registration page url. It takes the same
// parameters as a login url but points at the registrations endpoint.
func (a *GocloakAdapter) BuildRegisterURL(opts RegisterOptions) string {
	loginURL := a.BuildLoginURL(LoginOptions{
		RedirectURI: opts.RedirectURI,
		Locale:      opts.Locale,
	})
	return strings.Replace(loginURL,
		"/protocol/openid-connect/auth?",
		"/protocol/openid-connect/registrations?", 1)
}

// BuildAccountURL builds the url of keycloak's account management console.
func (a *GocloakAdapter) BuildAccountURL() string {
	values := url.Values{}
	values.Set("referrer", a.config.ClientID)
	if a.config.RedirectURL != "" {
		values.Set("referrer_uri", a.config.RedirectURL)
	}
	return a.realmURL("account") + "?" + values.Encode()
}

func (a *GocloakAdapter) oauthConfig(redirectURI string, scopes []string) *oauth2.Config {
	if len(scopes) == 0 {
		scopes = []string{"openid"}
	}
	return &oauth2.Config{
		ClientID:     a.config.ClientID,
		ClientSecret: a.config.ClientSecret,
		RedirectURL:  a.redirectURI(redirectURI),
		Scopes:       scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  a.realmURL("protocol/openid-connect/auth"),
			TokenURL: a.realmURL("protocol/openid-connect/token"),
		},
	}
}

func (a *GocloakAdapter) redirectURI(override string) string {
	if override != "" {
		return override
	}
	return a.config.RedirectURL
}
