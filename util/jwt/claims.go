// Package jwt extracts claims from bearer tokens without verifying them.
// Signature verification is keycloak's job; this package only needs to read
// what the server already signed.
package jwt

import (
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/mitchellh/mapstructure"
)

// RoleSet mirrors keycloak's role container objects ("realm_access" and the
// values of "resource_access").
type RoleSet struct {
	Roles []string `mapstructure:"roles" json:"roles"`
}

// Claims is the typed subset of keycloak token claims the session facade
// cares about. Everything else ends up in Raw.
type Claims struct {
	Exp               int64              `mapstructure:"exp"`
	Iat               int64              `mapstructure:"iat"`
	Sub               string             `mapstructure:"sub"`
	PreferredUsername string             `mapstructure:"preferred_username"`
	Email             string             `mapstructure:"email"`
	EmailVerified     bool               `mapstructure:"email_verified"`
	Name              string             `mapstructure:"name"`
	GivenName         string             `mapstructure:"given_name"`
	FamilyName        string             `mapstructure:"family_name"`
	RealmAccess       RoleSet            `mapstructure:"realm_access"`
	ResourceAccess    map[string]RoleSet `mapstructure:"resource_access"`

	Raw map[string]any `mapstructure:",remain"`
}

// Parse decodes the payload of token into [Claims]. The signature is not
// checked.
func Parse(token string) (*Claims, error) {
	parsed, _, err := gojwt.NewParser().ParseUnverified(token, gojwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("parse jwt: %w", err)
	}

	mapClaims, ok := parsed.Claims.(gojwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("unexpected claims type %T", parsed.Claims)
	}

	claims := &Claims{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           claims,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(map[string]any(mapClaims)); err != nil {
		return nil, fmt.Errorf("decode jwt claims: %w", err)
	}
	return claims, nil
}

// ExpirationTime is a simple helper function that extracts the expiration
// time claim from jwt and retuns it as [time.Time].
func ExpirationTime(jwt string) (time.Time, error) {
	claims, err := Parse(jwt)
	if err != nil {
		return time.Time{}, err
	}
	if claims.Exp == 0 {
		return time.Time{}, fmt.Errorf("jwt has no exp claim")
	}
	return time.Unix(claims.Exp, 0), nil
}

// IsValidIn checks whether jwt is still valid in the future at
// now + delta. If the expiration time claim cannot be read
// from jwt, false is returned.
func IsValidIn(jwt string, delta time.Duration) bool {
	expirationTime, err := ExpirationTime(jwt)
	if err != nil {
		return false
	}

	return time.Now().Add(delta).Before(expirationTime)
}
