package test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// JWT creates a dummy JWT with iat = now and exp = now + delta for testing
// purposes.
func JWT(delta time.Duration) string {
	now := time.Now().Truncate(time.Second)

	return JWTWithClaims(map[string]any{
		"sub":  "1234567890",
		"name": "John Doe",
		"iat":  now.Unix(),
		"exp":  now.Add(delta).Unix(),
	})
}

// JWTWithClaims creates a dummy HMAC-signed JWT carrying exactly the given
// claim set. Useful for building tokens with keycloak-shaped claims
// (realm_access, resource_access, preferred_username, ...).
func JWTWithClaims(claims map[string]any) string {
	rawHeader := `{"alg":"HS256","typ":"JWT"}`
	rawPayload, err := json.Marshal(claims)
	if err != nil {
		panic(fmt.Sprintf("marshal test claims: %v", err))
	}

	encodedHeader := base64.RawURLEncoding.EncodeToString([]byte(rawHeader))
	encodedPayload := base64.RawURLEncoding.EncodeToString(rawPayload)

	message := fmt.Sprintf("%s.%s", encodedHeader, encodedPayload)

	secretKey := []byte("a_very_secure_and_long_secret_key")
	mac := hmac.New(sha256.New, secretKey)
	mac.Write([]byte(message))
	signature := mac.Sum(nil)

	encodedSignature := base64.RawURLEncoding.EncodeToString(signature)

	return fmt.Sprintf("%s.%s", message, encodedSignature)
}
