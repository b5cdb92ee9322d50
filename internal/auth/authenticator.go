package auth

import (
	"net/http"
	"strings"
)

// Authenticator routes a request to API-key or JWT auth. Bearer tokens with
// two dots are JWTs; anything else is treated as an API key.
type Authenticator struct {
	apikey *APIKeyMiddleware
	jwt    *JWTMiddleware
}

func NewAuthenticator(apikey *APIKeyMiddleware, jwt *JWTMiddleware) *Authenticator {
	return &Authenticator{apikey: apikey, jwt: jwt}
}

func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	apikeyChain := a.apikey.Authenticate(next)
	jwtChain := a.jwt.Authenticate(next)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r)
		if token != "" && strings.Count(token, ".") == 2 {
			jwtChain.ServeHTTP(w, r)
			return
		}
		apikeyChain.ServeHTTP(w, r)
	})
}
