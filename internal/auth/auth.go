// Package auth provides API key authorization for the dispatch pipeline.
package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/tjfontaine/actiondispatch/internal/core/domain"
	"github.com/tjfontaine/actiondispatch/internal/filter"
)

// PropertyPrincipal holds the name of the authenticated key.
const PropertyPrincipal = "principal"

// APIKey is a configured key, stored only as its SHA-256 hash.
type APIKey struct {
	Name    string
	KeyHash string
}

// Authenticator validates API keys against configured hashes
type Authenticator struct {
	keys map[string]APIKey // keyhash -> key
}

// NewAuthenticator creates a new authenticator for keys
func NewAuthenticator(keys []APIKey) *Authenticator {
	auth := &Authenticator{
		keys: make(map[string]APIKey, len(keys)),
	}
	for _, k := range keys {
		auth.keys[strings.ToLower(k.KeyHash)] = k
	}
	return auth
}

// ValidateAPIKey validates an API key and returns the matching configured key
func (a *Authenticator) ValidateAPIKey(apiKey string) (APIKey, error) {
	keyHash := HashAPIKey(apiKey)

	k, ok := a.keys[keyHash]
	if !ok {
		return APIKey{}, fmt.Errorf("invalid API key")
	}

	// Constant-time comparison to prevent timing attacks
	if subtle.ConstantTimeCompare([]byte(keyHash), []byte(strings.ToLower(k.KeyHash))) != 1 {
		return APIKey{}, fmt.Errorf("invalid API key")
	}
	return k, nil
}

// ExtractAPIKey extracts the API key from the Authorization header
func ExtractAPIKey(r *http.Request) (string, error) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", fmt.Errorf("missing Authorization header")
	}

	// Support "Bearer <key>" format
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid Authorization header format")
	}

	if strings.ToLower(parts[0]) != "bearer" {
		return "", fmt.Errorf("unsupported authorization scheme")
	}

	return parts[1], nil
}

// HashAPIKey creates a SHA-256 hash of an API key for storage
func HashAPIKey(apiKey string) string {
	hash := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(hash[:])
}

// APIKeyAuthorizer rejects requests without a valid bearer key. It
// short-circuits with a 401 response rather than a fault.
type APIKeyAuthorizer struct {
	auth *Authenticator
}

// NewAPIKeyFilter returns the authorizer as a single-instance authorization
// filter.
func NewAPIKeyFilter(auth *Authenticator) *filter.AuthorizationAttribute {
	return filter.Authorize(&APIKeyAuthorizer{auth: auth})
}

// OnAuthorization implements filter.Authorizer. Batch sub-requests inherit
// the principal of their authorized envelope.
func (a *APIKeyAuthorizer) OnAuthorization(ctx context.Context, ec *domain.ExecutionContext) error {
	if domain.IsBatchSubRequest(ec.Request) {
		if _, ok := ec.Properties.Get(PropertyPrincipal); ok {
			return nil
		}
	}

	apiKey, err := ExtractAPIKey(ec.Request)
	if err != nil {
		ec.Response = unauthorized(ec.Request, err.Error())
		return nil
	}

	k, err := a.auth.ValidateAPIKey(apiKey)
	if err != nil {
		ec.Response = unauthorized(ec.Request, "Invalid API key")
		return nil
	}

	ec.Properties.Set(PropertyPrincipal, k.Name)
	return nil
}

func unauthorized(req *http.Request, msg string) *http.Response {
	resp := domain.ErrAuthentication(msg).WithCode(domain.ErrorCodeInvalidAPIKey).Response(req)
	resp.Header.Set("WWW-Authenticate", "Bearer")
	return resp
}
