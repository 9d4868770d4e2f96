package integration

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/mgastron/mvgtms-sub000/internal/domain/shared"
	"github.com/mgastron/mvgtms-sub000/internal/domain/shipment"
)

var (
	// ErrNoCredential means the link holds neither access nor refresh token
	// and the client has to authorize again.
	ErrNoCredential = shared.NewDomainError(shared.CodeCredential, "integration: no credential, re-authorization required")
	// ErrCredentialRejected means the provider refused a freshly refreshed token.
	ErrCredentialRejected = shared.NewDomainError(shared.CodeCredential, "integration: credential rejected by provider")
	ErrRefreshFailed      = shared.NewDomainError(shared.CodeCredential, "integration: token refresh failed")

	ErrProviderUnconfigured = shared.NewDomainError(shared.CodeValidation, "integration: provider is not configured")
	ErrUnsupportedProvider  = shared.NewDomainError(shared.CodeValidation, "integration: provider not supported")
	ErrInvalidOAuthState    = shared.NewDomainError(shared.CodeValidation, "integration: invalid or expired oauth state")
	ErrMissingAuthCode      = shared.NewDomainError(shared.CodeValidation, "integration: authorization code is missing")
	ErrInvalidSignature     = shared.NewDomainError(shared.CodeSecurity, "integration: callback signature mismatch")

	ErrClientNotFound = shared.NewDomainError(shared.CodeNotFound, "integration: client not found")
	ErrLinkNotFound   = shared.NewDomainError(shared.CodeNotFound, "integration: client is not linked to provider")

	// ErrMissingExternalReference is the only field failure that rejects a
	// provider payload; everything else degrades to placeholders.
	ErrMissingExternalReference = shared.NewDomainError(shared.CodeValidation, "integration: payload has no external reference")
	ErrMalformedPayload         = shared.NewDomainError(shared.CodeValidation, "integration: malformed provider payload")
)

// ExternalAPIError is a non-2xx answer or transport failure from a provider.
type ExternalAPIError struct {
	Provider   shipment.Provider
	StatusCode int
	Body       string
	Err        error
}

func (e *ExternalAPIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("integration: %s request failed: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("integration: %s returned %d: %s", e.Provider, e.StatusCode, truncate(e.Body, 256))
}

func (e *ExternalAPIError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, shared.ErrExternalAPI) match.
func (e *ExternalAPIError) Is(target error) bool {
	return target == shared.ErrExternalAPI
}

// IsUnauthorized reports whether err is a provider 401.
func IsUnauthorized(err error) bool {
	var apiErr *ExternalAPIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusUnauthorized
	}
	return false
}

// IsNotFound reports whether err is a provider 404.
func IsNotFound(err error) bool {
	var apiErr *ExternalAPIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusNotFound
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
