package auth

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/theapemachine/a2a-go/pkg/a2a"
)

// CredentialProvider resolves the credential value for one security
// scheme, given the session it's being attached for (letting callers key
// per-user OAuth tokens, static API keys, etc. differently).
type CredentialProvider func(sessionID string) (string, error)

// Interceptor attaches client credentials to outgoing requests according
// to the security schemes an AgentCard advertises. It is the client-side
// mirror of the server's AuthenticateRequest check.
type Interceptor struct {
	mu          sync.RWMutex
	credentials map[string]CredentialProvider // scheme name -> provider
}

func NewInterceptor() *Interceptor {
	return &Interceptor{credentials: make(map[string]CredentialProvider)}
}

// Register associates a credential provider with a named security scheme
// from an AgentCard's SecuritySchemes map.
func (i *Interceptor) Register(schemeName string, provider CredentialProvider) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.credentials[schemeName] = provider
}

// Headers resolves the credential headers this interceptor would attach
// for `card`'s security requirements and `sessionID`. It stops at the
// first scheme, across the whole security list, that both resolves to a
// registered provider and maps to a supported placement (header) —
// first match wins. It is transport-agnostic so every
// ClientTransport (HTTP header map, gRPC metadata, REST) can reuse the
// same resolution logic instead of each re-implementing scheme dispatch.
func (i *Interceptor) Headers(card *a2a.AgentCard, sessionID string) (map[string]string, error) {
	headers := make(map[string]string)
	if card == nil {
		return headers, nil
	}

	for _, requirement := range card.Security {
		for schemeName := range requirement {
			scheme, ok := card.SecuritySchemes[schemeName]
			if !ok {
				continue
			}

			i.mu.RLock()
			provider, ok := i.credentials[schemeName]
			i.mu.RUnlock()
			if !ok {
				continue
			}

			cred, err := provider(sessionID)
			if err != nil {
				return nil, fmt.Errorf("resolving credential for scheme %q: %w", schemeName, err)
			}

			switch scheme.Type {
			case a2a.SecuritySchemeHTTP:
				if scheme.Scheme == "bearer" {
					headers["Authorization"] = "Bearer " + cred
				} else {
					headers["Authorization"] = cred
				}
				return headers, nil
			case a2a.SecuritySchemeOAuth2, a2a.SecuritySchemeOpenIDConnect:
				headers["Authorization"] = "Bearer " + cred
				return headers, nil
			case a2a.SecuritySchemeAPIKey:
				if scheme.In == "header" {
					headers[scheme.Name] = cred
					return headers, nil
				}
				// query/cookie apiKey placement is intentionally unsupported;
				// keep looking for another applicable scheme.
			}
		}
	}

	return headers, nil
}

// Apply sets the headers Headers resolves: the credentials of the first
// scheme the card requires that this interceptor has a provider for.
// Unsupported scheme types (apiKey in query/cookie) are skipped rather than
// erroring, since the caller may still succeed against an endpoint that
// doesn't enforce them.
func (i *Interceptor) Apply(req *http.Request, card *a2a.AgentCard, sessionID string) error {
	headers, err := i.Headers(card, sessionID)
	if err != nil {
		return err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return nil
}
