package card

import (
	"crypto"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/theapemachine/a2a-go/pkg/a2a"
)

// DefaultAllowedAlgorithms is the signature-algorithm allowlist Verify/
// VerifyAny enforce when the caller doesn't supply its own, ruling out
// algorithm-confusion attacks (e.g. a "none" or
// HMAC-keyed-with-the-public-key forgery).
var DefaultAllowedAlgorithms = []string{"RS256", "ES256"}

// InvalidSignaturesError reports that no signature on a card validated
// against any resolvable key.
type InvalidSignaturesError struct {
	Attempted int
}

func (e *InvalidSignaturesError) Error() string {
	return fmt.Sprintf("agent card: no valid signature found (%d attempted)", e.Attempted)
}

// KeyProvider resolves a public key for verification given the kid/jku
// discovered in a signature's protected header.
type KeyProvider func(kid, jku string) (crypto.PublicKey, error)

// Sign produces a detached JWS over the card's canonical JSON form: the
// payload itself is never embedded in the signature, since the card is
// already transmitted in full — only the protected header and signature
// segments are kept, per the detached-content-JWS pattern.
func Sign(c a2a.AgentCard, alg, keyID string, key crypto.PrivateKey) (a2a.AgentCardSignature, error) {
	method := jwt.GetSigningMethod(alg)
	if method == nil {
		return a2a.AgentCardSignature{}, fmt.Errorf("unknown signing algorithm %q", alg)
	}

	payload, err := Canonicalize(c)
	if err != nil {
		return a2a.AgentCardSignature{}, err
	}

	header, err := json.Marshal(map[string]string{"alg": alg, "kid": keyID})
	if err != nil {
		return a2a.AgentCardSignature{}, err
	}
	protectedB64 := base64.RawURLEncoding.EncodeToString(header)
	signingInput := protectedB64 + "." + base64.RawURLEncoding.EncodeToString(payload)

	sig, err := method.Sign(signingInput, key)
	if err != nil {
		return a2a.AgentCardSignature{}, fmt.Errorf("signing agent card: %w", err)
	}

	return a2a.AgentCardSignature{
		Protected: protectedB64,
		Signature: base64.RawURLEncoding.EncodeToString(sig),
		Header:    map[string]any{"kid": keyID},
	}, nil
}

// Verify checks one detached signature against the card's current canonical
// form under the given public key, enforcing alg against allowed.
func Verify(c a2a.AgentCard, sig a2a.AgentCardSignature, key crypto.PublicKey, allowed []string) error {
	alg, _, _, err := decodeProtected(sig.Protected)
	if err != nil {
		return err
	}
	if !algAllowed(alg, allowed) {
		return fmt.Errorf("signature algorithm %q is not in the allowlist", alg)
	}

	method := jwt.GetSigningMethod(alg)
	if method == nil {
		return fmt.Errorf("unknown signing algorithm %q", alg)
	}

	payload, err := Canonicalize(c)
	if err != nil {
		return err
	}

	signingInput := sig.Protected + "." + base64.RawURLEncoding.EncodeToString(payload)
	sigBytes, err := base64.RawURLEncoding.DecodeString(sig.Signature)
	if err != nil {
		return fmt.Errorf("decoding signature: %w", err)
	}

	return method.Verify(signingInput, sigBytes, key)
}

// VerifyAny checks every signature attached to the card, resolving each
// one's key via keyProvider (keyed by the kid/jku discovered in its
// protected header) and succeeding as soon as one validates under an
// allowed algorithm. It raises InvalidSignaturesError if the card carries
// no signatures that validate.
func VerifyAny(c a2a.AgentCard, keyProvider KeyProvider, allowed []string) error {
	if allowed == nil {
		allowed = DefaultAllowedAlgorithms
	}

	for _, sig := range c.Signatures {
		alg, kid, jku, err := decodeProtected(sig.Protected)
		if err != nil {
			continue
		}
		if !algAllowed(alg, allowed) {
			continue
		}
		key, err := keyProvider(kid, jku)
		if err != nil {
			continue
		}
		if err := Verify(c, sig, key, allowed); err == nil {
			return nil
		}
	}
	return &InvalidSignaturesError{Attempted: len(c.Signatures)}
}

func decodeProtected(protectedB64 string) (alg, kid, jku string, err error) {
	raw, err := base64.RawURLEncoding.DecodeString(protectedB64)
	if err != nil {
		return "", "", "", fmt.Errorf("decoding protected header: %w", err)
	}
	var header struct {
		Alg string `json:"alg"`
		Kid string `json:"kid"`
		Jku string `json:"jku"`
	}
	if err := json.Unmarshal(raw, &header); err != nil {
		return "", "", "", fmt.Errorf("parsing protected header: %w", err)
	}
	return header.Alg, header.Kid, header.Jku, nil
}

func algAllowed(alg string, allowed []string) bool {
	for _, a := range allowed {
		if a == alg {
			return true
		}
	}
	return false
}
