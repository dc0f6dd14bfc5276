package jwt

import (
	"fmt"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/pilacorp/go-credential-exchange/credential/common/verification"
)

// Signer produces raw JWS signatures for an identity. Implementations live in
// did/signer; anything able to sign bytes for a DID can be plugged in.
type Signer interface {
	// DID is the identifier written to the "iss" claim.
	DID() string
	// KeyID is written to the "kid" header.
	KeyID() string
	// Algorithm is the JWS "alg" value, EdDSA or ES256K.
	Algorithm() string
	// Sign signs the JWS signing input.
	Sign(signingInput []byte) ([]byte, error)
}

// Encode serializes claims into a compact JWS signed by s.
func Encode(claims gojwt.Claims, s Signer) (string, error) {
	if s == nil {
		return "", fmt.Errorf("signer is required")
	}
	method := gojwt.GetSigningMethod(s.Algorithm())
	if method == nil {
		return "", verification.Newf(verification.KindUnsupportedAlgorithm, "signing algorithm %q is not registered", s.Algorithm())
	}

	token := gojwt.NewWithClaims(method, claims)
	token.Header["typ"] = "JWT"
	if kid := s.KeyID(); kid != "" {
		token.Header["kid"] = kid
	}

	signingInput, err := token.SigningString()
	if err != nil {
		return "", fmt.Errorf("failed to get signing input: %w", err)
	}

	sig, err := s.Sign([]byte(signingInput))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signingInput + "." + token.EncodeSegment(sig), nil
}
