package jwt

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	gojwt "github.com/golang-jwt/jwt/v5"
)

// Algorithm identifiers carried in the JWS "alg" header.
const (
	AlgEdDSA  = "EdDSA"
	AlgES256K = "ES256K"
)

// SigningMethodES256K implements ES256K signing over secp256k1 with SHA-256.
// Signatures are the 64 byte R||S form without the recovery id.
type SigningMethodES256K struct{}

// Alg returns the algorithm name
func (m *SigningMethodES256K) Alg() string {
	return AlgES256K
}

// Sign signs a string with a *ecdsa.PrivateKey on the secp256k1 curve.
func (m *SigningMethodES256K) Sign(signingString string, key interface{}) ([]byte, error) {
	privKey, ok := key.(*ecdsa.PrivateKey)
	if !ok {
		return nil, gojwt.ErrInvalidKeyType
	}
	return SignES256K([]byte(signingString), privKey)
}

// Verify verifies a signature against a *ecdsa.PublicKey.
func (m *SigningMethodES256K) Verify(signingString string, signature []byte, key interface{}) error {
	publicKey, ok := key.(*ecdsa.PublicKey)
	if !ok {
		return gojwt.ErrInvalidKeyType
	}

	if len(signature) != 64 {
		return fmt.Errorf("invalid signature length %d", len(signature))
	}

	hash := sha256.Sum256([]byte(signingString))
	if !ethcrypto.VerifySignature(ethcrypto.FromECDSAPub(publicKey), hash[:], signature) {
		return gojwt.ErrSignatureInvalid
	}

	return nil
}

// SignES256K hashes input with SHA-256 and signs it, dropping the recovery id.
func SignES256K(input []byte, privKey *ecdsa.PrivateKey) ([]byte, error) {
	hash := sha256.Sum256(input)
	sig, err := ethcrypto.Sign(hash[:], privKey)
	if err != nil {
		return nil, fmt.Errorf("signing failed: %w", err)
	}
	return sig[:64], nil
}

// ES256K is the ES256K signing method instance
var ES256K = &SigningMethodES256K{}

func init() {
	gojwt.RegisterSigningMethod(ES256K.Alg(), func() gojwt.SigningMethod {
		return ES256K
	})
}
