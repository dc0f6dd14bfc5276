// Package signer turns DID key material into JWS signers.
package signer

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/pilacorp/go-credential-exchange/did"
)

// Signer signs JWS signing input for a DID.
type Signer interface {
	DID() string
	KeyID() string
	Algorithm() string
	Sign(payload []byte) ([]byte, error)
}

// Ed25519Signer signs with an Ed25519 private key (alg EdDSA).
type Ed25519Signer struct {
	did  string
	kid  string
	priv ed25519.PrivateKey
}

// NewEd25519Signer creates an EdDSA signer.
func NewEd25519Signer(didID, kid string, priv ed25519.PrivateKey) *Ed25519Signer {
	return &Ed25519Signer{did: didID, kid: kid, priv: priv}
}

func (s *Ed25519Signer) DID() string       { return s.did }
func (s *Ed25519Signer) KeyID() string     { return s.kid }
func (s *Ed25519Signer) Algorithm() string { return "EdDSA" }

// Sign signs payload directly; Ed25519 hashes internally.
func (s *Ed25519Signer) Sign(payload []byte) ([]byte, error) {
	return ed25519.Sign(s.priv, payload), nil
}

// PublicKey returns the verification key.
func (s *Ed25519Signer) PublicKey() ed25519.PublicKey {
	return s.priv.Public().(ed25519.PublicKey)
}

// ES256KSigner signs with a secp256k1 key (alg ES256K).
type ES256KSigner struct {
	did  string
	kid  string
	priv *ecdsa.PrivateKey
}

// NewES256KSigner creates an ES256K signer from a hex private key, with or
// without 0x.
func NewES256KSigner(didID, kid, privHex string) (*ES256KSigner, error) {
	priv, err := ethcrypto.HexToECDSA(strings.TrimPrefix(privHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid secp256k1 private key: %w", err)
	}
	return &ES256KSigner{did: didID, kid: kid, priv: priv}, nil
}

func (s *ES256KSigner) DID() string       { return s.did }
func (s *ES256KSigner) KeyID() string     { return s.kid }
func (s *ES256KSigner) Algorithm() string { return "ES256K" }

// Sign hashes payload with SHA-256 and returns R||S.
func (s *ES256KSigner) Sign(payload []byte) ([]byte, error) {
	hash := sha256.Sum256(payload)
	signature, err := ethcrypto.Sign(hash[:], s.priv)
	if err != nil {
		return nil, fmt.Errorf("failed to sign payload: %w", err)
	}

	if len(signature) != 65 {
		return nil, fmt.Errorf("invalid signature length: expected 65 bytes, got %d", len(signature))
	}

	return signature[:64], nil
}

// PublicKey returns the verification key.
func (s *ES256KSigner) PublicKey() *ecdsa.PublicKey {
	return &s.priv.PublicKey
}

// Address returns the Ethereum address of the key, as used by did:ethr.
func (s *ES256KSigner) Address() string {
	return ethcrypto.PubkeyToAddress(s.priv.PublicKey).Hex()
}

// ParseSecret decodes a hex secret, tolerating a 0x prefix and whitespace.
func ParseSecret(secret string) ([]byte, error) {
	secret = strings.TrimPrefix(strings.TrimSpace(secret), "0x")
	if secret == "" {
		return nil, fmt.Errorf("secret is empty")
	}
	b, err := hex.DecodeString(secret)
	if err != nil {
		return nil, fmt.Errorf("secret is not hex: %w", err)
	}
	return b, nil
}

// FromDidKey builds the signer for a locally generated did:key.
func FromDidKey(key *did.DidKey) (Signer, error) {
	switch key.KeyType {
	case did.KeyTypeEd25519:
		if len(key.PrivateKey) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("invalid ed25519 private key length %d", len(key.PrivateKey))
		}
		return NewEd25519Signer(key.Subject, key.KeyID(), ed25519.PrivateKey(key.PrivateKey)), nil
	case did.KeyTypeSecp256k1:
		return NewES256KSigner(key.Subject, key.KeyID(), hex.EncodeToString(key.PrivateKey))
	default:
		return nil, fmt.Errorf("unsupported key type %q", key.KeyType)
	}
}
