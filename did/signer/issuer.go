package signer

import (
	"crypto/ed25519"
	"fmt"
	"strings"

	"github.com/pilacorp/go-credential-exchange/did"
)

// Issuer is a DID paired with the signer that speaks for it.
type Issuer struct {
	DID    string
	Name   string
	Signer Signer
}

// BuildIssuer creates an Issuer from a DID and its raw private key. The key
// type is derived from the DID; for did:key the secret must reproduce the
// same identifier.
func BuildIssuer(didID string, secret []byte) (*Issuer, error) {
	didID = strings.TrimSpace(didID)
	if didID == "" {
		return nil, fmt.Errorf("issuer DID is required")
	}
	keyType := did.KeyTypeOf(didID)

	if strings.HasPrefix(didID, did.KeyPrefix) {
		key, err := did.KeyFromSecret(keyType, secret)
		if err != nil {
			return nil, err
		}
		if key.Subject != didID {
			return nil, fmt.Errorf("secret does not match %s", didID)
		}
		s, err := FromDidKey(key)
		if err != nil {
			return nil, err
		}
		return &Issuer{DID: didID, Signer: s}, nil
	}

	kid := didID + "#key-1"
	key, err := did.KeyFromSecret(keyType, secret)
	if err != nil {
		return nil, err
	}
	if keyType == did.KeyTypeSecp256k1 {
		s, err := NewES256KSigner(didID, kid, key.SecretHex())
		if err != nil {
			return nil, err
		}
		return &Issuer{DID: didID, Signer: s}, nil
	}
	return &Issuer{DID: didID, Signer: NewEd25519Signer(didID, kid, ed25519.PrivateKey(key.PrivateKey))}, nil
}

// BuildIssuerFromHex is BuildIssuer with a hex encoded secret.
func BuildIssuerFromHex(didID, secretHex string) (*Issuer, error) {
	secret, err := ParseSecret(secretHex)
	if err != nil {
		return nil, err
	}
	return BuildIssuer(didID, secret)
}

// WithName sets the display name used in manifests.
func (i *Issuer) WithName(name string) *Issuer {
	i.Name = name
	return i
}
