package resolver

import (
	"crypto"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"

	"github.com/pilacorp/go-credential-exchange/credential/common/util"
	"github.com/pilacorp/go-credential-exchange/did"
)

// VerificationMethod is one key entry of a DID document.
type VerificationMethod struct {
	ID                 string `json:"id"`
	Type               string `json:"type"`
	Controller         string `json:"controller"`
	PublicKeyHex       string `json:"publicKeyHex,omitempty"`
	PublicKeyMultibase string `json:"publicKeyMultibase,omitempty"`
	PublicKeyBase58    string `json:"publicKeyBase58,omitempty"`
	PublicKeyJwk       *JWK   `json:"publicKeyJwk,omitempty"`
}

// JWK is the subset of a JSON Web Key needed for OKP and EC keys.
type JWK struct {
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y,omitempty"`
}

// Document is a resolved DID document.
type Document struct {
	Context            any                  `json:"@context,omitempty"`
	ID                 string               `json:"id"`
	VerificationMethod []VerificationMethod `json:"verificationMethod"`
	Authentication     []json.RawMessage    `json:"authentication,omitempty"`
	AssertionMethod    []json.RawMessage    `json:"assertionMethod,omitempty"`
}

// resolution is the envelope returned by Universal-Resolver style endpoints.
type resolution struct {
	DidDocument *Document `json:"didDocument"`
}

func parseDocument(body []byte) (*Document, error) {
	var env resolution
	if err := json.Unmarshal(body, &env); err == nil && env.DidDocument != nil {
		return env.DidDocument, nil
	}
	var doc Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal DID document: %w", err)
	}
	if doc.ID == "" {
		return nil, fmt.Errorf("DID document has no id")
	}
	return &doc, nil
}

// Method returns the verification method with the given id. An id without
// fragment selects the first assertion method, or the first method when the
// document lists none.
func (d *Document) Method(keyID string) (*VerificationMethod, error) {
	if keyID == "" || keyID == d.ID {
		if id := d.firstAssertionMethod(); id != "" {
			keyID = id
		} else if len(d.VerificationMethod) > 0 {
			return &d.VerificationMethod[0], nil
		} else {
			return nil, fmt.Errorf("DID document %s has no verification methods", d.ID)
		}
	}
	_, fragment, _ := strings.Cut(keyID, "#")
	for i, vm := range d.VerificationMethod {
		if vm.ID == keyID || (fragment != "" && vm.ID == "#"+fragment) {
			return &d.VerificationMethod[i], nil
		}
	}
	return nil, fmt.Errorf("verification method %s not found in %s", keyID, d.ID)
}

func (d *Document) firstAssertionMethod() string {
	for _, raw := range d.AssertionMethod {
		var ref string
		if json.Unmarshal(raw, &ref) == nil {
			return ref
		}
		var vm VerificationMethod
		if json.Unmarshal(raw, &vm) == nil && vm.ID != "" {
			return vm.ID
		}
	}
	return ""
}

// PublicKey decodes the key material of vm.
func (vm *VerificationMethod) PublicKey() (crypto.PublicKey, error) {
	switch {
	case vm.PublicKeyJwk != nil:
		return vm.PublicKeyJwk.PublicKey()
	case vm.PublicKeyMultibase != "":
		if k, err := did.ParseDidKey(did.KeyPrefix + vm.PublicKeyMultibase); err == nil {
			return k.PublicKey, nil
		}
		if !strings.HasPrefix(vm.PublicKeyMultibase, "z") {
			return nil, fmt.Errorf("%s: unsupported multibase encoding", vm.ID)
		}
		raw, err := base58.Decode(vm.PublicKeyMultibase[1:])
		if err != nil {
			return nil, fmt.Errorf("%s: invalid publicKeyMultibase: %w", vm.ID, err)
		}
		return vm.rawKey(raw)
	case vm.PublicKeyBase58 != "":
		raw, err := base58.Decode(vm.PublicKeyBase58)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid publicKeyBase58: %w", vm.ID, err)
		}
		return vm.rawKey(raw)
	case vm.PublicKeyHex != "":
		raw, err := hex.DecodeString(strings.TrimPrefix(vm.PublicKeyHex, "0x"))
		if err != nil {
			return nil, fmt.Errorf("%s: invalid publicKeyHex: %w", vm.ID, err)
		}
		return vm.rawKey(raw)
	}
	return nil, fmt.Errorf("%s: no supported key material", vm.ID)
}

func (vm *VerificationMethod) rawKey(raw []byte) (crypto.PublicKey, error) {
	if strings.Contains(vm.Type, "Ed25519") {
		if len(raw) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("%s: Ed25519 key has %d bytes", vm.ID, len(raw))
		}
		return ed25519.PublicKey(raw), nil
	}
	return did.ParseSecp256k1PublicKey(raw)
}

// PublicKey decodes an OKP Ed25519 or EC secp256k1 key.
func (k *JWK) PublicKey() (crypto.PublicKey, error) {
	x, err := util.DecodeBase64(k.X)
	if err != nil {
		return nil, fmt.Errorf("invalid jwk x: %w", err)
	}
	switch {
	case k.Kty == "OKP" && k.Crv == "Ed25519":
		if len(x) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("Ed25519 jwk has %d bytes", len(x))
		}
		return ed25519.PublicKey(x), nil
	case k.Kty == "EC" && k.Crv == "secp256k1":
		y, err := util.DecodeBase64(k.Y)
		if err != nil {
			return nil, fmt.Errorf("invalid jwk y: %w", err)
		}
		if len(x) != 32 || len(y) != 32 {
			return nil, fmt.Errorf("secp256k1 jwk coordinates must be 32 bytes")
		}
		return did.ParseSecp256k1PublicKey(append(append([]byte{0x04}, x...), y...))
	}
	return nil, fmt.Errorf("unsupported jwk %s/%s", k.Kty, k.Crv)
}
