package did

import (
	"bytes"
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/mr-tron/base58"
)

// KeyPrefix is the method prefix of every did:key identifier.
const KeyPrefix = "did:key:"

// KeyType names the curve behind a DID key.
type KeyType string

const (
	KeyTypeEd25519   KeyType = "Ed25519"
	KeyTypeSecp256k1 KeyType = "secp256k1"
)

// multicodec varint prefixes for public keys
var (
	ed25519Codec   = []byte{0xed, 0x01}
	secp256k1Codec = []byte{0xe7, 0x01}
)

// multibase base58btc
const base58btc = 'z'

// DidKey is a locally generated did:key identity. PrivateKey holds a 64 byte
// Ed25519 key or a 32 byte secp256k1 scalar; PublicKey holds the 32 byte
// Ed25519 key or the 33 byte compressed secp256k1 point.
type DidKey struct {
	Subject    string  `json:"subject"`
	KeyType    KeyType `json:"keyType"`
	PublicKey  []byte  `json:"publicKey"`
	PrivateKey []byte  `json:"privateKey"`
}

// RandomDidKey generates a fresh Ed25519 did:key. A nil reader uses crypto/rand.
func RandomDidKey(r io.Reader) (*DidKey, error) {
	if r == nil {
		r = rand.Reader
	}
	pub, priv, err := ed25519.GenerateKey(r)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key: %w", err)
	}
	return &DidKey{
		Subject:    KeyPrefix + encodeFingerprint(ed25519Codec, pub),
		KeyType:    KeyTypeEd25519,
		PublicKey:  []byte(pub),
		PrivateKey: []byte(priv),
	}, nil
}

// RandomSecp256k1DidKey generates a fresh secp256k1 did:key.
func RandomSecp256k1DidKey(r io.Reader) (*DidKey, error) {
	if r == nil {
		r = rand.Reader
	}
	priv, err := secp256k1.GeneratePrivateKeyFromRand(r)
	if err != nil {
		return nil, fmt.Errorf("failed to generate secp256k1 key: %w", err)
	}
	pub := priv.PubKey().SerializeCompressed()
	return &DidKey{
		Subject:    KeyPrefix + encodeFingerprint(secp256k1Codec, pub),
		KeyType:    KeyTypeSecp256k1,
		PublicKey:  pub,
		PrivateKey: priv.Serialize(),
	}, nil
}

// KeyFromSecret rebuilds a did:key identity from raw private key material.
// A 32 byte secret is read as an Ed25519 seed unless keyType says otherwise.
func KeyFromSecret(keyType KeyType, secret []byte) (*DidKey, error) {
	switch keyType {
	case KeyTypeEd25519:
		var priv ed25519.PrivateKey
		switch len(secret) {
		case ed25519.SeedSize:
			priv = ed25519.NewKeyFromSeed(secret)
		case ed25519.PrivateKeySize:
			priv = ed25519.PrivateKey(bytes.Clone(secret))
		default:
			return nil, fmt.Errorf("invalid ed25519 secret length %d", len(secret))
		}
		pub := priv.Public().(ed25519.PublicKey)
		return &DidKey{
			Subject:    KeyPrefix + encodeFingerprint(ed25519Codec, pub),
			KeyType:    KeyTypeEd25519,
			PublicKey:  []byte(pub),
			PrivateKey: []byte(priv),
		}, nil
	case KeyTypeSecp256k1:
		if len(secret) != secp256k1.PrivKeyBytesLen {
			return nil, fmt.Errorf("invalid secp256k1 secret length %d", len(secret))
		}
		priv := secp256k1.PrivKeyFromBytes(secret)
		pub := priv.PubKey().SerializeCompressed()
		return &DidKey{
			Subject:    KeyPrefix + encodeFingerprint(secp256k1Codec, pub),
			KeyType:    KeyTypeSecp256k1,
			PublicKey:  pub,
			PrivateKey: priv.Serialize(),
		}, nil
	default:
		return nil, fmt.Errorf("unsupported key type %q", keyType)
	}
}

// Fingerprint returns the multibase part of the subject.
func (k *DidKey) Fingerprint() string {
	return strings.TrimPrefix(k.Subject, KeyPrefix)
}

// KeyID returns the verification method id, did:key:z...#z...
func (k *DidKey) KeyID() string {
	return k.Subject + "#" + k.Fingerprint()
}

// SecretHex returns the private key as hex. Ed25519 keys export the seed.
func (k *DidKey) SecretHex() string {
	if k.KeyType == KeyTypeEd25519 && len(k.PrivateKey) == ed25519.PrivateKeySize {
		return hex.EncodeToString(ed25519.PrivateKey(k.PrivateKey).Seed())
	}
	return hex.EncodeToString(k.PrivateKey)
}

// ParsedKey is the public half of a did:key identifier.
type ParsedKey struct {
	KeyType   KeyType
	PublicKey crypto.PublicKey
	Raw       []byte
}

// ParseDidKey decodes a did:key identifier, with or without a fragment, into
// its public key. Ed25519 keys come back as ed25519.PublicKey and secp256k1
// keys as *ecdsa.PublicKey.
func ParseDidKey(id string) (*ParsedKey, error) {
	id, _, _ = strings.Cut(id, "#")
	if !strings.HasPrefix(id, KeyPrefix) {
		return nil, fmt.Errorf("not a did:key identifier: %q", id)
	}
	fp := strings.TrimPrefix(id, KeyPrefix)
	if len(fp) < 2 || fp[0] != base58btc {
		return nil, fmt.Errorf("unsupported multibase encoding in %q", id)
	}
	decoded, err := base58.Decode(fp[1:])
	if err != nil {
		return nil, fmt.Errorf("invalid base58 fingerprint: %w", err)
	}

	switch {
	case bytes.HasPrefix(decoded, ed25519Codec):
		raw := decoded[len(ed25519Codec):]
		if len(raw) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("invalid ed25519 public key length %d", len(raw))
		}
		return &ParsedKey{KeyType: KeyTypeEd25519, PublicKey: ed25519.PublicKey(raw), Raw: raw}, nil
	case bytes.HasPrefix(decoded, secp256k1Codec):
		raw := decoded[len(secp256k1Codec):]
		pub, err := ParseSecp256k1PublicKey(raw)
		if err != nil {
			return nil, err
		}
		return &ParsedKey{KeyType: KeyTypeSecp256k1, PublicKey: pub, Raw: raw}, nil
	default:
		return nil, fmt.Errorf("unsupported multicodec in %q", id)
	}
}

// ParseSecp256k1PublicKey accepts a compressed or uncompressed point and
// returns it on the go-ethereum curve.
func ParseSecp256k1PublicKey(raw []byte) (crypto.PublicKey, error) {
	pk, err := btcec.ParsePubKey(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid secp256k1 public key: %w", err)
	}
	pub, err := ethcrypto.UnmarshalPubkey(pk.SerializeUncompressed())
	if err != nil {
		return nil, fmt.Errorf("invalid secp256k1 public key: %w", err)
	}
	return pub, nil
}

// SubjectForPublicKey returns the did:key for a raw public key.
func SubjectForPublicKey(keyType KeyType, pub []byte) (string, error) {
	switch keyType {
	case KeyTypeEd25519:
		if len(pub) != ed25519.PublicKeySize {
			return "", fmt.Errorf("invalid ed25519 public key length %d", len(pub))
		}
		return KeyPrefix + encodeFingerprint(ed25519Codec, pub), nil
	case KeyTypeSecp256k1:
		pk, err := btcec.ParsePubKey(pub)
		if err != nil {
			return "", fmt.Errorf("invalid secp256k1 public key: %w", err)
		}
		return KeyPrefix + encodeFingerprint(secp256k1Codec, pk.SerializeCompressed()), nil
	default:
		return "", fmt.Errorf("unsupported key type %q", keyType)
	}
}

// KeyTypeOf guesses the key type of a DID from its method and fingerprint.
// did:ethr and other Ethereum style methods use secp256k1.
func KeyTypeOf(id string) KeyType {
	switch {
	case strings.HasPrefix(id, KeyPrefix+"zQ3s"):
		return KeyTypeSecp256k1
	case strings.HasPrefix(id, KeyPrefix):
		return KeyTypeEd25519
	case strings.HasPrefix(id, "did:ethr:"), strings.HasPrefix(id, "did:pkh:eip155:"):
		return KeyTypeSecp256k1
	default:
		return KeyTypeEd25519
	}
}

func encodeFingerprint(codec, pub []byte) string {
	buf := make([]byte, 0, len(codec)+len(pub))
	buf = append(buf, codec...)
	buf = append(buf, pub...)
	return string(base58btc) + base58.Encode(buf)
}
