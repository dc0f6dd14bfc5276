package jwt

import (
	"context"
	"crypto"
	"errors"
	"slices"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/pilacorp/go-credential-exchange/credential/common/verification"
)

// KeyResolver finds the public key that signed a token. keyID is the "kid"
// header when present, otherwise the issuer DID.
type KeyResolver interface {
	ResolveKey(ctx context.Context, did, keyID string) (crypto.PublicKey, error)
}

// KeyResolverFunc adapts a function to KeyResolver.
type KeyResolverFunc func(ctx context.Context, did, keyID string) (crypto.PublicKey, error)

// ResolveKey calls f.
func (f KeyResolverFunc) ResolveKey(ctx context.Context, did, keyID string) (crypto.PublicKey, error) {
	return f(ctx, did, keyID)
}

// Verifier checks signature, issuer key binding and validity window of tokens.
type Verifier struct {
	resolver   KeyResolver
	algorithms []string
	now        func() time.Time
	leeway     time.Duration
}

// VerifierOpt configures a Verifier.
type VerifierOpt func(*Verifier)

// WithAlgorithms restricts the accepted "alg" values.
func WithAlgorithms(algs ...string) VerifierOpt {
	return func(v *Verifier) {
		v.algorithms = slices.Clone(algs)
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) VerifierOpt {
	return func(v *Verifier) {
		v.now = now
	}
}

// WithLeeway allows for clock skew when checking exp and nbf.
func WithLeeway(d time.Duration) VerifierOpt {
	return func(v *Verifier) {
		v.leeway = d
	}
}

// NewVerifier creates a verifier backed by resolver.
func NewVerifier(resolver KeyResolver, opts ...VerifierOpt) *Verifier {
	v := &Verifier{
		resolver:   resolver,
		algorithms: []string{AlgEdDSA, AlgES256K},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Algorithms returns the accepted algorithms.
func (v *Verifier) Algorithms() []string {
	return slices.Clone(v.algorithms)
}

// Now returns the verifier's notion of the current time.
func (v *Verifier) Now() time.Time {
	return v.now()
}

// DecodeAndVerify parses token into claims and verifies it. An expired token
// is reported as ExpiredInput even when its signature would also fail.
func (v *Verifier) DecodeAndVerify(ctx context.Context, token string, claims gojwt.Claims) (*gojwt.Token, error) {
	token = normalize(token)
	unverified, err := Decode(token, claims)
	if err != nil {
		return nil, err
	}

	if err := v.checkWindow(claims); err != nil {
		return nil, err
	}

	alg := HeaderString(unverified, "alg")
	if !slices.Contains(v.algorithms, alg) {
		return nil, verification.Newf(verification.KindUnsupportedAlgorithm, "algorithm %q is not accepted", alg)
	}

	iss, err := claims.GetIssuer()
	if err != nil || iss == "" {
		return nil, verification.New(verification.KindMalformedToken, "token has no issuer")
	}
	kid := HeaderString(unverified, "kid")
	if kid == "" {
		kid = iss
	}

	if v.resolver == nil {
		return nil, verification.New(verification.KindUnresolvableKey, "no key resolver configured")
	}
	key, err := v.resolver.ResolveKey(ctx, iss, kid)
	if err != nil {
		return nil, &verification.Error{Kind: verification.KindUnresolvableKey, Message: "cannot resolve issuer key " + kid, Err: err}
	}

	parser := gojwt.NewParser(
		gojwt.WithValidMethods(v.algorithms),
		gojwt.WithTimeFunc(v.now),
		gojwt.WithLeeway(v.leeway),
	)
	parsed, err := parser.ParseWithClaims(token, claims, func(*gojwt.Token) (interface{}, error) {
		return key, nil
	})
	if err != nil {
		return nil, classify(err)
	}
	return parsed, nil
}

func (v *Verifier) checkWindow(claims gojwt.Claims) error {
	now := v.now()
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return &verification.Error{Kind: verification.KindMalformedToken, Message: "invalid exp claim", Err: err}
	}
	if exp != nil && now.After(exp.Add(v.leeway)) {
		return verification.Newf(verification.KindExpiredInput, "token expired at %s", exp.UTC().Format(time.RFC3339))
	}
	nbf, err := claims.GetNotBefore()
	if err != nil {
		return &verification.Error{Kind: verification.KindMalformedToken, Message: "invalid nbf claim", Err: err}
	}
	if nbf != nil && now.Add(v.leeway).Before(nbf.Time) {
		return verification.Newf(verification.KindExpiredInput, "token not valid before %s", nbf.UTC().Format(time.RFC3339))
	}
	return nil
}

func classify(err error) error {
	kind := verification.KindMalformedToken
	switch {
	case errors.Is(err, gojwt.ErrTokenExpired), errors.Is(err, gojwt.ErrTokenNotValidYet):
		kind = verification.KindExpiredInput
	case errors.Is(err, gojwt.ErrTokenSignatureInvalid), errors.Is(err, gojwt.ErrInvalidKeyType):
		kind = verification.KindInvalidSignature
	case errors.Is(err, gojwt.ErrTokenUnverifiable):
		kind = verification.KindUnsupportedAlgorithm
	}
	return &verification.Error{Kind: kind, Message: "token verification failed", Err: err}
}
